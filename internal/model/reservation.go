package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ContactInfo は予約者の連絡先です。予約処理では中身を解釈しません
type ContactInfo struct {
	FirstName         string `db:"first_name" json:"first_name"`
	LastName          string `db:"last_name" json:"last_name"`
	Email             string `db:"email" json:"email"`
	MobileCountryCode string `db:"mobile_country_code" json:"mobile_country_code"`
	MobileNumber      string `db:"mobile_number" json:"mobile_number"`
	Address           string `db:"address" json:"address"`
	Country           string `db:"country" json:"country"`
}

// FullName returns "first last" with surrounding blanks trimmed.
func (c ContactInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Reservation は会場の予約です
// TotalCost は作成時に確定し、以後会場の料金が変わっても再計算しません
type Reservation struct {
	ID           int64     `db:"id" json:"id"`
	VenueID      int64     `db:"venue_id" json:"venue_id"`
	RenterUserID *int64    `db:"user_id" json:"user_id,omitempty"`
	EventDate    time.Time `db:"event_date" json:"event_date"`
	StartTime    TimeOfDay `db:"start_time" json:"start_time"`
	EndTime      TimeOfDay `db:"end_time" json:"end_time"`
	StartsAt     time.Time `db:"starts_at" json:"starts_at"`
	EndsAt       time.Time `db:"ends_at" json:"ends_at"`
	ContactInfo
	Notes          string          `db:"notes" json:"notes"`
	VoucherCode    string          `db:"voucher_code" json:"voucher_code,omitempty"`
	DurationHours  decimal.Decimal `db:"duration_hours" json:"duration_hours"`
	TotalCost      decimal.Decimal `db:"total_cost" json:"total_cost"`
	Status         Status          `db:"status" json:"status"`
	PreviousStatus *Status         `db:"previous_status" json:"previous_status,omitempty"`
	VenueTitle     string          `db:"venue_title" json:"venue_title,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Window returns the slot the reservation occupies.
func (r *Reservation) Window() Window {
	return Window{EventDate: r.EventDate, Start: r.StartTime, End: r.EndTime}
}

// IsRenter は指定ユーザーが予約者本人かを返します。ゲスト予約は誰の予約でもありません
func (r *Reservation) IsRenter(userID int64) bool {
	return r.RenterUserID != nil && *r.RenterUserID == userID
}

// ReservationFilter はダッシュボード向け一覧の絞り込み条件です
type ReservationFilter struct {
	// 空の場合は全ステータス
	Statuses []Status
	// 0の場合は上限なし
	Limit int
}

// ReservationEvent はステータス遷移の完了時に発行されるイベントです
type ReservationEvent struct {
	ReservationID int64     `json:"reservation_id"`
	VenueID       int64     `json:"venue_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	ActorUserID   int64     `json:"actor_user_id"`
	ActorRole     Role      `json:"actor_role"`
	CreatedAt     time.Time `json:"created_at"`
}

// OwnerDashboard は会場オーナー向けの集計です
type OwnerDashboard struct {
	VenueCount        int           `json:"venue_count"`
	TotalReservations int           `json:"total_reservations"`
	PendingCount      int           `json:"pending_count"`
	Recent            []Reservation `json:"recent"`
}

// RenterDashboard は予約者向けの集計です
type RenterDashboard struct {
	TotalReservations int           `json:"total_reservations"`
	PendingCount      int           `json:"pending_count"`
	UpcomingCount     int           `json:"upcoming_count"`
	Recent            []Reservation `json:"recent"`
}
