package model

import "github.com/shopspring/decimal"

// VenueStatus は会場の受付状態です
type VenueStatus string

const (
	VenueOpen   VenueStatus = "open"
	VenueClosed VenueStatus = "closed"
)

// Venue は会場カタログから読み取る会場情報です。予約処理からは更新しません
type Venue struct {
	ID           int64           `db:"id" json:"id"`
	OwnerUserID  int64           `db:"user_id" json:"owner_user_id"`
	Title        string          `db:"title" json:"title"`
	PricePerHour decimal.Decimal `db:"price" json:"price_per_hour"`
	Status       VenueStatus     `db:"status" json:"status"`
}

// IsOpen reports whether the venue accepts new bookings.
func (v *Venue) IsOpen() bool {
	return v.Status == VenueOpen
}

// IsOwnedBy は指定ユーザーが会場のオーナーかを返します
func (v *Venue) IsOwnedBy(userID int64) bool {
	return v.OwnerUserID == userID
}
