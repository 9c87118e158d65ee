package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeReservation は予約関連の通知を表します
	NotificationTypeReservation NotificationType = "reservation"
	// NotificationTypeCommon は共通の通知を表します
	NotificationTypeCommon NotificationType = "common"
)

// NotificationRecord は通知のドメインモデルです
// データベースに永続化される通知レコードと一致しています
// DispatchKey は遷移ごとに1つ発行され、再送時の重複作成を防ぎます
type NotificationRecord struct {
	ID              int64            `db:"id" json:"id"`
	UserID          int64            `db:"user_id" json:"user_id"`
	ReservationID   *int64           `db:"reservation_id" json:"reservation_id,omitempty"`
	Message         string           `db:"message" json:"message"`
	StatusChangedTo *Status          `db:"status_changed_to" json:"status_changed_to,omitempty"`
	IsRead          bool             `db:"is_read" json:"is_read"`
	Type            NotificationType `db:"type" json:"type"`
	DispatchKey     string           `db:"dispatch_key" json:"dispatch_key"`
	VenueTitle      string           `db:"venue_title" json:"venue_title,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// NewReservationNotificationRecord は予約のステータス変更通知レコードを作成します
func NewReservationNotificationRecord(recipientUserID, reservationID int64, statusChangedTo Status, message string, now time.Time) NotificationRecord {
	rid := reservationID
	st := statusChangedTo
	return NotificationRecord{
		UserID:          recipientUserID,
		ReservationID:   &rid,
		Message:         message,
		StatusChangedTo: &st,
		IsRead:          false,
		Type:            NotificationTypeReservation,
		DispatchKey:     uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Audience は通知の宛先側(会場オーナー / 予約者)です
type Audience string

const (
	AudienceOwner  Audience = "owner"
	AudienceRenter Audience = "renter"
)

// MessageKey は通知文テンプレートのキーです
// 基本はステータスと同じ値で、キャンセル申請の承認/却下のみ独自のキーを持ちます
type MessageKey string

const (
	MessageCancellationApproved MessageKey = "cancellation_approved"
	MessageCancellationRejected MessageKey = "cancellation_rejected"
)

// MessageKeyForStatus returns the template key used for a plain status change.
func MessageKeyForStatus(s Status) MessageKey {
	return MessageKey(s)
}

// MessageData はテンプレートに埋め込む値です
type MessageData struct {
	ReservationID    int64
	VenueTitle       string
	CounterpartyName string
}

var messageCatalog = map[Audience]map[MessageKey]string{
	AudienceOwner: {
		MessageKey(StatusPending):               "New booking request (ID: %d) for your venue '%s'.",
		MessageKey(StatusCancellationRequested): "Cancellation requested for booking ID %d for venue '%s'.",
		MessageKey(StatusAccepted):              "Booking ID %d for your venue '%s' was accepted.",
		MessageKey(StatusConfirmed):             "Booking ID %d for your venue '%s' is now confirmed.",
		MessageKey(StatusCancelled):             "Booking ID %d for your venue '%s' was cancelled.",
		MessageKey(StatusRejected):              "Booking ID %d for your venue '%s' was rejected.",
		MessageKey(StatusCompleted):             "Booking ID %d for your venue '%s' is marked as completed.",
	},
	AudienceRenter: {
		MessageKey(StatusPending):               "Your booking request (ID: %d) for venue '%s' has been received and is awaiting review.",
		MessageKey(StatusCancellationRequested): "Your cancellation request for booking ID %d at '%s' has been sent to the venue owner.",
		MessageKey(StatusAccepted):              "Your booking (ID: %d) for venue '%s' was accepted.",
		MessageKey(StatusConfirmed):             "Your booking (ID: %d) for venue '%s' is now confirmed.",
		MessageKey(StatusCancelled):             "Your booking (ID: %d) for venue '%s' was cancelled.",
		MessageKey(StatusRejected):              "Your booking (ID: %d) for venue '%s' was rejected.",
		MessageKey(StatusCompleted):             "Your booking (ID: %d) for venue '%s' is marked as completed.",
		MessageCancellationApproved:             "Your cancellation request for booking ID %d at '%s' has been approved by the venue owner.",
		MessageCancellationRejected:             "Your cancellation request for booking ID %d at '%s' has been rejected by the venue owner.",
	},
}

// 予約者名を末尾に付ける通知(オーナー向けの新規予約・キャンセル申請)
var withBookerName = map[MessageKey]bool{
	MessageKey(StatusPending):               true,
	MessageKey(StatusCancellationRequested): true,
}

// RenderMessage は宛先とキーに応じた通知文を作成します
func RenderMessage(audience Audience, key MessageKey, data MessageData) string {
	title := data.VenueTitle
	if title == "" {
		title = "N/A"
	}

	tmpl, ok := messageCatalog[audience][key]
	if !ok {
		return fmt.Sprintf("Update for reservation ID %d related to venue '%s'.", data.ReservationID, title)
	}

	msg := fmt.Sprintf(tmpl, data.ReservationID, title)
	if audience == AudienceOwner && withBookerName[key] && data.CounterpartyName != "" {
		msg += fmt.Sprintf(" By user '%s'.", data.CounterpartyName)
	}
	return msg
}
