package model

import (
	"strings"
	"testing"
	"time"
)

func TestNewReservationNotificationRecord(t *testing.T) {
	now := time.Now()
	rec := NewReservationNotificationRecord(7, 42, StatusAccepted, "msg", now)

	if rec.UserID != 7 {
		t.Errorf("NotificationRecord.UserID = %v, want %v", rec.UserID, 7)
	}
	if rec.ReservationID == nil || *rec.ReservationID != 42 {
		t.Errorf("NotificationRecord.ReservationID = %v, want %v", rec.ReservationID, 42)
	}
	if rec.StatusChangedTo == nil || *rec.StatusChangedTo != StatusAccepted {
		t.Errorf("NotificationRecord.StatusChangedTo = %v, want %v", rec.StatusChangedTo, StatusAccepted)
	}
	if rec.IsRead {
		t.Error("NotificationRecord.IsRead = true, want false")
	}
	if rec.Type != NotificationTypeReservation {
		t.Errorf("NotificationRecord.Type = %v, want %v", rec.Type, NotificationTypeReservation)
	}
	if rec.DispatchKey == "" {
		t.Error("NotificationRecord.DispatchKey is empty")
	}

	other := NewReservationNotificationRecord(7, 42, StatusAccepted, "msg", now)
	if other.DispatchKey == rec.DispatchKey {
		t.Error("DispatchKey must be unique per record")
	}
}

func TestRenderMessage(t *testing.T) {
	data := MessageData{ReservationID: 12, VenueTitle: "Sunset Hall", CounterpartyName: "Maria Cruz"}

	tests := []struct {
		name     string
		audience Audience
		key      MessageKey
		data     MessageData
		want     string
	}{
		{
			name:     "オーナー向け新規予約",
			audience: AudienceOwner,
			key:      MessageKeyForStatus(StatusPending),
			data:     data,
			want:     "New booking request (ID: 12) for your venue 'Sunset Hall'. By user 'Maria Cruz'.",
		},
		{
			name:     "オーナー向けキャンセル申請",
			audience: AudienceOwner,
			key:      MessageKeyForStatus(StatusCancellationRequested),
			data:     data,
			want:     "Cancellation requested for booking ID 12 for venue 'Sunset Hall'. By user 'Maria Cruz'.",
		},
		{
			name:     "オーナー向け完了",
			audience: AudienceOwner,
			key:      MessageKeyForStatus(StatusCompleted),
			data:     data,
			want:     "Booking ID 12 for your venue 'Sunset Hall' is marked as completed.",
		},
		{
			name:     "予約者向け承認",
			audience: AudienceRenter,
			key:      MessageKeyForStatus(StatusAccepted),
			data:     data,
			want:     "Your booking (ID: 12) for venue 'Sunset Hall' was accepted.",
		},
		{
			name:     "予約者向けキャンセル承認",
			audience: AudienceRenter,
			key:      MessageCancellationApproved,
			data:     data,
			want:     "Your cancellation request for booking ID 12 at 'Sunset Hall' has been approved by the venue owner.",
		},
		{
			name:     "予約者向けキャンセル却下",
			audience: AudienceRenter,
			key:      MessageCancellationRejected,
			data:     data,
			want:     "Your cancellation request for booking ID 12 at 'Sunset Hall' has been rejected by the venue owner.",
		},
		{
			name:     "会場名なし",
			audience: AudienceRenter,
			key:      MessageKeyForStatus(StatusRejected),
			data:     MessageData{ReservationID: 3},
			want:     "Your booking (ID: 3) for venue 'N/A' was rejected.",
		},
		{
			name:     "未知のキー",
			audience: AudienceOwner,
			key:      MessageCancellationApproved,
			data:     data,
			want:     "Update for reservation ID 12 related to venue 'Sunset Hall'.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderMessage(tt.audience, tt.key, tt.data)
			if got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderMessage_予約者名なし(t *testing.T) {
	got := RenderMessage(AudienceOwner, MessageKeyForStatus(StatusPending), MessageData{ReservationID: 1, VenueTitle: "Hall"})
	if strings.Contains(got, "By user") {
		t.Errorf("RenderMessage() = %q, should not mention a user", got)
	}
}
