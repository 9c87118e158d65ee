// Package reservation は予約の作成とステータス遷移をまとめる窓口です
package reservation

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/repository"
	"github.com/uma-arai/venue-reservation/internal/service/notification"
)

// Service は予約ライフサイクルの公開操作を提供します
type Service struct {
	venues       repository.VenueRepository
	reservations repository.ReservationRepository
	notifier     *notification.Dispatcher
	loc          *time.Location
	validate     *validator.Validate
	now          func() time.Time
}

// NewService は新しいServiceを作成します
// loc は予約日時(event_date + 時刻)を解釈するタイムゾーンです
func NewService(
	venues repository.VenueRepository,
	reservations repository.ReservationRepository,
	notifier *notification.Dispatcher,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		venues:       venues,
		reservations: reservations,
		notifier:     notifier,
		loc:          loc,
		validate:     newValidator(),
		now:          time.Now,
	}
}

// storageError は業務エラー以外をErrStorageUnavailableに置き換えます
// 原因はログにだけ残し、呼び出し元には返しません
func storageError(op string, err error) error {
	if err == nil || model.IsDomainError(err) {
		return err
	}
	log.Printf("Failed to %s: %v", op, err)
	return fmt.Errorf("%s: %w", op, model.ErrStorageUnavailable)
}

func requireUser(actor model.Actor) error {
	if actor.IsAnonymous() || actor.IsSystem() {
		return fmt.Errorf("login required: %w", model.ErrUnauthorized)
	}
	return nil
}

// outcome はメトリクスのラベルに使うエラー種別を返します
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrVenueClosed):
		return "venue_closed"
	case errors.Is(err, model.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
