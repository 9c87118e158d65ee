package reservation

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/monitoring"
	"github.com/uma-arai/venue-reservation/internal/service/lifecycle"
)

// TransitionResult はステータス遷移の結果です
type TransitionResult struct {
	Reservation *model.Reservation
	Event       model.ReservationEvent
	// NotificationDeferred は通知の書き込みが再送待ちになったことを表します
	NotificationDeferred bool
}

// TransitionReservation は予約のステータスを target に変更します
// 遷移の確定後に通知を作成します。通知に失敗しても遷移は取り消しません
func (s *Service) TransitionReservation(ctx context.Context, actor model.Actor, reservationID int64, target string) (TransitionResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.TransitionReservation")
	defer seg.Close(nil)

	start := time.Now()
	defer monitoring.ObserveOperation("transition", start)

	result, from, err := s.transition(ctx, actor, reservationID, target)
	if err != nil {
		monitoring.TrackTransition(string(from), target, outcome(err))
		seg.Close(err)
		return TransitionResult{}, err
	}

	monitoring.TrackTransition(string(result.Event.From), string(result.Event.To), "ok")
	return result, nil
}

func (s *Service) transition(ctx context.Context, actor model.Actor, reservationID int64, target string) (TransitionResult, model.Status, error) {
	next, err := model.ParseStatus(target)
	if err != nil {
		return TransitionResult{}, "", err
	}

	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return TransitionResult{}, "", storageError("load reservation", err)
	}

	venue, err := s.venues.GetByID(ctx, res.VenueID)
	if err != nil {
		return TransitionResult{}, res.Status, storageError("load venue", err)
	}

	now := s.now()
	t, err := lifecycle.Resolve(res, venue, actor, next, now)
	if err != nil {
		return TransitionResult{}, res.Status, err
	}

	// 読み込み後に別の操作でステータスが変わっていれば ErrConflict
	if err := s.reservations.UpdateStatus(ctx, res.ID, t.From, t.To); err != nil {
		return TransitionResult{}, res.Status, storageError("update reservation status", err)
	}

	res.PreviousStatus = nil
	if t.To == model.StatusCancellationRequested {
		prev := t.From
		res.PreviousStatus = &prev
	}
	res.Status = t.To
	res.UpdatedAt = now
	if res.VenueTitle == "" {
		res.VenueTitle = venue.Title
	}

	event := t.Event(venue.ID, actor, now)
	log.Printf("Reservation %d moved from %s to %s by %s (venue %d)", res.ID, event.From, event.To, t.Initiator, venue.ID)

	data := model.MessageData{VenueTitle: venue.Title, CounterpartyName: res.FullName()}
	sent, err := s.notifier.Notify(ctx, res.ID, t.To, t.Recipients, data)
	if err != nil {
		log.Printf("Failed to notify transition of reservation %d: %v", res.ID, err)
	}

	return TransitionResult{Reservation: res, Event: event, NotificationDeferred: sent.Deferred}, t.From, nil
}
