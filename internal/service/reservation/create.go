package reservation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/monitoring"
	"github.com/uma-arai/venue-reservation/internal/service/lifecycle"
	"github.com/uma-arai/venue-reservation/internal/service/pricing"
)

// CreateReservation は予約を pending で作成し、会場オーナーに通知します
// actor がゲストの場合は予約者なし(ゲスト予約)として登録します
func (s *Service) CreateReservation(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.CreateReservation")
	defer seg.Close(nil)

	start := time.Now()
	defer monitoring.ObserveOperation("create", start)

	res, err := s.createReservation(ctx, actor, req)
	if err != nil {
		monitoring.TrackReservationCreated(outcome(err))
		seg.Close(err)
		return nil, err
	}

	monitoring.TrackReservationCreated("created")
	return res, nil
}

func (s *Service) createReservation(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Reservation, error) {
	req = req.normalized()
	if err := s.validate.Struct(req); err != nil {
		return nil, toValidationError(err)
	}

	// 1. 会場の確認
	venue, err := s.venues.GetByID(ctx, req.VenueID)
	if err != nil {
		return nil, storageError("load venue", err)
	}
	if !venue.IsOpen() {
		return nil, fmt.Errorf("venue %d: %w", venue.ID, model.ErrVenueClosed)
	}

	// 2. 予約枠の検証
	window, err := s.parseWindow(req)
	if err != nil {
		return nil, err
	}

	// 3. 料金の計算。作成後は会場の料金が変わっても再計算しない
	cost, err := pricing.ComputeCost(window.Start, window.End, venue.PricePerHour)
	if err != nil {
		return nil, err
	}

	now := s.now()
	startsAt, endsAt := window.Bounds(s.loc)
	res := &model.Reservation{
		VenueID:       venue.ID,
		EventDate:     window.EventDate,
		StartTime:     window.Start,
		EndTime:       window.End,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		ContactInfo:   req.contact(),
		Notes:         req.Notes,
		VoucherCode:   req.VoucherCode,
		DurationHours: cost.DurationHours,
		TotalCost:     cost.TotalCost,
		Status:        model.StatusPending,
		VenueTitle:    venue.Title,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if !actor.IsAnonymous() && !actor.IsSystem() {
		uid := actor.UserID
		res.RenterUserID = &uid
	}

	// 4. 空き確認と登録(同一トランザクション)
	if _, err := s.reservations.InsertIfAvailable(ctx, res); err != nil {
		return nil, storageError("create reservation", err)
	}

	log.Printf("Reservation %d created for venue %d (%s %s-%s, total %s)",
		res.ID, res.VenueID, model.FormatDate(res.EventDate), res.StartTime, res.EndTime, res.TotalCost.StringFixed(2))

	// 5. オーナーへの通知。失敗しても予約は取り消さない
	data := model.MessageData{VenueTitle: venue.Title, CounterpartyName: res.FullName()}
	if _, err := s.notifier.Notify(ctx, res.ID, model.StatusPending, lifecycle.CreationRecipients(venue), data); err != nil {
		log.Printf("Failed to notify owner of reservation %d: %v", res.ID, err)
	}

	return res, nil
}

// parseWindow は日付と時刻を検証します
// 開始と終了が同じ時刻、または過去の日付はValidationErrorです
func (s *Service) parseWindow(req CreateRequest) (model.Window, error) {
	verr := &model.ValidationError{}

	eventDate, err := model.ParseDate(req.EventDate)
	if err != nil {
		verr.Add("event_date", err.Error())
	}
	startTime, err := model.ParseTimeOfDay(req.StartTime)
	if err != nil {
		verr.Add("start_time", err.Error())
	}
	endTime, err := model.ParseTimeOfDay(req.EndTime)
	if err != nil {
		verr.Add("end_time", err.Error())
	}
	if verr.HasErrors() {
		return model.Window{}, verr
	}

	window := model.Window{EventDate: eventDate, Start: startTime, End: endTime}
	if window.IsZeroLength() {
		verr.Add("end_time", "must differ from start_time")
	}

	y, m, d := s.now().In(s.loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if eventDate.Before(today) {
		verr.Add("event_date", "must not be in the past")
	}

	if verr.HasErrors() {
		return model.Window{}, verr
	}
	return window, nil
}

// CheckAvailability は予約を作らずに枠が空いているかを返します
// 結果は参考値で、確定は CreateReservation の登録時に行います
func (s *Service) CheckAvailability(ctx context.Context, venueID int64, eventDate, startTime, endTime string) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.CheckAvailability")
	defer seg.Close(nil)

	venue, err := s.venues.GetByID(ctx, venueID)
	if err != nil {
		return false, storageError("load venue", err)
	}
	if !venue.IsOpen() {
		return false, fmt.Errorf("venue %d: %w", venue.ID, model.ErrVenueClosed)
	}

	window, err := s.parseWindow(CreateRequest{EventDate: eventDate, StartTime: startTime, EndTime: endTime})
	if err != nil {
		return false, err
	}

	startsAt, endsAt := window.Bounds(s.loc)
	ok, err := s.reservations.IsAvailable(ctx, venue.ID, startsAt, endsAt)
	if err != nil {
		return false, storageError("check availability", err)
	}
	return ok, nil
}
