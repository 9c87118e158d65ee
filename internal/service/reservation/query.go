package reservation

import (
	"context"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/model"
)

const dashboardRecentLimit = 5

// GetReservation は予約を1件返します。予約者本人、会場オーナー、管理者のみ参照できます
func (s *Service) GetReservation(ctx context.Context, actor model.Actor, reservationID int64) (*model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.GetReservation")
	defer seg.Close(nil)

	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, storageError("load reservation", err)
	}

	if actor.IsAdmin() || actor.IsSystem() {
		return res, nil
	}
	if actor.UserID != 0 && res.IsRenter(actor.UserID) {
		return res, nil
	}

	venue, err := s.venues.GetByID(ctx, res.VenueID)
	if err != nil {
		return nil, storageError("load venue", err)
	}
	if actor.UserID != 0 && venue.IsOwnedBy(actor.UserID) {
		return res, nil
	}
	return nil, fmt.Errorf("reservation %d: %w", reservationID, model.ErrUnauthorized)
}

// ListReservationsForUser は利用者自身の予約を新しい順に返します
func (s *Service) ListReservationsForUser(ctx context.Context, actor model.Actor, userID int64, filter model.ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.ListReservationsForUser")
	defer seg.Close(nil)

	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, fmt.Errorf("reservations of user %d: %w", userID, model.ErrUnauthorized)
	}

	list, err := s.reservations.ListForUser(ctx, userID, filter)
	if err != nil {
		return nil, storageError("list reservations for user", err)
	}
	return list, nil
}

// ListReservationsForVenues はオーナーの会場に入った予約を返します
// venueIDs が空の場合は操作者が所有する全会場が対象です
func (s *Service) ListReservationsForVenues(ctx context.Context, actor model.Actor, venueIDs []int64, filter model.ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.ListReservationsForVenues")
	defer seg.Close(nil)

	if err := requireUser(actor); err != nil {
		return nil, err
	}

	owned, err := s.venues.ListIDsByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, storageError("list owned venues", err)
	}

	targets := owned
	if len(venueIDs) > 0 {
		if !actor.IsAdmin() {
			ownedSet := make(map[int64]struct{}, len(owned))
			for _, id := range owned {
				ownedSet[id] = struct{}{}
			}
			for _, id := range venueIDs {
				if _, ok := ownedSet[id]; !ok {
					return nil, fmt.Errorf("venue %d: %w", id, model.ErrUnauthorized)
				}
			}
		}
		targets = venueIDs
	}

	list, err := s.reservations.ListForVenues(ctx, targets, filter)
	if err != nil {
		return nil, storageError("list reservations for venues", err)
	}
	return list, nil
}

// OwnerDashboard はオーナー向けの件数と直近の予約を返します
func (s *Service) OwnerDashboard(ctx context.Context, actor model.Actor) (*model.OwnerDashboard, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.OwnerDashboard")
	defer seg.Close(nil)

	if err := requireUser(actor); err != nil {
		return nil, err
	}

	venueIDs, err := s.venues.ListIDsByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, storageError("list owned venues", err)
	}

	counts, err := s.reservations.CountByStatusForVenues(ctx, venueIDs)
	if err != nil {
		return nil, storageError("count reservations for venues", err)
	}

	recent, err := s.reservations.ListForVenues(ctx, venueIDs, model.ReservationFilter{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, storageError("list recent reservations for venues", err)
	}

	return &model.OwnerDashboard{
		VenueCount:        len(venueIDs),
		TotalReservations: total(counts),
		PendingCount:      counts[model.StatusPending],
		Recent:            recent,
	}, nil
}

// RenterDashboard は予約者向けの件数と直近の予約を返します
func (s *Service) RenterDashboard(ctx context.Context, actor model.Actor) (*model.RenterDashboard, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationService.RenterDashboard")
	defer seg.Close(nil)

	if err := requireUser(actor); err != nil {
		return nil, err
	}

	counts, err := s.reservations.CountByStatusForUser(ctx, actor.UserID)
	if err != nil {
		return nil, storageError("count reservations for user", err)
	}

	upcoming, err := s.reservations.CountUpcomingForUser(ctx, actor.UserID, s.now())
	if err != nil {
		return nil, storageError("count upcoming reservations", err)
	}

	recent, err := s.reservations.ListForUser(ctx, actor.UserID, model.ReservationFilter{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, storageError("list recent reservations for user", err)
	}

	return &model.RenterDashboard{
		TotalReservations: total(counts),
		PendingCount:      counts[model.StatusPending],
		UpcomingCount:     upcoming,
		Recent:            recent,
	}, nil
}

func total(counts map[model.Status]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// ListNotifications は操作者宛ての通知を返します。既読状態は変更しません
func (s *Service) ListNotifications(ctx context.Context, actor model.Actor, limit int) ([]model.NotificationRecord, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	records, err := s.notifier.List(ctx, actor.UserID, limit)
	if err != nil {
		return nil, storageError("list notifications", err)
	}
	return records, nil
}

func (s *Service) CountUnreadNotifications(ctx context.Context, actor model.Actor) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	count, err := s.notifier.CountUnread(ctx, actor.UserID)
	if err != nil {
		return 0, storageError("count unread notifications", err)
	}
	return count, nil
}

// MarkNotificationsRead は操作者本人の通知を既読にします
// 他人の通知が1件でも含まれる場合は何も変更せず ErrUnauthorized を返します
func (s *Service) MarkNotificationsRead(ctx context.Context, actor model.Actor, ids []int64) (int, error) {
	if err := requireUser(actor); err != nil {
		return 0, err
	}
	updated, err := s.notifier.MarkRead(ctx, actor.UserID, ids)
	if err != nil {
		return 0, storageError("mark notifications read", err)
	}
	return updated, nil
}
