package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/uma-arai/venue-reservation/internal/model"
)

type ReservationRepository interface {
	InsertIfAvailable(ctx context.Context, reservation *model.Reservation) (int64, error)
	IsAvailable(ctx context.Context, venueID int64, startsAt, endsAt time.Time) (bool, error)
	Get(ctx context.Context, reservationID int64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, reservationID int64, expected, next model.Status) error
	ListForVenues(ctx context.Context, venueIDs []int64, filter model.ReservationFilter) ([]model.Reservation, error)
	ListForUser(ctx context.Context, userID int64, filter model.ReservationFilter) ([]model.Reservation, error)
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)
	CountByStatusForVenues(ctx context.Context, venueIDs []int64) (map[model.Status]int, error)
	CountByStatusForUser(ctx context.Context, userID int64) (map[model.Status]int, error)
	CountUpcomingForUser(ctx context.Context, userID int64, now time.Time) (int, error)
}

type ReservationRepositoryImpl struct {
	db *DB
}

func NewReservationRepository(db *DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

const reservationColumns = `
			r.id,
			r.venue_id,
			r.user_id,
			r.event_date,
			r.start_time,
			r.end_time,
			r.starts_at,
			r.ends_at,
			r.first_name,
			r.last_name,
			r.email,
			r.mobile_country_code,
			r.mobile_number,
			r.address,
			r.country,
			r.notes,
			r.voucher_code,
			r.duration_hours,
			r.total_cost,
			r.status,
			r.previous_status,
			COALESCE(v.title, '') AS venue_title,
			r.created_at,
			r.updated_at`

const overlapCondition = `
			venue_id = $1
			AND status = ANY($2)
			AND starts_at < $4
			AND $3 < ends_at`

// InsertIfAvailable は空き確認と登録を1つのトランザクションで行います
// 会場単位のアドバイザリロックで同じ会場への同時登録を直列化し、
// 排他制約(reservations_no_overlap)違反もErrSlotUnavailableとして扱います
func (r *ReservationRepositoryImpl) InsertIfAvailable(ctx context.Context, reservation *model.Reservation) (int64, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.InsertIfAvailable")
	defer seg.Close(nil)

	insert := `
		INSERT INTO reservations (
			venue_id,
			user_id,
			event_date,
			start_time,
			end_time,
			starts_at,
			ends_at,
			first_name,
			last_name,
			email,
			mobile_country_code,
			mobile_number,
			address,
			country,
			notes,
			voucher_code,
			duration_hours,
			total_cost,
			status,
			created_at,
			updated_at
		) VALUES (
			:venue_id,
			:user_id,
			:event_date,
			:start_time,
			:end_time,
			:starts_at,
			:ends_at,
			:first_name,
			:last_name,
			:email,
			:mobile_country_code,
			:mobile_number,
			:address,
			:country,
			:notes,
			:voucher_code,
			:duration_hours,
			:total_cost,
			:status,
			:created_at,
			:updated_at
		)
		RETURNING id`

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, reservation.VenueID); err != nil {
			return fmt.Errorf("failed to lock venue %d: %w", reservation.VenueID, err)
		}

		var overlapping bool
		err := tx.QueryRowxContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM reservations WHERE`+overlapCondition+`)`,
			reservation.VenueID,
			pq.Array(model.StatusStrings(model.SlotOccupyingStatuses())),
			reservation.StartsAt,
			reservation.EndsAt,
		).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("failed to check availability: %w", err)
		}
		if overlapping {
			return model.ErrSlotUnavailable
		}

		query, args, err := tx.BindNamed(insert, reservation)
		if err != nil {
			return fmt.Errorf("failed to bind reservation: %w", err)
		}
		if err := tx.QueryRowxContext(ctx, query, args...).Scan(&reservation.ID); err != nil {
			if isExclusionViolation(err) {
				return model.ErrSlotUnavailable
			}
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		seg.Close(err)
		return 0, err
	}

	return reservation.ID, nil
}

// IsAvailable は指定した枠が枠を占有する既存予約と重ならないかを返します
func (r *ReservationRepositoryImpl) IsAvailable(ctx context.Context, venueID int64, startsAt, endsAt time.Time) (bool, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.IsAvailable")
	defer seg.Close(nil)

	var overlapping bool
	err := r.db.GetContext(ctx, &overlapping,
		`SELECT EXISTS (SELECT 1 FROM reservations WHERE`+overlapCondition+`)`,
		venueID,
		pq.Array(model.StatusStrings(model.SlotOccupyingStatuses())),
		startsAt,
		endsAt,
	)
	if err != nil {
		seg.Close(err)
		return false, fmt.Errorf("failed to check availability for venue %d: %w", venueID, err)
	}

	return !overlapping, nil
}

// Get は予約を1件取得します
func (r *ReservationRepositoryImpl) Get(ctx context.Context, reservationID int64) (*model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.Get")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations r
		LEFT JOIN venue v ON v.id = r.venue_id
		WHERE r.id = $1`

	var reservation model.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, reservationID); err != nil {
		return nil, notFound(err, "reservation", reservationID)
	}

	return &reservation, nil
}

// UpdateStatus は予約のステータスを更新します
// 現在のステータスがexpectedの場合のみ更新し、他の更新に負けた場合はErrConflictを返します
// cancellation_requestedへの遷移では元のステータスを保存し、それ以外ではクリアします
func (r *ReservationRepositoryImpl) UpdateStatus(ctx context.Context, reservationID int64, expected, next model.Status) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.UpdateStatus")
	defer seg.Close(nil)

	var previous *model.Status
	if next == model.StatusCancellationRequested {
		previous = &expected
	}

	query := `
		UPDATE reservations
		SET status = $1,
			previous_status = $2,
			updated_at = $3
		WHERE id = $4
		AND status = $5`

	result, err := r.db.ExecContext(ctx, query, next, previous, time.Now(), reservationID, expected)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update reservation status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, reservationID); err != nil {
			seg.Close(err)
			return fmt.Errorf("failed to check reservation %d: %w", reservationID, err)
		}
		if !exists {
			return fmt.Errorf("reservation %d: %w", reservationID, model.ErrNotFound)
		}
		return fmt.Errorf("reservation %d is no longer %s: %w", reservationID, expected, model.ErrConflict)
	}

	return nil
}

// ListForVenues は会場の予約一覧を取得します
func (r *ReservationRepositoryImpl) ListForVenues(ctx context.Context, venueIDs []int64, filter model.ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListForVenues")
	defer seg.Close(nil)

	if len(venueIDs) == 0 {
		return []model.Reservation{}, nil
	}

	return r.list(ctx, "r.venue_id = ANY($1)", pq.Array(venueIDs), filter)
}

// ListForUser は予約者本人の予約一覧を取得します
func (r *ReservationRepositoryImpl) ListForUser(ctx context.Context, userID int64, filter model.ReservationFilter) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListForUser")
	defer seg.Close(nil)

	return r.list(ctx, "r.user_id = $1", userID, filter)
}

func (r *ReservationRepositoryImpl) list(ctx context.Context, scope string, scopeArg interface{}, filter model.ReservationFilter) ([]model.Reservation, error) {
	conditions := []string{scope}
	args := []interface{}{scopeArg}
	if len(filter.Statuses) > 0 {
		conditions = append(conditions, fmt.Sprintf("r.status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(model.StatusStrings(filter.Statuses)))
	}

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations r
		LEFT JOIN venue v ON v.id = r.venue_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY r.starts_at DESC, r.id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	reservations := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}

	return reservations, nil
}

// ListDueForCompletion は終了時刻を過ぎた確定済みの予約を取得します
func (r *ReservationRepositoryImpl) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.ListDueForCompletion")
	defer seg.Close(nil)

	query := `
		SELECT ` + reservationColumns + `
		FROM reservations r
		LEFT JOIN venue v ON v.id = r.venue_id
		WHERE r.status = $1
		AND r.ends_at <= $2
		ORDER BY r.ends_at ASC
		LIMIT $3`

	reservations := []model.Reservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, model.StatusConfirmed, now, limit); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query reservations due for completion: %w", err)
	}

	return reservations, nil
}

type statusCount struct {
	Status model.Status `db:"status"`
	Count  int          `db:"count"`
}

// CountByStatusForVenues は会場の予約件数をステータス別に集計します
func (r *ReservationRepositoryImpl) CountByStatusForVenues(ctx context.Context, venueIDs []int64) (map[model.Status]int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.CountByStatusForVenues")
	defer seg.Close(nil)

	if len(venueIDs) == 0 {
		return map[model.Status]int{}, nil
	}

	return r.countByStatus(ctx, "venue_id = ANY($1)", pq.Array(venueIDs))
}

// CountByStatusForUser は予約者の予約件数をステータス別に集計します
func (r *ReservationRepositoryImpl) CountByStatusForUser(ctx context.Context, userID int64) (map[model.Status]int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.CountByStatusForUser")
	defer seg.Close(nil)

	return r.countByStatus(ctx, "user_id = $1", userID)
}

func (r *ReservationRepositoryImpl) countByStatus(ctx context.Context, scope string, scopeArg interface{}) (map[model.Status]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM reservations
		WHERE ` + scope + `
		GROUP BY status`

	var rows []statusCount
	if err := r.db.SelectContext(ctx, &rows, query, scopeArg); err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}

	counts := make(map[model.Status]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountUpcomingForUser は開始前の確定済み予約の件数を返します
func (r *ReservationRepositoryImpl) CountUpcomingForUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationRepository.CountUpcomingForUser")
	defer seg.Close(nil)

	query := `
		SELECT COUNT(*)
		FROM reservations
		WHERE user_id = $1
		AND status = $2
		AND starts_at > $3`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, model.StatusConfirmed, now); err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to count upcoming reservations: %w", err)
	}

	return count, nil
}
