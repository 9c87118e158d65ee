package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/uma-arai/venue-reservation/internal/model"
)

// NotificationRepository は通知の永続化を担当するインターフェースです
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, records []model.NotificationRecord) error
	Create(ctx context.Context, tx *sqlx.Tx, record *model.NotificationRecord) error
	GetByUserID(ctx context.Context, userID int64, limit int) ([]model.NotificationRecord, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID int64, ids []int64) (int, error)
}

// NotificationRepositoryImpl は通知の永続化を担当します
type NotificationRepositoryImpl struct {
	db *DB
}

// NewNotificationRepository は新しいNotificationRepositoryを作成します
func NewNotificationRepository(db *DB) *NotificationRepositoryImpl {
	return &NotificationRepositoryImpl{
		db: db,
	}
}

// CreateNotifications は複数の通知レコードを1つのトランザクションで作成します
func (r *NotificationRepositoryImpl) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.CreateNotifications")
	defer seg.Close(nil)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := range records {
			if err := r.Create(ctx, tx, &records[i]); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// Create は単一の通知レコードを作成します
// 同じdispatch_keyのレコードが既にある場合は何もしません(再送時の重複防止)
func (r *NotificationRepositoryImpl) Create(ctx context.Context, tx *sqlx.Tx, record *model.NotificationRecord) error {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.Create")
	defer seg.Close(nil)

	query := `
		INSERT INTO notifications (
			user_id, reservation_id, message, status_changed_to, is_read, type, dispatch_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		ON CONFLICT (dispatch_key) DO NOTHING
		RETURNING id`

	err := tx.QueryRowContext(ctx,
		query,
		record.UserID,
		record.ReservationID,
		record.Message,
		record.StatusChangedTo,
		record.IsRead,
		record.Type,
		record.DispatchKey,
		record.CreatedAt,
		record.UpdatedAt,
	).Scan(&record.ID)

	if errors.Is(err, sql.ErrNoRows) {
		// 既に作成済み
		return nil
	}
	if err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// GetByUserID は指定されたユーザーIDの通知を新しい順に取得します
// 取得しても既読にはしません。既読化はMarkReadで明示的に行います
func (r *NotificationRepositoryImpl) GetByUserID(ctx context.Context, userID int64, limit int) ([]model.NotificationRecord, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.GetByUserID")
	defer seg.Close(nil)

	query := `
		SELECT
			n.id,
			n.user_id,
			n.reservation_id,
			n.message,
			n.status_changed_to,
			n.is_read,
			n.type,
			n.dispatch_key,
			COALESCE(v.title, '') AS venue_title,
			n.created_at,
			n.updated_at
		FROM notifications n
		LEFT JOIN reservations r ON r.id = n.reservation_id
		LEFT JOIN venue v ON v.id = r.venue_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2`

	records := []model.NotificationRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	return records, nil
}

// CountUnread は未読の通知件数を返します
func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, userID int64) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.CountUnread")
	defer seg.Close(nil)

	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1
		AND is_read = FALSE`

	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead は指定された通知を既読にし、新たに既読になった件数を返します
// 他のユーザーの通知(存在しないIDを含む)が1件でも含まれる場合は何も更新せずErrUnauthorizedを返します
func (r *NotificationRepositoryImpl) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationRepository.MarkRead")
	defer seg.Close(nil)

	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return 0, nil
	}

	var updated int64
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var owned int
		err := tx.QueryRowxContext(ctx,
			`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND id = ANY($2)`,
			userID, pq.Array(unique),
		).Scan(&owned)
		if err != nil {
			return fmt.Errorf("failed to verify notification ownership: %w", err)
		}
		if owned != len(unique) {
			return fmt.Errorf("user %d does not own all of %v: %w", userID, unique, model.ErrUnauthorized)
		}

		query := `
			UPDATE notifications
			SET is_read = TRUE, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = $1
			AND id = ANY($2)
			AND is_read = FALSE`

		result, err := tx.ExecContext(ctx, query, userID, pq.Array(unique))
		if err != nil {
			return fmt.Errorf("failed to update notification is_read: %w", err)
		}
		updated, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		seg.Close(err)
		return 0, err
	}

	return int(updated), nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
