package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/monitoring"
	"github.com/uma-arai/venue-reservation/internal/queue"
	"github.com/uma-arai/venue-reservation/internal/repository"
	"github.com/uma-arai/venue-reservation/internal/service/lifecycle"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// scheduleTimeout は再送キューへの登録に使う時間です
	// リクエストの期限切れとは切り離して登録します
	scheduleTimeout = 5 * time.Second
)

// Dispatcher は予約のステータス変更を通知レコードとして書き込みます
// 書き込みに失敗した場合は再送キューに積み、遷移そのものは取り消しません
type Dispatcher struct {
	repo       repository.NotificationRepository
	retryQueue queue.RetryQueue
	baseDelay  time.Duration
	now        func() time.Time
}

// NewDispatcher は新しいDispatcherを作成します
func NewDispatcher(repo repository.NotificationRepository, retryQueue queue.RetryQueue, baseDelay time.Duration) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		retryQueue: retryQueue,
		baseDelay:  baseDelay,
		now:        time.Now,
	}
}

// Result は通知の書き込み結果です
type Result struct {
	Records []model.NotificationRecord
	// Deferred は書き込みに失敗し、再送キューに積んだことを表します
	Deferred bool
}

// Notify は遷移1回分の通知を宛先ごとに作成します
// 宛先がない場合(ゲスト予約への通知など)は何もしません
func (d *Dispatcher) Notify(ctx context.Context, reservationID int64, statusChangedTo model.Status, recipients []lifecycle.Recipient, data model.MessageData) (Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationDispatcher.Notify")
	defer seg.Close(nil)

	if len(recipients) == 0 {
		return Result{}, nil
	}

	now := d.now()
	data.ReservationID = reservationID
	records := make([]model.NotificationRecord, 0, len(recipients))
	for _, r := range recipients {
		msg := model.RenderMessage(r.Audience, r.Key, data)
		records = append(records, model.NewReservationNotificationRecord(r.UserID, reservationID, statusChangedTo, msg, now))
	}

	err := d.repo.CreateNotifications(ctx, records)
	if err == nil {
		monitoring.TrackNotification("written", len(records))
		return Result{Records: records}, nil
	}

	log.Printf("Failed to write %d notifications for reservation %d, scheduling retry: %v", len(records), reservationID, err)

	job := queue.NewRetryJob(records, err, now)
	scheduleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scheduleTimeout)
	defer cancel()
	if qErr := d.retryQueue.Schedule(scheduleCtx, job, now.Add(d.baseDelay)); qErr != nil {
		monitoring.TrackNotification("dropped", len(records))
		seg.Close(qErr)
		return Result{Records: records}, fmt.Errorf("failed to schedule notification retry for reservation %d: %w (write error: %v)", reservationID, qErr, err)
	}

	monitoring.TrackNotification("deferred", len(records))
	return Result{Records: records, Deferred: true}, nil
}

// List は利用者の通知を新しい順に返します。既読にはしません
func (d *Dispatcher) List(ctx context.Context, userID int64, limit int) ([]model.NotificationRecord, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationDispatcher.List")
	defer seg.Close(nil)

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := d.repo.GetByUserID(ctx, userID, limit)
	if err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to list notifications for user %d: %w", userID, err)
	}
	return records, nil
}

// CountUnread returns the badge count for the user.
func (d *Dispatcher) CountUnread(ctx context.Context, userID int64) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationDispatcher.CountUnread")
	defer seg.Close(nil)

	count, err := d.repo.CountUnread(ctx, userID)
	if err != nil {
		seg.Close(err)
		return 0, fmt.Errorf("failed to count unread notifications for user %d: %w", userID, err)
	}
	return count, nil
}

// MarkRead は利用者本人の通知だけを既読にします。何度呼んでも結果は同じです
func (d *Dispatcher) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationDispatcher.MarkRead")
	defer seg.Close(nil)

	verr := &model.ValidationError{}
	if len(ids) == 0 {
		verr.Add("ids", "at least one notification id is required")
	}
	for _, id := range ids {
		if id <= 0 {
			verr.Add("ids", fmt.Sprintf("invalid notification id %d", id))
		}
	}
	if verr.HasErrors() {
		return 0, verr
	}

	updated, err := d.repo.MarkRead(ctx, userID, ids)
	if err != nil {
		seg.Close(err)
		return 0, err
	}
	return updated, nil
}
