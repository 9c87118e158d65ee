package batch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/monitoring"
	"github.com/uma-arai/venue-reservation/internal/queue"
	"github.com/uma-arai/venue-reservation/internal/repository"
)

// NotificationBatchService は書き込みに失敗した通知を再送するバッチです
type NotificationBatchService struct {
	stores           *stores
	notificationRepo repository.NotificationRepository
	retryQueue       queue.RetryQueue
	sfnClient        SFNClient
	cfg              *config.Config
	now              func() time.Time
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
// sfnClient が nil の場合はStep Functionsへ通知しません
func NewNotificationBatchService(ctx context.Context, cfg *config.Config, sfnClient SFNClient) (*NotificationBatchService, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &NotificationBatchService{
		stores:           st,
		notificationRepo: repository.NewNotificationRepository(st.repoDB),
		retryQueue:       st.retryQueue,
		sfnClient:        sfnClient,
		cfg:              cfg,
		now:              time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	return s.stores.Close()
}

// DrainResult は1回の再送処理の結果です
type DrainResult struct {
	Written     int `json:"written"`
	Rescheduled int `json:"rescheduled"`
	DeadLetter  int `json:"dead_letter"`
}

// Run は実行時刻を過ぎた再送ジョブを処理します
func (s *NotificationBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	result, err := s.Drain(ctx)
	if err != nil {
		seg.Close(err)
		return err
	}

	if err := sendTaskSuccess(ctx, s.sfnClient, s.cfg.SFN.TaskToken, result); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to send task success: %w", err)
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}
	if err := seg.AddMetadata("written", result.Written); err != nil {
		log.Printf("Failed to add written metadata: %v", err)
	}

	log.Printf("Notification retry batch completed successfully. Written: %d, Rescheduled: %d, Dead letter: %d, Duration: %v",
		result.Written, result.Rescheduled, result.DeadLetter, duration)
	return nil
}

// Drain は再送ジョブを最大 DrainLimit 件処理します
// 書き込みは dispatch_key で冪等なため、同じジョブを二重に処理しても通知は重複しません
func (s *NotificationBatchService) Drain(ctx context.Context) (DrainResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Drain")
	defer seg.Close(nil)

	var result DrainResult
	now := s.now()

	jobs, err := s.retryQueue.Due(ctx, now, s.cfg.Retry.DrainLimit)
	if err != nil {
		seg.Close(err)
		return result, fmt.Errorf("failed to load retry jobs: %w", err)
	}

	if err := seg.AddMetadata("job_count", len(jobs)); err != nil {
		log.Printf("Failed to add job_count metadata: %v", err)
	}
	log.Printf("Starting notification retry for %d jobs...", len(jobs))

	for _, job := range jobs {
		writeErr := s.notificationRepo.CreateNotifications(ctx, job.Records)
		if writeErr == nil {
			if err := s.retryQueue.Remove(ctx, job.ID); err != nil {
				// 次回も書き込み済みとして扱われるだけなので処理を続ける
				log.Printf("Failed to remove retry job %s: %v", job.ID, err)
			}
			monitoring.TrackNotification("written", len(job.Records))
			result.Written += len(job.Records)
			continue
		}

		job.Attempts++
		job.LastError = writeErr.Error()

		if job.Attempts >= s.cfg.Retry.MaxAttempts {
			log.Printf("Retry job %s failed %d times, moving to dead letter: %v", job.ID, job.Attempts, writeErr)
			if err := s.retryQueue.MarkFailed(ctx, job); err != nil {
				seg.Close(err)
				return result, fmt.Errorf("failed to move job %s to dead letter: %w", job.ID, err)
			}
			monitoring.TrackNotification("dead_letter", len(job.Records))
			result.DeadLetter++
			continue
		}

		delay := queue.Backoff(job.Attempts, s.cfg.Retry.BaseDelay, s.cfg.Retry.MaxDelay)
		log.Printf("Retry job %s failed (attempt %d), next attempt in %v: %v", job.ID, job.Attempts, delay, writeErr)
		if err := s.retryQueue.Schedule(ctx, job, now.Add(delay)); err != nil {
			seg.Close(err)
			return result, fmt.Errorf("failed to reschedule job %s: %w", job.ID, err)
		}
		result.Rescheduled++
	}

	return result, nil
}
