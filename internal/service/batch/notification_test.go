package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/queue"
)

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled int
	createNotificationsError  error
	notifications             []model.NotificationRecord
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	m.createNotificationsCalled++
	if m.createNotificationsError != nil {
		return m.createNotificationsError
	}
	m.notifications = append(m.notifications, records...)
	return nil
}

func (m *MockNotificationRepository) Create(ctx context.Context, tx *sqlx.Tx, record *model.NotificationRecord) error {
	return nil
}

func (m *MockNotificationRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]model.NotificationRecord, error) {
	return nil, nil
}

func (m *MockNotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	return 0, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, userID int64, ids []int64) (int, error) {
	return 0, nil
}

// MockRetryQueue はテスト用の再送キューです
type MockRetryQueue struct {
	due         []queue.RetryJob
	dueError    error
	removed     []string
	failed      []queue.RetryJob
	scheduled   []queue.RetryJob
	scheduledAt []time.Time
}

func (m *MockRetryQueue) Schedule(ctx context.Context, job queue.RetryJob, at time.Time) error {
	m.scheduled = append(m.scheduled, job)
	m.scheduledAt = append(m.scheduledAt, at)
	return nil
}

func (m *MockRetryQueue) Due(ctx context.Context, now time.Time, limit int) ([]queue.RetryJob, error) {
	if len(m.due) > limit {
		return m.due[:limit], m.dueError
	}
	return m.due, m.dueError
}

func (m *MockRetryQueue) Remove(ctx context.Context, jobID string) error {
	m.removed = append(m.removed, jobID)
	return nil
}

func (m *MockRetryQueue) MarkFailed(ctx context.Context, job queue.RetryJob) error {
	m.failed = append(m.failed, job)
	return nil
}

func (m *MockRetryQueue) Len(ctx context.Context) (int64, error) {
	return int64(len(m.due)), nil
}

// newTestNotificationBatchService はテスト用のNotificationBatchServiceを作成します
func newTestNotificationBatchService(repo *MockNotificationRepository, q *MockRetryQueue, now time.Time) *NotificationBatchService {
	cfg := &config.Config{}
	cfg.Retry.BaseDelay = time.Minute
	cfg.Retry.MaxDelay = 10 * time.Minute
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.DrainLimit = 10

	return &NotificationBatchService{
		notificationRepo: repo,
		retryQueue:       q,
		cfg:              cfg,
		now:              func() time.Time { return now },
	}
}

func newTestJob(id string, attempts int, now time.Time) queue.RetryJob {
	records := []model.NotificationRecord{
		model.NewReservationNotificationRecord(9, 1, model.StatusAccepted, "Your booking (ID: 1) for venue 'Sunset Hall' was accepted.", now),
	}
	job := queue.NewRetryJob(records, errors.New("db down"), now)
	job.ID = id
	job.Attempts = attempts
	return job
}

func TestNotificationBatchService_Run(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run")
	defer seg.Close(nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		jobs            []queue.RetryJob
		mockError       error
		wantErr         bool
		wantWritten     int
		wantRemoved     int
		wantRescheduled int
		wantFailed      int
	}{
		{
			name:    "0件のジョブを正常に処理",
			jobs:    []queue.RetryJob{},
			wantErr: false,
		},
		{
			name:        "1件のジョブを書き込み",
			jobs:        []queue.RetryJob{newTestJob("job-1", 1, now)},
			wantWritten: 1,
			wantRemoved: 1,
		},
		{
			name:        "2件のジョブを書き込み",
			jobs:        []queue.RetryJob{newTestJob("job-1", 1, now), newTestJob("job-2", 2, now)},
			wantWritten: 2,
			wantRemoved: 2,
		},
		{
			name:            "書き込み失敗は再スケジュール",
			jobs:            []queue.RetryJob{newTestJob("job-1", 1, now)},
			mockError:       errors.New("db still down"),
			wantRescheduled: 1,
		},
		{
			name:       "上限に達したらデッドレター",
			jobs:       []queue.RetryJob{newTestJob("job-1", 2, now)},
			mockError:  errors.New("db still down"),
			wantFailed: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := &MockNotificationRepository{createNotificationsError: tt.mockError}
			mockQueue := &MockRetryQueue{due: tt.jobs}

			service := newTestNotificationBatchService(mockRepo, mockQueue, now)
			err := service.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}

			if mockRepo.createNotificationsCalled != len(tt.jobs) {
				t.Errorf("Expected CreateNotifications to be called %d times, got %d", len(tt.jobs), mockRepo.createNotificationsCalled)
			}
			if len(mockRepo.notifications) != tt.wantWritten {
				t.Errorf("Expected %d notifications, got %d", tt.wantWritten, len(mockRepo.notifications))
			}
			if len(mockQueue.removed) != tt.wantRemoved {
				t.Errorf("Expected %d removed jobs, got %d", tt.wantRemoved, len(mockQueue.removed))
			}
			if len(mockQueue.scheduled) != tt.wantRescheduled {
				t.Errorf("Expected %d rescheduled jobs, got %d", tt.wantRescheduled, len(mockQueue.scheduled))
			}
			if len(mockQueue.failed) != tt.wantFailed {
				t.Errorf("Expected %d dead letter jobs, got %d", tt.wantFailed, len(mockQueue.failed))
			}
		})
	}
}

func TestNotificationBatchService_Backoff(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Backoff")
	defer seg.Close(nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	mockRepo := &MockNotificationRepository{createNotificationsError: errors.New("db down")}
	mockQueue := &MockRetryQueue{due: []queue.RetryJob{newTestJob("job-1", 1, now)}}

	service := newTestNotificationBatchService(mockRepo, mockQueue, now)
	result, err := service.Drain(ctx)
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if result.Rescheduled != 1 {
		t.Fatalf("Expected 1 rescheduled job, got %d", result.Rescheduled)
	}

	job := mockQueue.scheduled[0]
	if job.Attempts != 2 {
		t.Errorf("Expected attempts 2, got %d", job.Attempts)
	}
	if job.LastError != "db down" {
		t.Errorf("Expected last error 'db down', got %q", job.LastError)
	}
	// 2回目の失敗後は base * 2
	if want := now.Add(2 * time.Minute); !mockQueue.scheduledAt[0].Equal(want) {
		t.Errorf("Expected next attempt at %v, got %v", want, mockQueue.scheduledAt[0])
	}
}

func TestNotificationBatchService_DueError(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_DueError")
	defer seg.Close(nil)

	mockQueue := &MockRetryQueue{dueError: errors.New("redis down")}
	service := newTestNotificationBatchService(&MockNotificationRepository{}, mockQueue, time.Now())

	if err := service.Run(ctx); err == nil {
		t.Error("Expected error when retry queue is unavailable")
	}
}

func TestNotificationBatchService_SendTaskSuccess(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_SendTaskSuccess")
	defer seg.Close(nil)

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("再送結果をStep Functionsに返す", func(t *testing.T) {
		repo := &MockNotificationRepository{}
		q := &MockRetryQueue{due: []queue.RetryJob{newTestJob("job-1", 1, now)}}
		sfnClient := &MockSFNClient{}
		service := newTestNotificationBatchService(repo, q, now)
		service.sfnClient = sfnClient
		service.cfg.SFN.TaskToken = "test-token"

		require.NoError(t, service.Run(ctx))
		require.NotNil(t, sfnClient.input)
		assert.Equal(t, "test-token", aws.ToString(sfnClient.input.TaskToken))
		assert.JSONEq(t, `{"written":1,"rescheduled":0,"dead_letter":0}`, aws.ToString(sfnClient.input.Output))
	})

	t.Run("SendTaskSuccessエラー", func(t *testing.T) {
		service := newTestNotificationBatchService(&MockNotificationRepository{}, &MockRetryQueue{}, now)
		service.sfnClient = &MockSFNClient{err: errors.New("task timed out")}
		service.cfg.SFN.TaskToken = "test-token"

		assert.Error(t, service.Run(ctx))
	})
}
