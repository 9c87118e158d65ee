package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/uma-arai/venue-reservation/internal/model"
)

// RetryJob は書き込みに失敗した通知レコードの再送ジョブです
// 1回の遷移で作成される通知をまとめて保持します
type RetryJob struct {
	ID         string                     `json:"id"`
	Records    []model.NotificationRecord `json:"records"`
	Attempts   int                        `json:"attempts"`
	LastError  string                     `json:"last_error,omitempty"`
	EnqueuedAt time.Time                  `json:"enqueued_at"`
}

// NewRetryJob creates a job for records whose first write failed.
func NewRetryJob(records []model.NotificationRecord, cause error, now time.Time) RetryJob {
	job := RetryJob{
		ID:         uuid.NewString(),
		Records:    records,
		Attempts:   1,
		EnqueuedAt: now,
	}
	if cause != nil {
		job.LastError = cause.Error()
	}
	return job
}

// RetryQueue は通知再送キューのインターフェースです
type RetryQueue interface {
	Schedule(ctx context.Context, job RetryJob, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]RetryJob, error)
	Remove(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, job RetryJob) error
	Len(ctx context.Context) (int64, error)
}

// RedisRetryQueue はRedisのソート済みセットで実行予定時刻を管理します
// key: 実行予定(score = unix秒), key:jobs: ジョブ本体, key:dead: 最終的に失敗したジョブ
type RedisRetryQueue struct {
	rdb redis.Cmdable
	key string
}

func NewRedisRetryQueue(rdb redis.Cmdable, key string) *RedisRetryQueue {
	return &RedisRetryQueue{rdb: rdb, key: key}
}

func (q *RedisRetryQueue) jobsKey() string {
	return q.key + ":jobs"
}

func (q *RedisRetryQueue) deadKey() string {
	return q.key + ":dead"
}

// Schedule はジョブを登録し、at以降に取り出せるようにします。既存のジョブは上書きします
func (q *RedisRetryQueue) Schedule(ctx context.Context, job RetryJob, at time.Time) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal retry job %s: %w", job.ID, err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobsKey(), job.ID, payload)
		pipe.ZAdd(ctx, q.key, redis.Z{Score: float64(at.Unix()), Member: job.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retry job %s: %w", job.ID, err)
	}
	return nil
}

// Due は実行予定時刻を過ぎたジョブを古い順に最大limit件返します
// 本体が見つからない、または壊れているジョブはキューから取り除きます
func (q *RedisRetryQueue) Due(ctx context.Context, now time.Time, limit int) ([]RetryJob, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due retry jobs: %w", err)
	}
	if len(ids) == 0 {
		return []RetryJob{}, nil
	}

	values, err := q.rdb.HMGet(ctx, q.jobsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load retry jobs: %w", err)
	}

	jobs := make([]RetryJob, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			log.Printf("Retry job %s has no payload, removing", ids[i])
			if err := q.Remove(ctx, ids[i]); err != nil {
				log.Printf("Failed to remove retry job %s: %v", ids[i], err)
			}
			continue
		}

		var job RetryJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			log.Printf("Retry job %s is corrupted, removing: %v", ids[i], err)
			if err := q.Remove(ctx, ids[i]); err != nil {
				log.Printf("Failed to remove retry job %s: %v", ids[i], err)
			}
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Remove はジョブをキューから削除します
func (q *RedisRetryQueue) Remove(ctx context.Context, jobID string) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.key, jobID)
		pipe.HDel(ctx, q.jobsKey(), jobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove retry job %s: %w", jobID, err)
	}
	return nil
}

// MarkFailed は再送を諦めたジョブをデッドレターに移します
func (q *RedisRetryQueue) MarkFailed(ctx context.Context, job RetryJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal retry job %s: %w", job.ID, err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.deadKey(), payload)
		pipe.ZRem(ctx, q.key, job.ID)
		pipe.HDel(ctx, q.jobsKey(), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to move retry job %s to dead letter: %w", job.ID, err)
	}
	return nil
}

// Len returns the number of scheduled jobs.
func (q *RedisRetryQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count retry jobs: %w", err)
	}
	return n, nil
}

// Backoff は attempt 回目の失敗後の待ち時間を返します: base * 2^(attempt-1)、上限 max
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
