package batch

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/common/database"
	"github.com/uma-arai/venue-reservation/internal/queue"
	"github.com/uma-arai/venue-reservation/internal/repository"
)

// stores はバッチが使う接続をまとめたものです
type stores struct {
	db         *database.DB
	repoDB     *repository.DB
	redis      *redis.Client
	retryQueue *queue.RedisRetryQueue
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create redis connection: %w", err)
	}

	return &stores{
		db:         db,
		repoDB:     repository.NewDB(db.DB),
		redis:      rdb,
		retryQueue: queue.NewRedisRetryQueue(rdb, cfg.Retry.QueueKey),
	}, nil
}

func (s *stores) Close() error {
	if s == nil {
		return nil
	}
	if err := s.redis.Close(); err != nil {
		log.Printf("Failed to close redis connection: %v", err)
	}
	return s.db.Close()
}
