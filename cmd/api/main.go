package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/common/database"
	"github.com/uma-arai/venue-reservation/internal/common/utils"
	"github.com/uma-arai/venue-reservation/internal/handler"
	"github.com/uma-arai/venue-reservation/internal/monitoring"
	"github.com/uma-arai/venue-reservation/internal/queue"
	"github.com/uma-arai/venue-reservation/internal/repository"
	"github.com/uma-arai/venue-reservation/internal/service/notification"
	"github.com/uma-arai/venue-reservation/internal/service/reservation"
)

const (
	projectName = "venue-reservation-api"
)

func main() {
	// API はタスクトークンを使わない
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v\nStack trace:\n%s", err, debug.Stack())
	}

	if err := utils.ConfigureTracing(cfg.EnableTracing); err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 接続
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to create database connection: %v", err)
	}
	defer db.Close()

	rdb, err := queue.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
	if err != nil {
		log.Fatalf("Failed to create redis connection: %v", err)
	}
	defer rdb.Close()

	// 2. 組み立て
	repoDB := repository.NewDB(db.DB)
	retryQueue := queue.NewRedisRetryQueue(rdb, cfg.Retry.QueueKey)
	dispatcher := notification.NewDispatcher(repository.NewNotificationRepository(repoDB), retryQueue, cfg.Retry.BaseDelay)
	svc := reservation.NewService(
		repository.NewVenueRepository(repoDB),
		repository.NewReservationRepository(repoDB),
		dispatcher,
		cfg.Reservation.Location,
	)

	go monitoring.CollectRetryQueueLength(ctx, retryQueue, 30*time.Second)

	// 3. ルーティング
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.HTTP.RequestTimeout))

	r.Handle("/metrics", promhttp.Handler())
	handler.NewHandler(svc, map[string]handler.HealthChecker{
		"database": db.PingContext,
		"redis":    func(ctx context.Context) error { return queue.HealthCheck(ctx, rdb) },
	}).Routes(r)

	var root http.Handler = r
	if cfg.EnableTracing {
		root = xray.Handler(xray.NewFixedSegmentNamer(projectName), r)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on :%d", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	log.Println("Server stopped")
}
