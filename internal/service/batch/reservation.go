package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/venue-reservation/internal/common/config"
	"github.com/uma-arai/venue-reservation/internal/common/utils"
	"github.com/uma-arai/venue-reservation/internal/model"
	"github.com/uma-arai/venue-reservation/internal/repository"
	"github.com/uma-arai/venue-reservation/internal/service/notification"
	"github.com/uma-arai/venue-reservation/internal/service/reservation"
)

// ReservationTransitioner は予約のステータス遷移を行います
type ReservationTransitioner interface {
	TransitionReservation(ctx context.Context, actor model.Actor, reservationID int64, target string) (reservation.TransitionResult, error)
}

// ReservationBatchService は終了時刻を過ぎた確定済み予約を completed にするバッチです
type ReservationBatchService struct {
	stores          *stores
	reservationRepo repository.ReservationRepository
	transitioner    ReservationTransitioner
	sfnClient       SFNClient
	cfg             *config.Config
	now             func() time.Time
}

// NewReservationBatchService は新しいReservationBatchServiceを作成します
// sfnClient が nil の場合はStep Functionsへ通知しません
func NewReservationBatchService(ctx context.Context, cfg *config.Config, sfnClient SFNClient) (*ReservationBatchService, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reservationRepo := repository.NewReservationRepository(st.repoDB)
	dispatcher := notification.NewDispatcher(
		repository.NewNotificationRepository(st.repoDB),
		st.retryQueue,
		cfg.Retry.BaseDelay,
	)
	svc := reservation.NewService(
		repository.NewVenueRepository(st.repoDB),
		reservationRepo,
		dispatcher,
		cfg.Reservation.Location,
	)

	return &ReservationBatchService{
		stores:          st,
		reservationRepo: reservationRepo,
		transitioner:    svc,
		sfnClient:       sfnClient,
		cfg:             cfg,
		now:             time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *ReservationBatchService) Close() error {
	return s.stores.Close()
}

// Run は完了バッチを実行します
func (s *ReservationBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "ReservationBatchService.Run")
	defer seg.Close(nil)

	startTime := time.Now()

	events, err := s.completeDueReservations(ctx)
	if err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to complete reservations: %w", err))
	}

	// イベントを発行
	if err := s.sendTaskSuccess(ctx, events); err != nil {
		seg.Close(err)
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := time.Since(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		log.Printf("Failed to add duration metadata: %v", err)
	}
	if err := seg.AddMetadata("completed_count", len(events)); err != nil {
		log.Printf("Failed to add completed_count metadata: %v", err)
	}

	log.Printf("Reservation completion batch completed successfully. Completed: %d, Duration: %v", len(events), duration)
	return nil
}

// completeDueReservations は対象の予約を1件ずつ completed に遷移します
// 他の操作と競合した予約や既に遷移済みの予約はスキップします
func (s *ReservationBatchService) completeDueReservations(ctx context.Context) ([]model.ReservationEvent, error) {
	due, err := s.reservationRepo.ListDueForCompletion(ctx, s.now(), s.cfg.Reservation.CompletionBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservations due for completion: %w", err)
	}

	log.Printf("Found %d confirmed reservations past their end time", len(due))

	events := make([]model.ReservationEvent, 0, len(due))
	for _, res := range due {
		result, err := s.transitioner.TransitionReservation(ctx, model.SystemActor(), res.ID, string(model.StatusCompleted))
		switch {
		case err == nil:
			events = append(events, result.Event)
		case errors.Is(err, model.ErrConflict), errors.Is(err, model.ErrInvalidTransition), errors.Is(err, model.ErrNotFound):
			log.Printf("Skipping reservation %d: %v", res.ID, err)
		case errors.Is(err, model.ErrStorageUnavailable):
			// DB障害時は残りも失敗するため中断する
			return events, fmt.Errorf("reservation %d: %w", res.ID, err)
		default:
			log.Printf("Failed to complete reservation %d: %v", res.ID, err)
		}
	}

	return events, nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、イベントを返却します
func (s *ReservationBatchService) sendTaskSuccess(ctx context.Context, events []model.ReservationEvent) error {
	if err := sendTaskSuccess(ctx, s.sfnClient, s.cfg.SFN.TaskToken, map[string]any{"events": events}); err != nil {
		return err
	}
	log.Printf("Successfully sent task success with %d events", len(events))
	return nil
}
