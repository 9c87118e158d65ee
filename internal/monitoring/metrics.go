package monitoring

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venue_reservations_created_total",
			Help: "Reservation create attempts by outcome",
		},
		[]string{"outcome"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venue_reservation_transitions_total",
			Help: "Reservation status transitions by edge and outcome",
		},
		[]string{"from", "to", "outcome"},
	)

	notificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "venue_notifications_dispatched_total",
			Help: "Notification writes by result",
		},
		[]string{"result"},
	)

	retryQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "venue_notification_retry_queue_length",
			Help: "Notification jobs waiting for retry",
		},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "venue_reservation_operation_duration_seconds",
			Help:    "Duration of facade operations",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"operation"},
	)
)

// TrackReservationCreated records the outcome of a create request.
func TrackReservationCreated(outcome string) {
	reservationsCreated.WithLabelValues(outcome).Inc()
}

// TrackTransition records the outcome of a transition request.
func TrackTransition(from, to, outcome string) {
	transitions.WithLabelValues(from, to, outcome).Inc()
}

// TrackNotification は通知書き込みの結果(written, deferred, dropped, retried, failed)を記録します
func TrackNotification(result string, n int) {
	notificationsDispatched.WithLabelValues(result).Add(float64(n))
}

// ObserveOperation records how long a facade operation took.
func ObserveOperation(operation string, start time.Time) {
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// QueueLengther is satisfied by the notification retry queue.
type QueueLengther interface {
	Len(ctx context.Context) (int64, error)
}

// CollectRetryQueueLength は再送キューの長さを定期的にゲージへ反映します。ctxの終了で止まります
func CollectRetryQueueLength(ctx context.Context, q QueueLengther, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.Len(ctx)
			if err != nil {
				log.Printf("Failed to read retry queue length: %v", err)
				continue
			}
			retryQueueLength.Set(float64(n))
		}
	}
}
