package monitoring

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type fakeQueue struct {
	calls atomic.Int32
}

func (f *fakeQueue) Len(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 4, nil
}

func TestTrackers(t *testing.T) {
	before := testutil.ToFloat64(transitions.WithLabelValues("pending", "accepted", "ok"))
	TrackTransition("pending", "accepted", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(transitions.WithLabelValues("pending", "accepted", "ok")))

	before = testutil.ToFloat64(notificationsDispatched.WithLabelValues("written"))
	TrackNotification("written", 2)
	assert.Equal(t, before+2, testutil.ToFloat64(notificationsDispatched.WithLabelValues("written")))

	before = testutil.ToFloat64(reservationsCreated.WithLabelValues("created"))
	TrackReservationCreated("created")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationsCreated.WithLabelValues("created")))
}

func TestCollectRetryQueueLength(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &fakeQueue{}

	done := make(chan struct{})
	go func() {
		CollectRetryQueueLength(ctx, q, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return q.calls.Load() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, float64(4), testutil.ToFloat64(retryQueueLength))
}
