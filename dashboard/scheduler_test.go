package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRefresher struct {
	calls atomic.Int32
	block chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) View {
	r.calls.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return View{Connection: ConnectionStatus{Status: StatusConnected}}
}

func TestScheduler_RefreshesImmediatelyAndOnInterval(t *testing.T) {
	// GIVEN: A scheduler with a short interval
	r := &countingRefresher{}
	s := NewScheduler(r, nil)
	s.Interval = 10 * time.Millisecond

	// WHEN: It runs for a while
	s.Start()
	defer s.Stop()

	// THEN: It refreshes repeatedly
	assert.Eventually(t, func() bool { return s.Runs() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, s.NextRunTime().IsZero())
}

func TestScheduler_Disabled(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, nil)
	s.Enabled = false

	s.Start()
	s.Stop()

	assert.Equal(t, int32(0), r.calls.Load())
}

func TestScheduler_StopCancelsInFlightRefresh(t *testing.T) {
	// GIVEN: A refresh that blocks until cancelled
	r := &countingRefresher{block: make(chan struct{})}
	s := NewScheduler(r, nil)
	s.Interval = time.Hour
	s.Start()
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// WHEN: The scheduler stops
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	// THEN: Stop returns promptly
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestScheduler_StartTwiceIsNoop(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, nil)
	s.Interval = time.Hour

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return s.Runs() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), r.calls.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	r := &countingRefresher{}
	s := NewScheduler(r, nil)

	s.RunNow()

	assert.Equal(t, 1, s.Runs())
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestScheduler_DrivesController(t *testing.T) {
	f := newFixture()
	s := NewScheduler(f.ctrl, nil)

	s.RunNow()

	assert.Equal(t, int32(1), f.source.calls.Load())
	assert.Equal(t, StatusConnected, f.ctrl.Status().Status)
}
