/*
scheduler.go - Periodic pending-orders refresh

PURPOSE:
  Refreshes the pending-orders cache on a fixed interval so the board
  stays current without user action. On-demand refreshes (after a
  completion or from the refresh endpoint) still happen independently.

CONFIGURATION:
  - Interval: how often to refresh (default: 3 minutes)
  - Enabled:  whether the scheduler runs at all (default: true)

USAGE:
  scheduler := NewScheduler(controller, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - controller.go: Refresh
*/
package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Refresher is what the scheduler drives.
type Refresher interface {
	Refresh(ctx context.Context) View
}

// Scheduler calls Refresh on a ticker.
type Scheduler struct {
	Target   Refresher
	Interval time.Duration
	Enabled  bool

	log     *zap.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
	runs    int
}

// NewScheduler creates a scheduler with the default interval.
func NewScheduler(target Refresher, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Target:   target,
		Interval: 3 * time.Minute,
		Enabled:  true,
		log:      log.Named("scheduler"),
	}
}

// Start begins the scheduler. The first refresh runs immediately.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.log.Info("started", zap.Duration("interval", s.Interval))
}

// Stop stops the scheduler and waits for an in-flight refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker = nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		s.log.Info("stopped")
	}
}

func (s *Scheduler) run(ticker *time.Ticker, stop chan struct{}) {
	defer s.wg.Done()

	s.tick(stop)

	for {
		select {
		case <-ticker.C:
			s.tick(stop)
		case <-stop:
			return
		}
	}
}

// tick runs one refresh. Closing stop cancels it.
func (s *Scheduler) tick(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if stop != nil {
		go func() {
			select {
			case <-stop:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	v := s.Target.Refresh(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.runs++
	s.mu.Unlock()

	s.log.Debug("scheduled refresh",
		zap.String("status", v.Connection.Status),
		zap.Int("groups", len(v.Groups)),
		zap.Bool("is_cache", v.IsCache))
}

// RunNow triggers an immediate refresh (for testing/admin).
func (s *Scheduler) RunNow() {
	s.tick(nil)
}

// Runs returns how many refreshes the scheduler has performed.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// NextRunTime returns when the next scheduled refresh will occur.
func (s *Scheduler) NextRunTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun.IsZero() {
		return time.Now()
	}
	return s.lastRun.Add(s.Interval)
}
