/*
controller.go - Pending-orders cache and refresh orchestration

PURPOSE:
  Owns the cached pending-order view. Reads are served from cache while it
  is fresh; otherwise the data source is queried, the rows aggregated
  against the completion tracker, and the cache replaced.

REFRESH PATHS:
  connected     fetch ok       -> aggregate, replace cache, is_cache=false
  disconnected  ProviderError  -> last good groups (or mock), is_cache=true
  error         other error    -> same fallback as disconnected
                or panic
  offline       offline mode   -> mock groups, source never called

  Fallback groups are always re-filtered through the tracker, so a pair
  completed while the source is down still disappears. The first mock
  batch of an outage is kept and served until the source recovers.

INVALIDATION:
  Invalidate marks the served cache stale so the next read refetches. The
  last good groups survive only as the fallback for a failed refetch.

CONCURRENCY:
  mu guards the cache; refreshMu serializes refreshes so concurrent stale
  reads trigger one upstream query, not many.

SEE ALSO:
  - scheduler.go: periodic Refresh
  - orders/aggregate.go: Aggregate and Filter
*/
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/orders"
)

// Connection states reported to clients.
const (
	StatusUnknown      = "unknown"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
	StatusOffline      = "offline"
)

// ConnectionStatus is the last observed state of the data source.
type ConnectionStatus struct {
	Status       string     `json:"status"`
	LastCheck    *time.Time `json:"last_check"`
	ErrorMessage string     `json:"error_message,omitempty"`
	OfflineMode  bool       `json:"offline_mode"`
}

// View is one consistent read of the cache.
type View struct {
	Groups     []orders.PendingOrderGroup
	Stats      orders.Stats
	IsCache    bool
	LastUpdate time.Time
	Connection ConnectionStatus
}

// Fallback supplies pre-aggregated groups when no real data is available.
type Fallback interface {
	Result(ctx context.Context) orders.Result
}

// Pinger is implemented by sources that can test connectivity cheaply.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune a Controller.
type Options struct {
	MaxAge  time.Duration
	Offline bool
	Clock   completion.Clock
	Logger  *zap.Logger
	Metrics *Metrics
}

// Controller is the DataCache plus its refresh policy.
type Controller struct {
	source   orders.Source
	fallback Fallback
	checker  orders.CompletionChecker
	maxAge   time.Duration
	clock    completion.Clock
	log      *zap.Logger
	metrics  *Metrics

	refreshMu sync.Mutex

	mu         sync.RWMutex
	groups     []orders.PendingOrderGroup
	stats      orders.Stats
	valid      bool
	isCache    bool
	fetchedAt  time.Time
	lastUpdate time.Time
	lastGood   []orders.PendingOrderGroup
	lastMock   []orders.PendingOrderGroup
	mockAt     time.Time
	status     ConnectionStatus
	offline    bool
}

// NewController wires a controller. checker may be nil.
func NewController(source orders.Source, fallback Fallback, checker orders.CompletionChecker, opts Options) *Controller {
	c := &Controller{
		source:   source,
		fallback: fallback,
		checker:  checker,
		maxAge:   opts.MaxAge,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		offline:  opts.Offline,
		status:   ConnectionStatus{Status: StatusUnknown},
	}
	if c.clock == nil {
		c.clock = completion.SystemClock{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("dashboard")
	return c
}

// =============================================================================
// READS
// =============================================================================

// PendingOrders returns the cached view while fresh, else refreshes.
func (c *Controller) PendingOrders(ctx context.Context) View {
	c.mu.RLock()
	if c.freshLocked() {
		v := c.viewLocked()
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	c.mu.RLock()
	if c.freshLocked() {
		v := c.viewLocked()
		c.mu.RUnlock()
		return v
	}
	c.mu.RUnlock()
	return c.refreshLocked(ctx)
}

// Status returns the last observed connection state.
func (c *Controller) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.OfflineMode = c.offline
	return s
}

// Offline reports whether offline mode is on.
func (c *Controller) Offline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offline
}

func (c *Controller) freshLocked() bool {
	if !c.valid {
		return false
	}
	return c.maxAge <= 0 || c.clock.Now().Sub(c.fetchedAt) < c.maxAge
}

func (c *Controller) viewLocked() View {
	groups := make([]orders.PendingOrderGroup, len(c.groups))
	for i, g := range c.groups {
		groups[i] = g.Clone()
	}
	s := c.status
	s.OfflineMode = c.offline
	return View{
		Groups:     groups,
		Stats:      c.stats,
		IsCache:    c.isCache,
		LastUpdate: c.lastUpdate,
		Connection: s,
	}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Refresh queries the source now and replaces the cache. It never fails:
// on error it serves the best fallback available.
func (c *Controller) Refresh(ctx context.Context) View {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

// refreshLocked runs one refresh. Callers hold refreshMu.
func (c *Controller) refreshLocked(ctx context.Context) View {
	c.mu.RLock()
	offline := c.offline
	c.mu.RUnlock()

	now := c.clock.Now()
	if offline {
		res := orders.Refilter(c.fallbackGroups(ctx), c.checker)
		c.store(res.Groups, res.Stats, false, now, ConnectionStatus{Status: StatusOffline, LastCheck: &now})
		c.metrics.observeRefresh(StatusOffline, res.Groups, false)
		c.log.Info("serving offline data", zap.Int("groups", len(res.Groups)))
		return c.view()
	}

	start := time.Now()
	rows, err := c.fetch(ctx)
	if err == nil {
		res := orders.Aggregator{Completed: c.checker, Log: c.log}.Aggregate(rows)
		c.mu.Lock()
		c.lastGood = res.Created
		c.lastMock = nil
		c.mu.Unlock()
		c.store(res.Groups, res.Stats, false, now, ConnectionStatus{Status: StatusConnected, LastCheck: &now})
		c.metrics.observeRefresh(StatusConnected, res.Groups, false)
		c.log.Info("pending orders refreshed",
			zap.Int("rows", len(rows)),
			zap.Int("groups", len(res.Groups)),
			zap.Duration("took", time.Since(start)))
		return c.view()
	}

	status := StatusError
	if errors.Is(err, completion.ErrProvider) {
		status = StatusDisconnected
	}

	c.mu.RLock()
	lastGood, lastMock, mockAt := c.lastGood, c.lastMock, c.mockAt
	lastUpdate := c.lastUpdate
	c.mu.RUnlock()

	var base []orders.PendingOrderGroup
	switch {
	case lastGood != nil:
		base = lastGood
		c.log.Warn("serving stale pending orders", zap.String("status", status), zap.Error(err))
	case lastMock != nil:
		base, lastUpdate = lastMock, mockAt
		c.log.Warn("serving cached mock pending orders", zap.String("status", status), zap.Error(err))
	default:
		base, lastUpdate = c.fallbackGroups(ctx), now
		c.mu.Lock()
		c.lastMock, c.mockAt = base, now
		c.mu.Unlock()
		c.log.Warn("no cached data, serving mock pending orders", zap.String("status", status), zap.Error(err))
	}
	res := orders.Refilter(base, c.checker)
	c.storeStale(res.Groups, res.Stats, lastUpdate, now, ConnectionStatus{Status: status, LastCheck: &now, ErrorMessage: err.Error()})
	c.metrics.observeRefresh(status, res.Groups, true)
	return c.view()
}

// Invalidate forces the next read to refetch.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// SetOffline toggles offline mode and invalidates the cache.
func (c *Controller) SetOffline(offline bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offline != offline {
		c.log.Info("offline mode changed", zap.Bool("offline", offline))
	}
	c.offline = offline
	c.valid = false
}

// TestConnection pings the source when it supports it, otherwise runs a
// full refresh, and returns the resulting status.
func (c *Controller) TestConnection(ctx context.Context) ConnectionStatus {
	p, ok := c.source.(Pinger)
	if !ok {
		return c.Refresh(ctx).Connection
	}
	now := c.clock.Now()
	st := ConnectionStatus{Status: StatusConnected, LastCheck: &now}
	if err := p.Ping(ctx); err != nil {
		st.Status = StatusDisconnected
		st.ErrorMessage = err.Error()
	}
	c.mu.Lock()
	c.status = st
	st.OfflineMode = c.offline
	c.mu.Unlock()
	return st
}

// fetch calls the source, turning a panic into an error.
func (c *Controller) fetch(ctx context.Context) (rows []orders.RawRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("data source panicked", zap.Any("panic", r))
			err = fmt.Errorf("data source panic: %v", r)
		}
	}()
	if c.source == nil {
		return nil, errors.New("no data source configured")
	}
	return c.source.FetchPendingRows(ctx)
}

// fallbackGroups returns a fallback batch in creation order.
func (c *Controller) fallbackGroups(ctx context.Context) []orders.PendingOrderGroup {
	if c.fallback == nil {
		return []orders.PendingOrderGroup{}
	}
	res := c.fallback.Result(ctx)
	if res.Created == nil {
		return []orders.PendingOrderGroup{}
	}
	return res.Created
}

func (c *Controller) store(groups []orders.PendingOrderGroup, stats orders.Stats, isCache bool, now time.Time, st ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
	c.stats = stats
	c.isCache = isCache
	c.valid = true
	c.fetchedAt = now
	c.lastUpdate = now
	c.status = st
}

func (c *Controller) storeStale(groups []orders.PendingOrderGroup, stats orders.Stats, lastUpdate, now time.Time, st ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
	c.stats = stats
	c.isCache = true
	c.valid = true
	c.fetchedAt = now
	c.lastUpdate = lastUpdate
	c.status = st
}

func (c *Controller) view() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked()
}
