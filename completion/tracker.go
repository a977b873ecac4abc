/*
tracker.go - Completion tracking index

PURPOSE:
  Answers "has this client/product pair been completed?" in O(1) so the
  order aggregator can hide finished work. The index is derived data: the
  day-logs are the source of truth and the index can always be rebuilt
  from them.

LIFECYCLE:
  Load:     snapshot present -> populate, reconcile yesterday+today, persist
            snapshot missing or unreadable -> Rebuild
  Rebuild:  clear, union keys of every day-log in the rebuild window
  Mark:     add key, persist (write-through), prune when cleanup is due
  Release:  drop key only when no record for it is left in the window

CONCURRENCY:
  One RWMutex guards the key set and its bookkeeping. Writers hold it
  across day-log reads and the snapshot save, so two mutations never
  interleave and the snapshot always reflects a consistent set.

SEE ALSO:
  - store.go: LogStore and SnapshotStore
  - service.go: drives MarkCompleted and Release
*/
package completion

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// TrackerConfig tunes the rebuild window and the pruning policy.
type TrackerConfig struct {
	// RebuildWindowDays is how many days back Rebuild scans. Release scans
	// the larger of this and RetentionDays.
	RebuildWindowDays int

	// CleanupInterval is the minimum time between pruning passes.
	CleanupInterval time.Duration

	// RetentionDays drops keys with no record in the last N days.
	// 0 disables pruning.
	RetentionDays int

	Clock  Clock
	Logger *zap.Logger
}

// DefaultTrackerConfig returns the production defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		RebuildWindowDays: 30,
		CleanupInterval:   6 * time.Hour,
		RetentionDays:     90,
	}
}

// TrackingStatus is the diagnostic view of the index.
type TrackingStatus struct {
	TrackingCount   int        `json:"tracking_count"`
	LastCleanup     *time.Time `json:"last_cleanup"`
	LastUpdated     *time.Time `json:"last_updated"`
	PersistedToDisk bool       `json:"persisted_to_disk"`
	LoadedFromDisk  bool       `json:"loaded_from_disk"`
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker is the in-memory set of completed keys.
type Tracker struct {
	logs  LogStore
	snaps SnapshotStore
	cfg   TrackerConfig
	clock Clock
	log   *zap.Logger

	mu             sync.RWMutex
	keys           map[Key]struct{}
	lastCleanup    time.Time
	lastUpdated    time.Time
	persisted      bool
	loadedFromDisk bool
}

// NewTracker creates an empty tracker. Call Load before serving reads.
func NewTracker(logs LogStore, snaps SnapshotStore, cfg TrackerConfig) *Tracker {
	t := &Tracker{
		logs:  logs,
		snaps: snaps,
		cfg:   cfg,
		clock: cfg.Clock,
		log:   cfg.Logger,
		keys:  make(map[Key]struct{}),
	}
	if t.clock == nil {
		t.clock = SystemClock{}
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	t.log = t.log.Named("tracker")
	return t
}

// Load restores the index from the snapshot, or rebuilds it when there is
// no usable snapshot.
func (t *Tracker) Load(ctx context.Context) error {
	snap, err := t.snaps.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			t.log.Warn("tracking snapshot unusable, rebuilding", zap.Error(err))
		}
		return t.Rebuild(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.keys = make(map[Key]struct{}, len(snap.Keys))
	for _, k := range snap.Keys {
		if k != "" {
			t.keys[k] = struct{}{}
		}
	}
	t.lastCleanup = snap.LastCleanup
	t.lastUpdated = snap.LastUpdated
	t.loadedFromDisk = true

	// Completions written after the last snapshot save but before a crash
	// can only be in the most recent day-logs.
	today := t.today()
	added := t.addDaysLocked(ctx, Range(today.AddDays(-1), today))

	t.log.Info("tracking index loaded",
		zap.Int("keys", len(t.keys)),
		zap.Int("reconciled", added))
	t.persistLocked(ctx)
	return nil
}

// Rebuild discards the index and recomputes it from the day-logs in the
// rebuild window.
func (t *Tracker) Rebuild(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.keys = make(map[Key]struct{})
	t.loadedFromDisk = false
	t.addDaysLocked(ctx, t.windowLocked(t.cfg.RebuildWindowDays))
	if err := ctx.Err(); err != nil {
		return err
	}

	now := t.clock.Now()
	t.lastCleanup = now
	t.lastUpdated = now
	t.log.Info("tracking index rebuilt",
		zap.Int("keys", len(t.keys)),
		zap.Int("window_days", t.cfg.RebuildWindowDays))
	t.persistLocked(ctx)
	return nil
}

// MarkCompleted adds the pair to the index. It returns false when the pair
// cannot be keyed.
func (t *Tracker) MarkCompleted(ctx context.Context, client, product string) bool {
	k, err := NormalizeKey(client, product)
	if err != nil {
		t.log.Error("cannot mark completion", zap.Error(err))
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.keys[k] = struct{}{}
	now := t.clock.Now()
	t.lastUpdated = now
	if now.Sub(t.lastCleanup) >= t.cfg.CleanupInterval {
		t.cleanupLocked(ctx)
	}
	t.persistLocked(ctx)
	return true
}

// IsCompleted reports whether the pair is in the index. Unkeyable pairs are
// never completed.
func (t *Tracker) IsCompleted(client, product string) bool {
	k, err := NormalizeKey(client, product)
	if err != nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.keys[k]
	return ok
}

// Remove drops the pair from the index unconditionally.
func (t *Tracker) Remove(ctx context.Context, client, product string) error {
	k, err := NormalizeKey(client, product)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[k]; !ok {
		return nil
	}
	delete(t.keys, k)
	t.lastUpdated = t.clock.Now()
	t.persistLocked(ctx)
	return nil
}

// Release drops the pair only if no day-log in the rebuild or retention
// window still holds a record for it. It reports whether the key was removed.
func (t *Tracker) Release(ctx context.Context, client, product string) (bool, error) {
	k, err := NormalizeKey(client, product)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[k]; !ok {
		return false, nil
	}

	for _, day := range t.windowLocked(max(t.cfg.RebuildWindowDays, t.cfg.RetentionDays)) {
		recs, err := t.logs.LoadDay(ctx, day)
		if err != nil {
			return false, err
		}
		for _, rec := range recs {
			if rk, err := rec.Key(); err == nil && rk == k {
				t.log.Debug("key still backed by a record",
					zap.String("key", string(k)),
					zap.String("record", rec.ID),
					zap.Stringer("day", day))
				return false, nil
			}
		}
	}

	delete(t.keys, k)
	t.lastUpdated = t.clock.Now()
	t.persistLocked(ctx)
	return true, nil
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

// Status returns diagnostics for the tracking endpoint.
func (t *Tracker) Status() TrackingStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return TrackingStatus{
		TrackingCount:   len(t.keys),
		LastCleanup:     timePtr(t.lastCleanup),
		LastUpdated:     timePtr(t.lastUpdated),
		PersistedToDisk: t.persisted,
		LoadedFromDisk:  t.loadedFromDisk,
	}
}

// =============================================================================
// INTERNALS - callers hold t.mu for writing
// =============================================================================

func (t *Tracker) today() Day {
	return DayOf(t.clock.Now())
}

func (t *Tracker) windowLocked(days int) []Day {
	today := t.today()
	return Range(today.AddDays(-days), today)
}

// addDaysLocked unions the keys of the given day-logs into the index.
// Unreadable days are logged and skipped.
func (t *Tracker) addDaysLocked(ctx context.Context, days []Day) int {
	added := 0
	for _, day := range days {
		if ctx.Err() != nil {
			return added
		}
		recs, err := t.logs.LoadDay(ctx, day)
		if err != nil {
			t.log.Error("skipping day-log", zap.Stringer("day", day), zap.Error(err))
			continue
		}
		for _, rec := range recs {
			k, err := rec.Key()
			if err != nil {
				t.log.Warn("record cannot be keyed",
					zap.String("record", rec.ID),
					zap.Stringer("day", day),
					zap.Error(err))
				continue
			}
			if _, ok := t.keys[k]; !ok {
				t.keys[k] = struct{}{}
				added++
			}
		}
	}
	return added
}

// cleanupLocked prunes keys that no record in the retention window backs.
// If any day-log in the window is unreadable nothing is pruned.
func (t *Tracker) cleanupLocked(ctx context.Context) {
	now := t.clock.Now()
	if t.cfg.RetentionDays <= 0 {
		t.lastCleanup = now
		return
	}

	backed := make(map[Key]struct{})
	for _, day := range t.windowLocked(t.cfg.RetentionDays) {
		recs, err := t.logs.LoadDay(ctx, day)
		if err != nil {
			t.log.Warn("cleanup skipped", zap.Stringer("day", day), zap.Error(err))
			return
		}
		for _, rec := range recs {
			if k, err := rec.Key(); err == nil {
				backed[k] = struct{}{}
			}
		}
	}

	pruned := 0
	for k := range t.keys {
		if _, ok := backed[k]; !ok {
			delete(t.keys, k)
			pruned++
		}
	}
	t.lastCleanup = now
	t.log.Info("tracking cleanup", zap.Int("pruned", pruned), zap.Int("keys", len(t.keys)))
}

// persistLocked saves the snapshot. A failed save leaves the in-memory
// index authoritative until the next successful save.
func (t *Tracker) persistLocked(ctx context.Context) {
	keys := make([]Key, 0, len(t.keys))
	for k := range t.keys {
		keys = append(keys, k)
	}
	snap := Snapshot{Keys: keys, LastCleanup: t.lastCleanup, LastUpdated: t.lastUpdated}
	if err := t.snaps.Save(ctx, snap); err != nil {
		t.persisted = false
		t.log.Error("tracking snapshot not saved", zap.Error(err))
		return
	}
	t.persisted = true
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
