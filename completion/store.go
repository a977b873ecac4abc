/*
store.go - Persistence interfaces for completion records and tracking snapshots

PURPOSE:
  Defines the boundary between completion logic and durable storage.
  Records are bucketed by processing date (one day-log per calendar day).
  The tracking index is persisted separately as a snapshot so startup does
  not have to rescan every day-log.

KEY INTERFACES:
  LogStore:      per-day completion records (append, delete, load, list)
  SnapshotStore: tracking key set snapshot (load, save)

DELETE SEMANTICS:
  Unlike an append-only ledger, a completion can be undone. Delete removes
  the record with the given id from exactly one day-log and reports
  *NotFoundError when the day-log or the id does not exist.

IMPLEMENTATIONS:
  - store/daylog: JSON files, one per day, plus completion_tracking.json
  - completion/store: in-memory for testing/dev

SEE ALSO:
  - tracker.go: consumes both interfaces
  - service.go: completion actions built on LogStore
*/
package completion

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

// =============================================================================
// LOG STORE - Per-day completion records
// =============================================================================

// LogStore persists completion records grouped by processing date.
type LogStore interface {
	// Append adds rec to the day-log named by rec.ProcessingDate.
	Append(ctx context.Context, rec Record) error

	// Delete removes the record with id from the day-log of day.
	Delete(ctx context.Context, day Day, id string) (Record, error)

	// LoadDay returns the records of day in insertion order. A missing
	// day-log is an empty list, not an error.
	LoadDay(ctx context.Context, day Day) ([]Record, error)

	// Dates lists the days that have a day-log, newest first.
	Dates(ctx context.Context) ([]Day, error)
}

// =============================================================================
// SNAPSHOT STORE - Persisted tracking index
// =============================================================================

// Snapshot is the persisted form of the tracking index.
type Snapshot struct {
	Keys        []Key
	LastCleanup time.Time
	LastUpdated time.Time
}

// SnapshotStore persists the tracking index. Load returns ErrNoSnapshot
// when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

type snapshotJSON struct {
	Keys        []Key     `json:"keys"`
	LastCleanup time.Time `json:"last_cleanup"`
	LastUpdated time.Time `json:"last_updated"`
}

// MarshalJSON writes keys sorted so snapshots diff cleanly.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	keys := make([]Key, len(s.Keys))
	copy(keys, s.Keys)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if keys == nil {
		keys = []Key{}
	}
	return json.Marshal(snapshotJSON{
		Keys:        keys,
		LastCleanup: s.LastCleanup,
		LastUpdated: s.LastUpdated,
	})
}

// UnmarshalJSON also accepts the older "client_products" key list and
// timestamps without a zone offset. An unparseable timestamp decodes as
// the zero time instead of failing the snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Keys           []Key  `json:"keys"`
		ClientProducts []Key  `json:"client_products"`
		LastCleanup    string `json:"last_cleanup"`
		LastUpdated    string `json:"last_updated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	keys := raw.Keys
	if len(keys) == 0 {
		keys = raw.ClientProducts
	}
	*s = Snapshot{
		Keys:        keys,
		LastCleanup: parseSnapshotTime(raw.LastCleanup),
		LastUpdated: parseSnapshotTime(raw.LastUpdated),
	}
	return nil
}

// naiveTimeLayout matches ISO timestamps written without an offset.
const naiveTimeLayout = "2006-01-02T15:04:05.999999"

func parseSnapshotTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t
	}
	if t, err := time.ParseInLocation(naiveTimeLayout, v, time.Local); err == nil {
		return t
	}
	return time.Time{}
}
