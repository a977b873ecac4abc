// Package store provides in-memory completion stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/backorder-board/completion"
)

// =============================================================================
// MEMORY STORE - In-memory LogStore and SnapshotStore (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	days  map[string][]completion.Record
	snap  *completion.Snapshot
	fails map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		days:  make(map[string][]completion.Record),
		fails: make(map[string]error),
	}
}

// FailOn makes the named operation ("append", "delete", "load", "dates",
// "snapshot-load", "snapshot-save") return err. A nil err clears it.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fails, op)
		return
	}
	m.fails[op] = err
}

func (m *Memory) Append(_ context.Context, rec completion.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["append"]; err != nil {
		return err
	}
	m.days[rec.ProcessingDate] = append(m.days[rec.ProcessingDate], rec)
	return nil
}

func (m *Memory) Delete(_ context.Context, day completion.Day, id string) (completion.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fails["delete"]; err != nil {
		return completion.Record{}, err
	}

	recs, ok := m.days[day.String()]
	if !ok {
		return completion.Record{}, &completion.NotFoundError{Date: day}
	}
	for i, rec := range recs {
		if rec.ID == id {
			kept := make([]completion.Record, 0, len(recs)-1)
			kept = append(kept, recs[:i]...)
			kept = append(kept, recs[i+1:]...)
			m.days[day.String()] = kept
			return rec, nil
		}
	}
	return completion.Record{}, &completion.NotFoundError{Date: day, ID: id}
}

func (m *Memory) LoadDay(_ context.Context, day completion.Day) ([]completion.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fails["load"]; err != nil {
		return nil, err
	}
	recs := m.days[day.String()]
	out := make([]completion.Record, len(recs))
	copy(out, recs)
	return out, nil
}

func (m *Memory) Dates(_ context.Context) ([]completion.Day, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fails["dates"]; err != nil {
		return nil, err
	}
	days := make([]completion.Day, 0, len(m.days))
	for s := range m.days {
		d, err := completion.ParseDay(s)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days, nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshots returns a SnapshotStore view backed by the same memory.
func (m *Memory) Snapshots() *MemorySnapshots {
	return &MemorySnapshots{m: m}
}

type MemorySnapshots struct {
	m *Memory
}

func (s *MemorySnapshots) Load(_ context.Context) (completion.Snapshot, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if err := s.m.fails["snapshot-load"]; err != nil {
		return completion.Snapshot{}, err
	}
	if s.m.snap == nil {
		return completion.Snapshot{}, completion.ErrNoSnapshot
	}
	snap := *s.m.snap
	snap.Keys = append([]completion.Key(nil), s.m.snap.Keys...)
	return snap, nil
}

func (s *MemorySnapshots) Save(_ context.Context, snap completion.Snapshot) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fails["snapshot-save"]; err != nil {
		return err
	}
	snap.Keys = append([]completion.Key(nil), snap.Keys...)
	s.m.snap = &snap
	return nil
}
