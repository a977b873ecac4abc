/*
Package daylog provides a file-backed implementation of the completion stores.

PURPOSE:
  Persists completion records as one JSON array per calendar day, and the
  tracking index as a single JSON snapshot, under one data directory.

LAYOUT:
  {dir}/completed_2026-10-14.json   records processed on that day
  {dir}/completion_tracking.json    tracking index snapshot

INTERFACES IMPLEMENTED:
  completion.LogStore:      Store
  completion.SnapshotStore: SnapshotFile

CONCURRENCY:
  Every read-modify-write of a day-log holds that day's mutex, so two
  completions on the same day never lose each other's record. Different
  days proceed in parallel. Writes go to a temp file in the same
  directory and are renamed into place, so a crash leaves either the old
  or the new file, never a truncated one.

CORRUPTION:
  An empty or unparseable day-log reads as no records and is logged. A
  write to a corrupt day-log first moves it aside as
  completed_YYYY-MM-DD.json.corrupt-{unix} so the bytes stay recoverable.

SEE ALSO:
  - completion/store.go: interface definitions
  - completion/store/memory.go: in-memory implementation for testing
*/
package daylog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/backorder-board/completion"
)

const (
	filePrefix = "completed_"
	fileSuffix = ".json"
)

// Store implements completion.LogStore on per-day JSON files.
type Store struct {
	dir string
	log *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a store rooted at dir. The directory is created on first write.
func New(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		dir:   dir,
		log:   log.Named("daylog"),
		locks: make(map[string]*sync.Mutex),
	}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// PathFor returns the day-log path for day, creating the data directory.
func (s *Store) PathFor(day completion.Day) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &completion.PersistenceError{Op: "mkdir", Path: s.dir, Err: err}
	}
	return s.path(day), nil
}

func (s *Store) path(day completion.Day) string {
	return filepath.Join(s.dir, filePrefix+day.String()+fileSuffix)
}

// =============================================================================
// LOG STORE
// =============================================================================

func (s *Store) Append(ctx context.Context, rec completion.Record) error {
	day, err := rec.Day()
	if err != nil {
		return &completion.ValidationError{Fields: []string{completion.FieldProcessingDate}, Message: "record has no processing date"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.lock(day)
	defer unlock()

	path, err := s.PathFor(day)
	if err != nil {
		return err
	}
	recs, err := s.readForWrite(path)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	return s.write(path, recs)
}

func (s *Store) Delete(ctx context.Context, day completion.Day, id string) (completion.Record, error) {
	if err := ctx.Err(); err != nil {
		return completion.Record{}, err
	}

	unlock := s.lock(day)
	defer unlock()

	path := s.path(day)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return completion.Record{}, &completion.NotFoundError{Date: day}
	}
	recs, err := s.readForWrite(path)
	if err != nil {
		return completion.Record{}, err
	}

	for i, rec := range recs {
		if rec.ID != id {
			continue
		}
		kept := make([]completion.Record, 0, len(recs)-1)
		kept = append(kept, recs[:i]...)
		kept = append(kept, recs[i+1:]...)
		if err := s.write(path, kept); err != nil {
			return completion.Record{}, err
		}
		return rec, nil
	}
	return completion.Record{}, &completion.NotFoundError{Date: day, ID: id}
}

func (s *Store) LoadDay(ctx context.Context, day completion.Day) ([]completion.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.lock(day)
	defer unlock()

	recs, err := s.read(s.path(day))
	if err != nil {
		var perr *completion.PersistenceError
		if errors.As(err, &perr) && perr.Op == "decode" {
			s.log.Error("corrupt day-log read as empty", zap.String("path", perr.Path), zap.Error(perr.Err))
			return []completion.Record{}, nil
		}
		return nil, err
	}
	return recs, nil
}

func (s *Store) Dates(ctx context.Context) ([]completion.Day, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []completion.Day{}, nil
	}
	if err != nil {
		return nil, &completion.PersistenceError{Op: "list", Path: s.dir, Err: err}
	}

	days := make([]completion.Day, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		day, err := completion.ParseDay(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix))
		if err != nil {
			s.log.Debug("ignoring file", zap.String("name", name))
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days, nil
}

// =============================================================================
// FILE I/O
// =============================================================================

func (s *Store) lock(day completion.Day) func() {
	s.mu.Lock()
	l, ok := s.locks[day.String()]
	if !ok {
		l = &sync.Mutex{}
		s.locks[day.String()] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// read returns the records of path. A missing file is empty. An empty or
// undecodable file is a PersistenceError with Op "decode".
func (s *Store) read(path string) ([]completion.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []completion.Record{}, nil
	}
	if err != nil {
		return nil, &completion.PersistenceError{Op: "read", Path: path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &completion.PersistenceError{Op: "decode", Path: path, Err: errors.New("empty file")}
	}
	var recs []completion.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, &completion.PersistenceError{Op: "decode", Path: path, Err: err}
	}
	if recs == nil {
		recs = []completion.Record{}
	}
	return recs, nil
}

// readForWrite is read, except a corrupt file is moved aside and treated
// as empty so the write can proceed.
func (s *Store) readForWrite(path string) ([]completion.Record, error) {
	recs, err := s.read(path)
	if err == nil {
		return recs, nil
	}
	var perr *completion.PersistenceError
	if !errors.As(err, &perr) || perr.Op != "decode" {
		return nil, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, &completion.PersistenceError{Op: "quarantine", Path: path, Err: rerr}
	}
	s.log.Error("corrupt day-log moved aside",
		zap.String("path", path),
		zap.String("moved_to", aside),
		zap.Error(perr.Err))
	return []completion.Record{}, nil
}

func (s *Store) write(path string, recs []completion.Record) error {
	if err := writeJSON(path, recs); err != nil {
		return &completion.PersistenceError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// writeJSON encodes v as indented UTF-8 JSON and atomically replaces path.
func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
