package daylog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/warp/backorder-board/completion"
)

// SnapshotName is the tracking snapshot file name inside the data directory.
const SnapshotName = "completion_tracking.json"

// SnapshotFile implements completion.SnapshotStore on a single JSON file.
type SnapshotFile struct {
	path string
	mu   sync.Mutex
}

func NewSnapshotFile(dir string) *SnapshotFile {
	return &SnapshotFile{path: filepath.Join(dir, SnapshotName)}
}

func (f *SnapshotFile) Path() string { return f.path }

// Load returns ErrNoSnapshot when the file is absent, and a decode
// PersistenceError when it is empty or unparseable.
func (f *SnapshotFile) Load(ctx context.Context) (completion.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return completion.Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return completion.Snapshot{}, completion.ErrNoSnapshot
	}
	if err != nil {
		return completion.Snapshot{}, &completion.PersistenceError{Op: "read", Path: f.path, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return completion.Snapshot{}, &completion.PersistenceError{Op: "decode", Path: f.path, Err: errors.New("empty file")}
	}
	var snap completion.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return completion.Snapshot{}, &completion.PersistenceError{Op: "decode", Path: f.path, Err: err}
	}
	return snap, nil
}

func (f *SnapshotFile) Save(ctx context.Context, snap completion.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return &completion.PersistenceError{Op: "mkdir", Path: filepath.Dir(f.path), Err: err}
	}
	if err := writeJSON(f.path, snap); err != nil {
		return &completion.PersistenceError{Op: "write", Path: f.path, Err: err}
	}
	return nil
}
