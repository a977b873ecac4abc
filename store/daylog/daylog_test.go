package daylog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/store/daylog"
)

var day14 = completion.NewDay(2026, time.October, 14)

func newRecord(t *testing.T, client, product string, at time.Time) completion.Record {
	t.Helper()
	rec, err := completion.NewRecord(map[string]any{
		"client_name":  client,
		"product_code": product,
		"product_name": "Produto " + product,
		"completed_by": "Ana Pereira",
		"handler":      "João Santos",
		"client_ip":    "10.0.0.7",
	}, at)
	require.NoError(t, err)
	return rec
}

func at14(hour int) time.Time {
	return time.Date(2026, 10, 14, hour, 0, 0, 0, time.Local)
}

func TestStore_AppendThenLoadDay(t *testing.T) {
	// GIVEN: An empty data directory that does not exist yet
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	s := daylog.New(dir, nil)

	// WHEN: Two records are appended on the same day
	first := newRecord(t, "Farmácia São João", "P500", at14(9))
	second := newRecord(t, "Drogaria Moderna", "A10", at14(10))
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	// THEN: They read back in insertion order, with metadata intact
	recs, err := s.LoadDay(ctx, day14)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, first.ID, recs[0].ID)
	assert.Equal(t, second.ID, recs[1].ID)
	assert.Equal(t, "10.0.0.7", recs[0].Extra["client_ip"])

	// THEN: The file is named by day and keeps non-ASCII text unescaped
	data, err := os.ReadFile(filepath.Join(dir, "completed_2026-10-14.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Farmácia São João")
}

func TestStore_AppendRejectsRecordWithoutDay(t *testing.T) {
	s := daylog.New(t.TempDir(), nil)

	err := s.Append(context.Background(), completion.Record{ID: "x"})

	assert.ErrorIs(t, err, completion.ErrValidation)
}

func TestStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	ctx := context.Background()
	s := daylog.New(t.TempDir(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := newRecord(t, "Drogaria Moderna", fmt.Sprintf("P%d", i), at14(9))
			assert.NoError(t, s.Append(ctx, rec))
		}(i)
	}
	wg.Wait()

	recs, err := s.LoadDay(ctx, day14)
	require.NoError(t, err)
	assert.Len(t, recs, 40)
}

func TestStore_LoadDayMissingFileIsEmpty(t *testing.T) {
	s := daylog.New(t.TempDir(), nil)

	recs, err := s.LoadDay(context.Background(), day14)

	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestStore_CorruptDayLog(t *testing.T) {
	for name, content := range map[string]string{
		"empty":     "",
		"truncated": `[{"id": "a",`,
	} {
		t.Run(name, func(t *testing.T) {
			// GIVEN: A day-log that cannot be parsed
			ctx := context.Background()
			dir := t.TempDir()
			path := filepath.Join(dir, "completed_2026-10-14.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			s := daylog.New(dir, nil)

			// WHEN: It is read
			recs, err := s.LoadDay(ctx, day14)

			// THEN: It reads as empty
			require.NoError(t, err)
			assert.Empty(t, recs)

			// WHEN: A record is appended to it
			rec := newRecord(t, "Drogaria Moderna", "P500", at14(9))
			require.NoError(t, s.Append(ctx, rec))

			// THEN: The corrupt bytes are kept aside and the new file is valid
			matches, err := filepath.Glob(path + ".corrupt-*")
			require.NoError(t, err)
			require.Len(t, matches, 1)
			kept, err := os.ReadFile(matches[0])
			require.NoError(t, err)
			assert.Equal(t, content, string(kept))

			recs, err = s.LoadDay(ctx, day14)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, rec.ID, recs[0].ID)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := daylog.New(t.TempDir(), nil)
	keep := newRecord(t, "Drogaria Moderna", "P500", at14(9))
	drop := newRecord(t, "Farmácia Central", "A10", at14(10))
	require.NoError(t, s.Append(ctx, keep))
	require.NoError(t, s.Append(ctx, drop))

	t.Run("removes only the matching record", func(t *testing.T) {
		got, err := s.Delete(ctx, day14, drop.ID)
		require.NoError(t, err)
		assert.Equal(t, drop.ClientName, got.ClientName)

		recs, err := s.LoadDay(ctx, day14)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, keep.ID, recs[0].ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := s.Delete(ctx, day14, drop.ID)
		var nf *completion.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, drop.ID, nf.ID)
	})

	t.Run("missing day-log", func(t *testing.T) {
		_, err := s.Delete(ctx, day14.AddDays(-1), keep.ID)
		var nf *completion.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Empty(t, nf.ID)
	})
}

func TestStore_DatesNewestFirstIgnoringOtherFiles(t *testing.T) {
	// GIVEN: Day-logs mixed with the snapshot and unrelated files
	ctx := context.Background()
	dir := t.TempDir()
	for _, name := range []string{
		"completed_2026-10-12.json",
		"completed_2026-10-14.json",
		"completed_2026-09-30.json",
		"completed_notadate.json",
		"completed_2026-10-13.json.corrupt-1760000000",
		daylog.SnapshotName,
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "completed_2026-10-01.json"), 0o755))
	s := daylog.New(dir, nil)

	// WHEN: Dates are listed
	days, err := s.Dates(ctx)

	// THEN: Only valid day-log files appear, newest first
	require.NoError(t, err)
	var got []string
	for _, d := range days {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2026-10-14", "2026-10-12", "2026-09-30"}, got)
}

func TestStore_DatesMissingDirectory(t *testing.T) {
	s := daylog.New(filepath.Join(t.TempDir(), "missing"), nil)

	days, err := s.Dates(context.Background())

	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestStore_WritesLeaveNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := daylog.New(dir, nil)
	require.NoError(t, s.Append(ctx, newRecord(t, "Drogaria Moderna", "P500", at14(9))))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), e.Name())
	}

	var raw []map[string]any
	data, err := os.ReadFile(filepath.Join(dir, "completed_2026-10-14.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "João Santos", raw[0]["handler"])
}

func TestStore_HonorsCancelledContext(t *testing.T) {
	s := daylog.New(t.TempDir(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.LoadDay(ctx, day14)
	assert.ErrorIs(t, err, context.Canceled)
}
