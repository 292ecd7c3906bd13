package checker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fireflower/firemail/internal/config"
	"github.com/fireflower/firemail/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		DBType:        config.BackendSQLite,
		SQLitePath:    filepath.Join(dir, "test.db"),
		BackupDir:     filepath.Join(dir, "backups"),
		WebDAVTimeout: time.Second,
	}

	st, err := store.Open(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// progressRecorder collects progress callbacks across worker goroutines
type progressRecorder struct {
	mu     sync.Mutex
	events map[int64][]int
	last   map[int64]string
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{
		events: make(map[int64][]int),
		last:   make(map[int64]string),
	}
}

func (r *progressRecorder) record(id int64, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id] = append(r.events[id], percent)
	r.last[id] = message
}

func TestBatchCheckUnknownMailboxes(t *testing.T) {
	st := newTestStore(t)
	c := New(st, 2, time.Second, discardLogger())

	rec := newProgressRecorder()
	c.BatchCheck(context.Background(), []int64{101, 102}, rec.record)

	// Every unknown mailbox terminates its own check with a final tick
	for _, id := range []int64{101, 102} {
		require.NotEmpty(t, rec.events[id])
		assert.Equal(t, 100, rec.events[id][len(rec.events[id])-1])
		assert.Contains(t, rec.last[id], "not found")
	}
}

func TestBatchCheckEmptyList(t *testing.T) {
	st := newTestStore(t)
	c := New(st, 2, time.Second, discardLogger())

	rec := newProgressRecorder()
	c.BatchCheck(context.Background(), nil, rec.record)
	assert.Empty(t, rec.events)
}

func TestNewClampsWorkers(t *testing.T) {
	st := newTestStore(t)
	c := New(st, 0, time.Second, discardLogger())
	assert.Equal(t, 1, c.workers)
}

func TestResolveKnownProvider(t *testing.T) {
	server, err := resolveIMAPServer("someone@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, "imap.gmail.com:993", server)

	server, err = resolveIMAPServer("someone@Hotmail.com")
	require.NoError(t, err)
	assert.Equal(t, "outlook.office365.com:993", server)
}

func TestResolveInvalidAddress(t *testing.T) {
	_, err := resolveIMAPServer("not-an-address")
	assert.Error(t, err)
}
