package mirror

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDav is an in-memory WebDAV remote
type fakeDav struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newFakeDav() *fakeDav {
	return &fakeDav{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (f *fakeDav) Stat(ctx context.Context, name string) (*webdav.FileInfo, error) {
	if f.dirs[name] {
		return &webdav.FileInfo{Path: name, IsDir: true}, nil
	}
	if data, ok := f.files[name]; ok {
		return &webdav.FileInfo{Path: name, Size: int64(len(data))}, nil
	}
	return nil, os.ErrNotExist
}

type fakeWriter struct {
	buf  bytes.Buffer
	done func([]byte)
}

func (w *fakeWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *fakeWriter) Close() error                { w.done(w.buf.Bytes()); return nil }

func (f *fakeDav) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return &fakeWriter{done: func(data []byte) { f.files[name] = data }}, nil
}

func (f *fakeDav) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	data, ok := f.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeDav) Copy(ctx context.Context, name, dest string, options *webdav.CopyOptions) error {
	data, ok := f.files[name]
	if !ok {
		return os.ErrNotExist
	}
	f.files[dest] = append([]byte(nil), data...)
	return nil
}

func (f *fakeDav) ReadDir(ctx context.Context, name string, recursive bool) ([]webdav.FileInfo, error) {
	var infos []webdav.FileInfo
	for p, data := range f.files {
		if path.Dir(p) == path.Clean(name) {
			infos = append(infos, webdav.FileInfo{Path: p, Size: int64(len(data))})
		}
	}
	return infos, nil
}

func (f *fakeDav) Mkdir(ctx context.Context, name string) error {
	f.dirs[name] = true
	return nil
}

func newTestMirror(t *testing.T, remote *fakeDav) *Mirror {
	t.Helper()

	localPath := filepath.Join(t.TempDir(), "data", "firemail.db")
	return &Mirror{
		enabled:      true,
		client:       remote,
		rootPath:     "/firemail/",
		dbName:       "firemail.db",
		remoteDBPath: path.Join("/firemail/", "firemail.db"),
		localDBPath:  localPath,
		timeout:      time.Second,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeLocal(t *testing.T, m *Mirror, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(m.localDBPath), 0755))
	require.NoError(t, os.WriteFile(m.localDBPath, []byte(content), 0644))
}

func TestSyncToRemote(t *testing.T) {
	remote := newFakeDav()
	m := newTestMirror(t, remote)

	// No local file yet
	assert.False(t, m.SyncToRemote())

	writeLocal(t, m, "state-1")
	assert.True(t, m.SyncToRemote())
	assert.Equal(t, []byte("state-1"), remote.files[m.remoteDBPath])

	// Last writer wins
	writeLocal(t, m, "state-2")
	assert.True(t, m.SyncToRemote())
	assert.Equal(t, []byte("state-2"), remote.files[m.remoteDBPath])
}

func TestSyncFromRemoteMissingRemote(t *testing.T) {
	m := newTestMirror(t, newFakeDav())
	assert.False(t, m.SyncFromRemote())
}

func TestSyncFromRemotePreservesLocal(t *testing.T) {
	remote := newFakeDav()
	m := newTestMirror(t, remote)

	remote.files[m.remoteDBPath] = []byte("remote-state")
	writeLocal(t, m, "local-state")

	require.True(t, m.SyncFromRemote())

	data, err := os.ReadFile(m.localDBPath)
	require.NoError(t, err)
	assert.Equal(t, "remote-state", string(data))

	// The old local file survives as a renamed backup, never deleted
	backups, err := filepath.Glob(m.localDBPath + ".bak.*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "local-state", string(old))
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	remote := newFakeDav()
	m := newTestMirror(t, remote)

	writeLocal(t, m, "round-trip-state")
	require.True(t, m.SyncToRemote())
	require.True(t, m.SyncFromRemote())

	data, err := os.ReadFile(m.localDBPath)
	require.NoError(t, err)
	assert.Equal(t, "round-trip-state", string(data), "round trip must be byte-identical")
}

func TestListBackups(t *testing.T) {
	remote := newFakeDav()
	m := newTestMirror(t, remote)

	remote.files["/firemail/firemail.db"] = []byte("x")
	remote.files["/firemail/backup_1.sqlite"] = []byte("x")
	remote.files["/firemail/readme.txt"] = []byte("x")

	backups := m.ListBackups()
	assert.ElementsMatch(t, []string{"firemail.db", "backup_1.sqlite"}, backups)
}

func TestCreateRemoteBackup(t *testing.T) {
	remote := newFakeDav()
	m := newTestMirror(t, remote)

	// Upload fails without a local file, so no backup copy may be attempted
	assert.False(t, m.CreateRemoteBackup())
	assert.Len(t, remote.files, 0)

	writeLocal(t, m, "state")
	require.True(t, m.CreateRemoteBackup())

	var backupNames []string
	for p := range remote.files {
		name := path.Base(p)
		if strings.HasPrefix(name, "firemail_backup_") {
			backupNames = append(backupNames, name)
		}
	}
	require.Len(t, backupNames, 1)
	assert.Equal(t, []byte("state"), remote.files[path.Join("/firemail/", backupNames[0])])
}

func TestDisabledMirrorIsNoOp(t *testing.T) {
	m := newTestMirror(t, newFakeDav())
	m.enabled = false

	assert.False(t, m.Enabled())
	assert.False(t, m.SyncToRemote())
	assert.False(t, m.SyncFromRemote())
	assert.False(t, m.CreateRemoteBackup())
	assert.Nil(t, m.ListBackups())
}
