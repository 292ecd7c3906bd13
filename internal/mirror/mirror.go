package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-webdav"

	"github.com/fireflower/firemail/internal/config"
)

// dav is the slice of the WebDAV client the mirror needs. *webdav.Client
// satisfies it; tests substitute an in-memory remote.
type dav interface {
	Stat(ctx context.Context, name string) (*webdav.FileInfo, error)
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Copy(ctx context.Context, name, dest string, options *webdav.CopyOptions) error
	ReadDir(ctx context.Context, name string, recursive bool) ([]webdav.FileInfo, error)
	Mkdir(ctx context.Context, name string) error
}

// Mirror replicates the local database file to a WebDAV endpoint. It never
// interprets file contents. A misconfigured or unreachable endpoint disables
// the mirror; every call on a disabled mirror is a logged no-op.
type Mirror struct {
	enabled      bool
	client       dav
	rootPath     string
	dbName       string
	remoteDBPath string
	localDBPath  string
	timeout      time.Duration
	logger       *slog.Logger
}

// New creates a WebDAV mirror from configuration. Construction never fails:
// incomplete credentials or an unreachable endpoint yield a disabled mirror
// so the rest of the process can start with local-only state.
func New(cfg *config.Config, logger *slog.Logger) *Mirror {
	m := &Mirror{
		rootPath:    cfg.WebDAVRootPath,
		dbName:      cfg.WebDAVDBName,
		localDBPath: cfg.SQLitePath,
		timeout:     cfg.WebDAVTimeout,
		logger:      logger.With("component", "webdav_mirror"),
	}
	m.remoteDBPath = path.Join(m.rootPath, m.dbName)

	if !cfg.WebDAVEnabled {
		m.logger.Info("webdav sync disabled")
		return m
	}

	if cfg.WebDAVURL == "" || cfg.WebDAVUsername == "" || cfg.WebDAVPassword == "" {
		m.logger.Error("webdav config incomplete, sync disabled")
		return m
	}

	httpClient := webdav.HTTPClientWithBasicAuth(
		&http.Client{Timeout: cfg.WebDAVTimeout},
		cfg.WebDAVUsername,
		cfg.WebDAVPassword,
	)
	client, err := webdav.NewClient(httpClient, cfg.WebDAVURL)
	if err != nil {
		m.logger.Error("failed to create webdav client", "error", err)
		return m
	}

	m.client = client
	m.enabled = true

	if err := m.ensureRemoteDirectory(); err != nil {
		m.logger.Error("webdav endpoint unusable, sync disabled", "error", err)
		m.enabled = false
		return m
	}

	m.logger.Info("webdav sync enabled", "url", cfg.WebDAVURL, "root", m.rootPath)
	return m
}

// Enabled reports whether remote replication is active
func (m *Mirror) Enabled() bool {
	return m.enabled
}

func (m *Mirror) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

func (m *Mirror) ensureRemoteDirectory() error {
	ctx, cancel := m.opCtx()
	defer cancel()

	if _, err := m.client.Stat(ctx, m.rootPath); err == nil {
		return nil
	}

	m.logger.Info("creating remote directory", "path", m.rootPath)
	if err := m.client.Mkdir(ctx, m.rootPath); err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}
	return nil
}

// SyncToRemote uploads the local database file to the canonical remote path,
// overwriting whatever was there (last writer wins).
func (m *Mirror) SyncToRemote() bool {
	if !m.enabled {
		m.logger.Debug("webdav sync disabled, skipping upload")
		return false
	}

	if _, err := os.Stat(m.localDBPath); err != nil {
		m.logger.Error("local database file missing", "path", m.localDBPath, "error", err)
		return false
	}

	ctx, cancel := m.opCtx()
	defer cancel()

	src, err := os.Open(m.localDBPath)
	if err != nil {
		m.logger.Error("failed to open local database", "error", err)
		return false
	}
	defer src.Close()

	dst, err := m.client.Create(ctx, m.remoteDBPath)
	if err != nil {
		m.logger.Error("failed to create remote file", "path", m.remoteDBPath, "error", err)
		return false
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		m.logger.Error("failed to upload database", "error", err)
		return false
	}
	if err := dst.Close(); err != nil {
		m.logger.Error("failed to finish upload", "error", err)
		return false
	}

	m.logger.Info("database synced to webdav", "path", m.remoteDBPath)
	return true
}

// SyncFromRemote downloads the canonical remote copy over the local path.
// An existing local file is renamed, never deleted, so a destructive pull
// can be undone by hand.
func (m *Mirror) SyncFromRemote() bool {
	if !m.enabled {
		m.logger.Debug("webdav sync disabled, skipping download")
		return false
	}

	ctx, cancel := m.opCtx()
	defer cancel()

	if _, err := m.client.Stat(ctx, m.remoteDBPath); err != nil {
		m.logger.Warn("remote database file not found", "path", m.remoteDBPath, "error", err)
		return false
	}

	if _, err := os.Stat(m.localDBPath); err == nil {
		backupPath := fmt.Sprintf("%s.bak.%d", m.localDBPath, time.Now().Unix())
		if err := os.Rename(m.localDBPath, backupPath); err != nil {
			m.logger.Error("failed to back up local database", "error", err)
			return false
		}
		m.logger.Info("local database backed up", "path", backupPath)
	}

	if err := os.MkdirAll(filepath.Dir(m.localDBPath), 0755); err != nil {
		m.logger.Error("failed to create local directory", "error", err)
		return false
	}

	src, err := m.client.Open(ctx, m.remoteDBPath)
	if err != nil {
		m.logger.Error("failed to open remote database", "error", err)
		return false
	}
	defer src.Close()

	dst, err := os.Create(m.localDBPath)
	if err != nil {
		m.logger.Error("failed to create local database file", "error", err)
		return false
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		m.logger.Error("failed to download database", "error", err)
		return false
	}
	if err := dst.Close(); err != nil {
		m.logger.Error("failed to finish download", "error", err)
		return false
	}

	m.logger.Info("database synced from webdav", "path", m.localDBPath)
	return true
}

// ListBackups returns the database-like file names under the remote root
func (m *Mirror) ListBackups() []string {
	if !m.enabled {
		return nil
	}

	ctx, cancel := m.opCtx()
	defer cancel()

	files, err := m.client.ReadDir(ctx, m.rootPath, false)
	if err != nil {
		m.logger.Error("failed to list remote backups", "error", err)
		return nil
	}

	var backups []string
	for _, f := range files {
		if f.IsDir {
			continue
		}
		name := path.Base(f.Path)
		if strings.HasSuffix(name, ".db") || strings.HasSuffix(name, ".sqlite") {
			backups = append(backups, name)
		}
	}

	m.logger.Info("found remote database backups", "count", len(backups))
	return backups
}

// CreateRemoteBackup uploads current state, then copies the canonical remote
// file to a timestamped path. A failed upload skips the copy.
func (m *Mirror) CreateRemoteBackup() bool {
	if !m.enabled {
		return false
	}

	if !m.SyncToRemote() {
		m.logger.Error("cannot create remote backup, upload failed")
		return false
	}

	backupName := fmt.Sprintf("firemail_backup_%s.db", time.Now().Format("20060102150405"))
	backupPath := path.Join(m.rootPath, backupName)

	ctx, cancel := m.opCtx()
	defer cancel()

	if err := m.client.Copy(ctx, m.remoteDBPath, backupPath, nil); err != nil {
		m.logger.Error("failed to create remote backup", "error", err)
		return false
	}

	m.logger.Info("created remote database backup", "name", backupName)
	return true
}
