package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fireflower/firemail/internal/config"
	"github.com/fireflower/firemail/internal/database"
	"github.com/fireflower/firemail/internal/mirror"
	"github.com/fireflower/firemail/pkg/models"
)

// allowRegisterKey guards new-user registration; it defaults to enabled and
// self-heals to enabled so stale data can never lock everyone out.
const allowRegisterKey = "allow_register"

// recordSyncInterval throttles replication on mail-record ingest: an upload
// fires only when the total record count is a multiple of this.
const recordSyncInterval = 50

// Replicator is the remote-mirror surface the store drives. *mirror.Mirror
// implements it; tests substitute a counter.
type Replicator interface {
	Enabled() bool
	SyncToRemote() bool
	SyncFromRemote() bool
	CreateRemoteBackup() bool
	ListBackups() []string
}

// Store is the single source of truth for users, mailboxes, mail records
// and system configuration. It owns the replication trigger policy: every
// mutating call may push the local file to the remote mirror, and no
// replication failure ever fails the triggering domain operation.
//
// Exactly one Store is constructed per process, by Open in the entry point,
// and handed to every consumer.
type Store struct {
	db         *database.DB
	replicator Replicator
	fileBacked bool
	localPath  string
	backupDir  string
	logger     *slog.Logger
}

// Open builds the one process-wide Store. When the backend is file-based and
// the mirror is usable, the latest remote copy is pulled down before the
// local database is first opened.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	m := mirror.New(cfg, logger)

	if cfg.FileBacked() && m.Enabled() {
		m.SyncFromRemote()
	}

	var db *database.DB
	var err error
	switch cfg.DBType {
	case config.BackendMySQL:
		db, err = database.NewMySQL(cfg.MySQLDSN())
	default:
		db, err = database.NewSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:         db,
		replicator: m,
		fileBacked: cfg.FileBacked(),
		localPath:  cfg.SQLitePath,
		backupDir:  cfg.BackupDir,
		logger:     logger.With("component", "store"),
	}

	s.healRegistration(ctx)
	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// healRegistration makes sure the allow_register entry exists and is enabled
func (s *Store) healRegistration(ctx context.Context) {
	entry, err := s.db.GetConfigEntry(ctx, allowRegisterKey)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Info("initializing system config, registration enabled by default")
		if err := s.db.UpsertConfigEntry(ctx, allowRegisterKey, "true", "whether new user registration is allowed"); err != nil {
			s.logger.Error("failed to initialize registration config", "error", err)
		}
		return
	}
	if err != nil {
		s.logger.Error("failed to read registration config", "error", err)
		return
	}
	if entry.Value != "true" {
		s.logger.Info("resetting registration config to enabled")
		if err := s.db.UpsertConfigEntry(ctx, allowRegisterKey, "true", entry.Description); err != nil {
			s.logger.Error("failed to reset registration config", "error", err)
		}
	}
}

// maybeReplicate pushes the local file to the mirror after a mutating call.
// File backend only; failures are logged by the mirror and swallowed here.
func (s *Store) maybeReplicate() {
	if s.fileBacked && s.replicator.Enabled() {
		s.replicator.SyncToRemote()
	}
}

// Authenticate verifies a username/password pair. An unknown user and a
// wrong password are indistinguishable: both return nil without error.
func (s *Store) Authenticate(ctx context.Context, username, password string) *models.User {
	user, err := s.db.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Warn("authentication failed", "username", username)
		return nil
	}
	if err != nil {
		s.logger.Error("authentication lookup failed", "error", err)
		return nil
	}

	if !verifyPassword(password, user.Salt, user.PasswordHash) {
		s.logger.Warn("authentication failed", "username", username)
		return nil
	}

	s.logger.Info("user authenticated", "username", username)
	return user
}

// CreateUser creates an account. The first account ever created is promoted
// to administrator regardless of the request. Returns whether the create
// succeeded and whether admin was granted.
func (s *Store) CreateUser(ctx context.Context, username, password string, isAdmin bool) (bool, bool) {
	if !isAdmin {
		count, err := s.db.CountUsers(ctx)
		if err != nil {
			s.logger.Error("failed to count users", "error", err)
			return false, false
		}
		if count == 0 {
			isAdmin = true
			s.logger.Info("first registered user promoted to admin", "username", username)
		}
	}

	salt, err := newSalt()
	if err != nil {
		s.logger.Error("failed to generate salt", "error", err)
		return false, false
	}

	user := &models.User{
		Username:     username,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		IsAdmin:      isAdmin,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		s.logger.Error("failed to create user", "username", username, "error", err)
		return false, false
	}

	s.maybeReplicate()
	s.logger.Info("user created", "username", username, "admin", isAdmin)
	return true, isAdmin
}

// UserByID returns a user by id, nil if absent
func (s *Store) UserByID(ctx context.Context, id int64) *models.User {
	user, err := s.db.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Error("failed to get user", "id", id, "error", err)
		}
		return nil
	}
	return user
}

// Users returns all accounts
func (s *Store) Users(ctx context.Context) []*models.User {
	users, err := s.db.GetAllUsers(ctx)
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil
	}
	return users
}

// DeleteUser deletes an account and, by cascade, its mailboxes and records.
// Deleting an unknown id reports false.
func (s *Store) DeleteUser(ctx context.Context, id int64) bool {
	if err := s.db.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("delete user failed, not found", "id", id)
		} else {
			s.logger.Error("failed to delete user", "id", id, "error", err)
		}
		return false
	}

	s.maybeReplicate()
	s.logger.Info("user deleted", "id", id)
	return true
}

// ResetPassword replaces a user's credential with a fresh salt and digest
func (s *Store) ResetPassword(ctx context.Context, id int64, newPassword string) bool {
	salt, err := newSalt()
	if err != nil {
		s.logger.Error("failed to generate salt", "error", err)
		return false
	}

	if err := s.db.UpdateUserPassword(ctx, id, hashPassword(newPassword, salt), salt); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("reset password failed, user not found", "id", id)
		} else {
			s.logger.Error("failed to reset password", "id", id, "error", err)
		}
		return false
	}

	s.maybeReplicate()
	s.logger.Info("password reset", "id", id)
	return true
}

// AddMailbox registers a mailbox. The (user_id, address) unique constraint
// is the authoritative duplicate signal; the lookup is only a fast path.
func (s *Store) AddMailbox(ctx context.Context, mb *models.Mailbox) bool {
	if _, err := s.db.GetMailboxByUserAndAddress(ctx, mb.UserID, mb.Address); err == nil {
		s.logger.Warn("mailbox already exists", "address", mb.Address, "user_id", mb.UserID)
		return false
	}

	if err := s.db.CreateMailbox(ctx, mb); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			s.logger.Warn("mailbox already exists", "address", mb.Address, "user_id", mb.UserID)
		} else {
			s.logger.Error("failed to add mailbox", "address", mb.Address, "error", err)
		}
		return false
	}

	s.maybeReplicate()
	s.logger.Info("mailbox added", "address", mb.Address, "user_id", mb.UserID)
	return true
}

// MailboxByID returns a mailbox by id, nil if absent
func (s *Store) MailboxByID(ctx context.Context, id int64) *models.Mailbox {
	mb, err := s.db.GetMailboxByID(ctx, id)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Error("failed to get mailbox", "id", id, "error", err)
		}
		return nil
	}
	return mb
}

// Mailboxes returns every registered mailbox
func (s *Store) Mailboxes(ctx context.Context) []*models.Mailbox {
	boxes, err := s.db.GetAllMailboxes(ctx)
	if err != nil {
		s.logger.Error("failed to list mailboxes", "error", err)
		return nil
	}
	return boxes
}

// MailboxesByUser returns a user's mailboxes
func (s *Store) MailboxesByUser(ctx context.Context, userID int64) []*models.Mailbox {
	boxes, err := s.db.GetMailboxesByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list user mailboxes", "user_id", userID, "error", err)
		return nil
	}
	return boxes
}

// DeleteMailbox deletes a mailbox; its records cascade
func (s *Store) DeleteMailbox(ctx context.Context, id int64) bool {
	if err := s.db.DeleteMailbox(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.logger.Warn("delete mailbox failed, not found", "id", id)
		} else {
			s.logger.Error("failed to delete mailbox", "id", id, "error", err)
		}
		return false
	}

	s.maybeReplicate()
	s.logger.Info("mailbox deleted", "id", id)
	return true
}

// TouchMailboxChecked records a completed mail check on a mailbox
func (s *Store) TouchMailboxChecked(ctx context.Context, id int64) {
	if err := s.db.TouchMailboxChecked(ctx, id, time.Now()); err != nil {
		s.logger.Error("failed to update last check time", "id", id, "error", err)
	}
}

// AddMailRecord appends a fetched message. Replication is throttled: an
// upload fires only when the total record count hits a multiple of the
// sync interval, so a large ingest does not saturate the remote link.
func (s *Store) AddMailRecord(ctx context.Context, rec *models.MailRecord) bool {
	if err := s.db.CreateMailRecord(ctx, rec); err != nil {
		s.logger.Error("failed to add mail record", "mailbox_id", rec.MailboxID, "error", err)
		return false
	}

	if s.fileBacked && s.replicator.Enabled() {
		count, err := s.db.CountMailRecords(ctx)
		if err != nil {
			s.logger.Error("failed to count mail records", "error", err)
		} else if count%recordSyncInterval == 0 {
			s.replicator.SyncToRemote()
		}
	}
	return true
}

// MailRecords returns a mailbox's records ordered by receipt time, newest first
func (s *Store) MailRecords(ctx context.Context, mailboxID int64) []*models.MailRecord {
	records, err := s.db.GetMailRecords(ctx, mailboxID)
	if err != nil {
		s.logger.Error("failed to get mail records", "mailbox_id", mailboxID, "error", err)
		return nil
	}
	return records
}

// GetConfig returns a system configuration value
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool) {
	entry, err := s.db.GetConfigEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Error("failed to get config", "key", key, "error", err)
		}
		return "", false
	}
	return entry.Value, true
}

// SetConfig writes a system configuration value
func (s *Store) SetConfig(ctx context.Context, key, value string) bool {
	if err := s.db.UpsertConfigEntry(ctx, key, value, ""); err != nil {
		s.logger.Error("failed to set config", "key", key, "error", err)
		return false
	}

	s.maybeReplicate()
	s.logger.Info("config updated", "key", key, "value", value)
	return true
}

// IsRegistrationAllowed reports whether new users may register. A missing
// entry is written back as enabled; a failing read also defaults to enabled
// so a transient error can never lock out registration.
func (s *Store) IsRegistrationAllowed(ctx context.Context) bool {
	entry, err := s.db.GetConfigEntry(ctx, allowRegisterKey)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Info("registration config missing, defaulting to enabled")
		if !s.SetConfig(ctx, allowRegisterKey, "true") {
			s.logger.Warn("failed to persist default registration config")
		}
		return true
	}
	if err != nil {
		s.logger.Error("failed to read registration config, defaulting to enabled", "error", err)
		return true
	}
	return entry.Value == "true"
}

// ToggleRegistration enables or disables new-user registration
func (s *Store) ToggleRegistration(ctx context.Context, allow bool) bool {
	value := "false"
	if allow {
		value = "true"
	}
	return s.SetConfig(ctx, allowRegisterKey, value)
}

// Backup copies the local database file into the backup directory and, when
// the mirror is enabled, also creates a timestamped remote copy. File
// backend only.
func (s *Store) Backup(ctx context.Context) bool {
	if !s.fileBacked {
		s.logger.Warn("backup only supported for the file-backed store")
		return false
	}

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		s.logger.Error("failed to create backup directory", "error", err)
		return false
	}

	backupFile := filepath.Join(s.backupDir,
		fmt.Sprintf("firemail_backup_%s.db", time.Now().Format("20060102150405")))
	if err := copyFile(s.localPath, backupFile); err != nil {
		s.logger.Error("failed to back up database", "error", err)
		return false
	}
	s.logger.Info("database backed up", "path", backupFile)

	if s.replicator.Enabled() {
		s.replicator.CreateRemoteBackup()
	}
	return true
}

// SyncToRemote manually pushes the local database to the mirror
func (s *Store) SyncToRemote(ctx context.Context) bool {
	if !s.fileBacked {
		s.logger.Warn("webdav sync only supported for the file-backed store")
		return false
	}
	if !s.replicator.Enabled() {
		s.logger.Warn("webdav sync not enabled")
		return false
	}
	return s.replicator.SyncToRemote()
}

// SyncFromRemote manually pulls the remote database down over the local file
func (s *Store) SyncFromRemote(ctx context.Context) bool {
	if !s.fileBacked {
		s.logger.Warn("webdav sync only supported for the file-backed store")
		return false
	}
	if !s.replicator.Enabled() {
		s.logger.Warn("webdav sync not enabled")
		return false
	}
	return s.replicator.SyncFromRemote()
}

// RemoteBackups lists database backups present on the mirror
func (s *Store) RemoteBackups() []string {
	if !s.replicator.Enabled() {
		return nil
	}
	return s.replicator.ListBackups()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
