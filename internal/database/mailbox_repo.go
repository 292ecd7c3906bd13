package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fireflower/firemail/pkg/models"
)

// CreateMailbox creates a new mailbox. Returns ErrAlreadyExists when the
// (user_id, address) pair is already present.
func (db *DB) CreateMailbox(ctx context.Context, mb *models.Mailbox) error {
	query := `
		INSERT INTO mailboxes (user_id, address, password, kind, server, port, use_ssl, client_id, refresh_token, access_token, realtime_check, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		mb.UserID,
		mb.Address,
		mb.Password,
		mb.Kind,
		mb.Server,
		mb.Port,
		mb.UseSSL,
		mb.ClientID,
		mb.RefreshToken,
		mb.AccessToken,
		mb.RealtimeCheck,
		now,
		now,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create mailbox: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	mb.ID = id
	mb.CreatedAt = now
	mb.UpdatedAt = now
	return nil
}

// GetMailboxByID returns a mailbox by ID
func (db *DB) GetMailboxByID(ctx context.Context, id int64) (*models.Mailbox, error) {
	var mb models.Mailbox
	query := `SELECT * FROM mailboxes WHERE id = ?`
	err := db.GetContext(ctx, &mb, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}
	return &mb, nil
}

// GetMailboxByUserAndAddress returns a mailbox by its unique pair
func (db *DB) GetMailboxByUserAndAddress(ctx context.Context, userID int64, address string) (*models.Mailbox, error) {
	var mb models.Mailbox
	query := `SELECT * FROM mailboxes WHERE user_id = ? AND address = ?`
	err := db.GetContext(ctx, &mb, query, userID, address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mailbox: %w", err)
	}
	return &mb, nil
}

// GetMailboxesByUser returns all mailboxes owned by a user
func (db *DB) GetMailboxesByUser(ctx context.Context, userID int64) ([]*models.Mailbox, error) {
	var boxes []*models.Mailbox
	query := `SELECT * FROM mailboxes WHERE user_id = ? ORDER BY created_at DESC`
	err := db.SelectContext(ctx, &boxes, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mailboxes: %w", err)
	}
	return boxes, nil
}

// GetAllMailboxes returns every mailbox
func (db *DB) GetAllMailboxes(ctx context.Context) ([]*models.Mailbox, error) {
	var boxes []*models.Mailbox
	query := `SELECT * FROM mailboxes ORDER BY created_at DESC`
	err := db.SelectContext(ctx, &boxes, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get mailboxes: %w", err)
	}
	return boxes, nil
}

// TouchMailboxChecked records the time of the latest completed check
func (db *DB) TouchMailboxChecked(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE mailboxes SET last_check_time = ?, updated_at = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch mailbox: %w", err)
	}
	return nil
}

// DeleteMailbox deletes a mailbox; its records cascade
func (db *DB) DeleteMailbox(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM mailboxes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete mailbox: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
