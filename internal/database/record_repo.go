package database

import (
	"context"
	"fmt"
	"time"

	"github.com/fireflower/firemail/pkg/models"
)

// CreateMailRecord appends a fetched message for a mailbox
func (db *DB) CreateMailRecord(ctx context.Context, rec *models.MailRecord) error {
	query := `
		INSERT INTO mail_records (mailbox_id, subject, sender, received_at, content, folder, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		rec.MailboxID,
		rec.Subject,
		rec.Sender,
		rec.ReceivedAt,
		rec.Content,
		rec.Folder,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create mail record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = now
	return nil
}

// GetMailRecords returns a mailbox's records, newest first
func (db *DB) GetMailRecords(ctx context.Context, mailboxID int64) ([]*models.MailRecord, error) {
	var records []*models.MailRecord
	query := `SELECT * FROM mail_records WHERE mailbox_id = ? ORDER BY received_at DESC`
	err := db.SelectContext(ctx, &records, query, mailboxID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mail records: %w", err)
	}
	return records, nil
}

// CountMailRecords returns the total record count across all mailboxes
func (db *DB) CountMailRecords(ctx context.Context) (int64, error) {
	var count int64
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM mail_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to count mail records: %w", err)
	}
	return count, nil
}
