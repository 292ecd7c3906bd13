package models

import "time"

// MailRecord represents a fetched email message. Records are append-only:
// they are created by mail checks and removed only by mailbox cascade.
type MailRecord struct {
	ID         int64     `db:"id" json:"id"`
	MailboxID  int64     `db:"mailbox_id" json:"email_id"`
	Subject    string    `db:"subject" json:"subject"`
	Sender     string    `db:"sender" json:"sender"`
	ReceivedAt time.Time `db:"received_at" json:"received_time"`
	Content    string    `db:"content" json:"content"`
	Folder     string    `db:"folder" json:"folder"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
