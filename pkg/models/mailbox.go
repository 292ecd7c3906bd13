package models

import "time"

// Mailbox represents a connected email mailbox owned by a user
type Mailbox struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Address       string     `db:"address" json:"email"`
	Password      string     `db:"password" json:"-"`
	Kind          string     `db:"kind" json:"mail_type"` // Provider hint, e.g. "outlook"
	Server        string     `db:"server" json:"-"`       // host:port, empty means auto-resolve
	Port          int        `db:"port" json:"-"`
	UseSSL        bool       `db:"use_ssl" json:"-"`
	ClientID      string     `db:"client_id" json:"-"`     // OAuth client id
	RefreshToken  string     `db:"refresh_token" json:"-"` // OAuth refresh token
	AccessToken   string     `db:"access_token" json:"-"`
	LastCheckTime *time.Time `db:"last_check_time" json:"last_check_time"`
	RealtimeCheck bool       `db:"realtime_check" json:"enable_realtime_check"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
