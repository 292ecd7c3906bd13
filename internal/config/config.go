package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Backend kinds supported by the store.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
)

// Config application configuration
type Config struct {
	// Database
	DBType     string `env:"DB_TYPE" envDefault:"sqlite"` // "sqlite" or "mysql"
	SQLitePath string `env:"SQLITE_DB_PATH" envDefault:"./data/firemail.db"`
	BackupDir  string `env:"BACKUP_DIR" envDefault:"./data/backups"`
	MySQLHost  string `env:"MYSQL_HOST" envDefault:"localhost"`
	MySQLPort  int    `env:"MYSQL_PORT" envDefault:"3306"`
	MySQLUser  string `env:"MYSQL_USER" envDefault:"root"`
	MySQLPass  string `env:"MYSQL_PASSWORD"`
	MySQLDB    string `env:"MYSQL_DATABASE" envDefault:"firemail"`

	// WebDAV mirror (optional)
	WebDAVEnabled  bool          `env:"WEBDAV_ENABLED" envDefault:"false"`
	WebDAVURL      string        `env:"WEBDAV_URL"`
	WebDAVUsername string        `env:"WEBDAV_USERNAME"`
	WebDAVPassword string        `env:"WEBDAV_PASSWORD"`
	WebDAVRootPath string        `env:"WEBDAV_ROOT_PATH" envDefault:"/firemail/"`
	WebDAVDBName   string        `env:"WEBDAV_DB_NAME" envDefault:"firemail.db"`
	WebDAVTimeout  time.Duration `env:"WEBDAV_TIMEOUT" envDefault:"30s"`

	// WebSocket server
	WSHost string `env:"WS_HOST" envDefault:"0.0.0.0"`
	WSPort int    `env:"WS_PORT" envDefault:"8765"`

	// Mail checking
	CheckWorkers    int           `env:"CHECK_WORKERS" envDefault:"4"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// FileBacked returns true when the store lives in a single local file.
// Replication and backups only make sense for this backend.
func (c *Config) FileBacked() bool {
	return c.DBType == BackendSQLite
}

// MySQLDSN builds the DSN for the networked backend
func (c *Config) MySQLDSN() string {
	// multiStatements lets Migrate run the whole schema in one call
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&multiStatements=true",
		c.MySQLUser, c.MySQLPass, c.MySQLHost, c.MySQLPort, c.MySQLDB)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DBType != BackendSQLite && cfg.DBType != BackendMySQL {
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.DBType)
	}

	return cfg, nil
}
