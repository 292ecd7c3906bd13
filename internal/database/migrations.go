package database

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    salt TEXT NOT NULL,
    is_admin BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mailboxes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    address TEXT NOT NULL,
    password TEXT NOT NULL,
    kind TEXT DEFAULT 'outlook',
    server TEXT DEFAULT '',
    port INTEGER DEFAULT 0,
    use_ssl BOOLEAN DEFAULT true,
    client_id TEXT DEFAULT '',
    refresh_token TEXT DEFAULT '',
    access_token TEXT DEFAULT '',
    last_check_time DATETIME,
    realtime_check BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(user_id, address)
);

CREATE TABLE IF NOT EXISTS mail_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mailbox_id INTEGER NOT NULL REFERENCES mailboxes(id) ON DELETE CASCADE,
    subject TEXT DEFAULT '',
    sender TEXT DEFAULT '',
    received_at DATETIME,
    content TEXT DEFAULT '',
    folder TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS system_config (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL UNIQUE,
    value TEXT DEFAULT '',
    description TEXT DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_mailboxes_user ON mailboxes(user_id);
CREATE INDEX IF NOT EXISTS idx_records_mailbox ON mail_records(mailbox_id);
CREATE INDEX IF NOT EXISTS idx_records_received ON mail_records(received_at);
`

const schemaMySQL = `
CREATE TABLE IF NOT EXISTS users (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    username VARCHAR(50) NOT NULL UNIQUE,
    password_hash VARCHAR(256) NOT NULL,
    salt VARCHAR(100) NOT NULL,
    is_admin BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS mailboxes (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    user_id BIGINT NOT NULL,
    address VARCHAR(100) NOT NULL,
    password VARCHAR(100) NOT NULL,
    kind VARCHAR(20) DEFAULT 'outlook',
    server VARCHAR(100) DEFAULT '',
    port INT DEFAULT 0,
    use_ssl BOOLEAN DEFAULT true,
    client_id VARCHAR(200) DEFAULT '',
    refresh_token TEXT,
    access_token TEXT,
    last_check_time DATETIME NULL,
    realtime_check BOOLEAN DEFAULT false,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY uix_user_address (user_id, address),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS mail_records (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    mailbox_id BIGINT NOT NULL,
    subject VARCHAR(255) DEFAULT '',
    sender VARCHAR(255) DEFAULT '',
    received_at DATETIME NULL,
    content MEDIUMTEXT,
    folder VARCHAR(50) DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (mailbox_id) REFERENCES mailboxes(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS system_config (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    ` + "`key`" + ` VARCHAR(50) NOT NULL UNIQUE,
    value TEXT,
    description VARCHAR(255) DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
