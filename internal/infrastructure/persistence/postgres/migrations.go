package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CHATS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS chats (
    chat_id BIGINT PRIMARY KEY,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USAGE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS usage (
    chat_id BIGINT PRIMARY KEY,
    request_count INTEGER NOT NULL DEFAULT 0,
    last_request_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_request_count CHECK (request_count >= 0)
);

CREATE INDEX IF NOT EXISTS idx_usage_last_request_date ON usage(last_request_date);
`

// GetMigrations returns all migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_chats", UpSQL: migration001Up},
		{Version: 2, Name: "create_usage", UpSQL: migration002Up},
	}
}
