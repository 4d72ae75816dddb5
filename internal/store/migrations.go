package store

// Versioned migrations applied once at startup. Idempotency is
// tracked by the schema_migrations table, never by swallowing
// duplicate-column errors at request time. Additions are append-only:
// never edit a shipped migration, add a new one.

type migration struct {
	version  int
	sqlite   string
	postgres string
}

var migrations = []migration{
	{
		version: 1,
		sqlite: `
		CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			session_package BLOB,
			account TEXT NOT NULL DEFAULT '',
			chain_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(name COLLATE NOCASE);`,
		postgres: `
		CREATE TABLE IF NOT EXISTS agents (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			session_package BYTEA,
			account TEXT NOT NULL DEFAULT '',
			chain_id BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_agents_name ON agents(lower(name));`,
	},
	{
		version: 2,
		sqlite: `
		CREATE TABLE IF NOT EXISTS feedback_requests (
			id TEXT PRIMARY KEY,
			client_address TEXT NOT NULL,
			from_agent TEXT NOT NULL DEFAULT '',
			to_agent TEXT NOT NULL,
			comment TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			approved INTEGER NOT NULL DEFAULT 0,
			approved_at DATETIME,
			approved_for_days INTEGER NOT NULL DEFAULT 0,
			auth_blob BLOB,
			tx_hash TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_client ON feedback_requests(client_address);
		CREATE INDEX IF NOT EXISTS idx_feedback_agent ON feedback_requests(to_agent);`,
		postgres: `
		CREATE TABLE IF NOT EXISTS feedback_requests (
			id UUID PRIMARY KEY,
			client_address TEXT NOT NULL,
			from_agent TEXT NOT NULL DEFAULT '',
			to_agent TEXT NOT NULL,
			comment TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			approved_at TIMESTAMPTZ,
			approved_for_days BIGINT NOT NULL DEFAULT 0,
			auth_blob BYTEA,
			tx_hash TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_feedback_client ON feedback_requests(client_address);
		CREATE INDEX IF NOT EXISTS idx_feedback_agent ON feedback_requests(to_agent);`,
	},
	{
		version: 3,
		sqlite: `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			subject TEXT NOT NULL DEFAULT '',
			client_address TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			last_message_at DATETIME NOT NULL
		);`,
		postgres: `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'open',
			subject TEXT NOT NULL DEFAULT '',
			client_address TEXT NOT NULL DEFAULT '',
			agent_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			last_message_at TIMESTAMPTZ NOT NULL
		);`,
	},
	{
		version: 4,
		sqlite: `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			task_id TEXT,
			type TEXT NOT NULL DEFAULT '',
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			context_type TEXT NOT NULL DEFAULT '',
			context_id TEXT NOT NULL DEFAULT '',
			is_read INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_id);
		CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_id);
		CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id);`,
		postgres: `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			task_id TEXT,
			type TEXT NOT NULL DEFAULT '',
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			context_type TEXT NOT NULL DEFAULT '',
			context_id TEXT NOT NULL DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_id);
		CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_id);
		CREATE INDEX IF NOT EXISTS idx_messages_task ON messages(task_id);`,
	},
	{
		version: 5,
		sqlite: `
		CREATE TABLE IF NOT EXISTS associations (
			id TEXT PRIMARY KEY,
			initiator TEXT NOT NULL,
			approver TEXT NOT NULL,
			valid_at INTEGER NOT NULL DEFAULT 0,
			valid_until INTEGER NOT NULL DEFAULT 0,
			interface_id TEXT NOT NULL DEFAULT '0x00000000',
			data TEXT NOT NULL DEFAULT '0x',
			initiator_signature TEXT NOT NULL DEFAULT '',
			approver_signature TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);`,
		postgres: `
		CREATE TABLE IF NOT EXISTS associations (
			id TEXT PRIMARY KEY,
			initiator TEXT NOT NULL,
			approver TEXT NOT NULL,
			valid_at BIGINT NOT NULL DEFAULT 0,
			valid_until BIGINT NOT NULL DEFAULT 0,
			interface_id TEXT NOT NULL DEFAULT '0x00000000',
			data TEXT NOT NULL DEFAULT '0x',
			initiator_signature TEXT NOT NULL DEFAULT '',
			approver_signature TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);`,
	},
}
