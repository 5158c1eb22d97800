package postgres

// migrations run in order on every Migrate call; each is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id          TEXT PRIMARY KEY,
		client      TEXT        NOT NULL,
		status      TEXT        NOT NULL DEFAULT 'open',
		tags        TEXT[]      NOT NULL DEFAULT '{}',
		deadline    TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		version     BIGINT      NOT NULL DEFAULT 1,
		document    JSONB       NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_client ON jobs (client)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_tags ON jobs USING GIN (tags)`,
	`CREATE TABLE IF NOT EXISTS users (
		id        TEXT PRIMARY KEY,
		username  TEXT NOT NULL,
		email     TEXT NOT NULL,
		role      TEXT NOT NULL
	)`,
}
