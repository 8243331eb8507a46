package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_steps (
	id          TEXT PRIMARY KEY,
	op          TEXT NOT NULL CHECK(op IN ('mark_read', 'mark_all_read', 'delete')),
	source      TEXT NOT NULL,
	ids         TEXT NOT NULL DEFAULT '[]',
	status      TEXT NOT NULL DEFAULT 'pending'
	            CHECK(status IN ('pending', 'succeeded', 'failed', 'retried')),
	error       TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_journal_steps_status ON journal_steps(status);
CREATE INDEX IF NOT EXISTS idx_journal_steps_created ON journal_steps(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
