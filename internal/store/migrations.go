package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// Schema changes must stay additive (new nullable columns with safe
// defaults) so older builds can still read the database.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snooze_records (
	id               TEXT PRIMARY KEY,
	thread_id        TEXT NOT NULL,
	notification_key TEXT NOT NULL DEFAULT '',
	package_name     TEXT NOT NULL,
	app_name         TEXT NOT NULL DEFAULT '',
	title            TEXT NOT NULL DEFAULT '',
	text             TEXT NOT NULL DEFAULT '',
	snooze_end_time  INTEGER NOT NULL,
	created_at       INTEGER NOT NULL,
	source_type      TEXT NOT NULL DEFAULT 'notification',
	shortcut_id      TEXT NOT NULL DEFAULT '',
	group_key        TEXT NOT NULL DEFAULT '',
	content_type     TEXT NOT NULL DEFAULT '',
	messages_json    TEXT NOT NULL DEFAULT '[]',
	status           TEXT NOT NULL DEFAULT 'active',
	suppressed_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_records_thread_id ON snooze_records(thread_id);
CREATE INDEX IF NOT EXISTS idx_records_status ON snooze_records(status);
CREATE INDEX IF NOT EXISTS idx_records_thread_status ON snooze_records(thread_id, status);
CREATE INDEX IF NOT EXISTS idx_records_end_time ON snooze_records(snooze_end_time);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON snooze_records(created_at);

CREATE TABLE IF NOT EXISTS ignored_threads (
	thread_id        TEXT PRIMARY KEY,
	package_name     TEXT NOT NULL,
	app_name         TEXT NOT NULL DEFAULT '',
	display_title    TEXT NOT NULL DEFAULT '',
	ignored_at       INTEGER NOT NULL,
	is_package_level INTEGER NOT NULL DEFAULT 0 CHECK(is_package_level IN (0, 1))
);

CREATE INDEX IF NOT EXISTS idx_ignored_package ON ignored_threads(package_name);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE snooze_records ADD COLUMN content_intent_ref TEXT NOT NULL DEFAULT '';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
