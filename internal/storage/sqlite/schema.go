package sqlite

// Schema defines the SQLite schema for the Rapport signal engine. All
// statements are idempotent so the schema can be applied on every open.
//
// The (user_id, content_hash) unique index on user_memory backs the atomic
// insert-or-reinforce upsert that removes the check-then-insert dedup race
// under concurrent extraction runs for the same user.
const Schema = `
CREATE TABLE IF NOT EXISTS emotion_timeline (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	emotion    TEXT NOT NULL,
	intensity  REAL NOT NULL,
	timestamp  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timeline_user_time
	ON emotion_timeline(user_id, timestamp);

CREATE TABLE IF NOT EXISTS trust_score (
	user_id      TEXT PRIMARY KEY,
	score        INTEGER NOT NULL,
	factors      TEXT NOT NULL DEFAULT '{}',
	last_updated TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS user_memory (
	id                         TEXT PRIMARY KEY,
	user_id                    TEXT NOT NULL,
	memory_type                TEXT NOT NULL,
	category                   TEXT NOT NULL,
	content                    TEXT NOT NULL,
	confidence                 REAL NOT NULL,
	first_mentioned_session_id TEXT,
	last_reinforced_at         TIMESTAMP NOT NULL,
	created_at                 TIMESTAMP NOT NULL,
	content_hash               TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_user_hash
	ON user_memory(user_id, content_hash);

CREATE INDEX IF NOT EXISTS idx_memory_user_confidence
	ON user_memory(user_id, confidence);
`
