package postgres

// Schema defines the base PostgreSQL schema. All statements are idempotent so
// the schema can be applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS emotion_timeline (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	session_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	emotion    TEXT NOT NULL,
	intensity  DOUBLE PRECISION NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_timeline_user_time
	ON emotion_timeline(user_id, timestamp);

CREATE TABLE IF NOT EXISTS trust_score (
	user_id      TEXT PRIMARY KEY,
	score        INTEGER NOT NULL,
	factors      JSONB NOT NULL DEFAULT '{}',
	last_updated TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS user_memory (
	id                         TEXT PRIMARY KEY,
	user_id                    TEXT NOT NULL,
	memory_type                TEXT NOT NULL,
	category                   TEXT NOT NULL,
	content                    TEXT NOT NULL,
	confidence                 DOUBLE PRECISION NOT NULL,
	first_mentioned_session_id TEXT,
	last_reinforced_at         TIMESTAMPTZ NOT NULL,
	created_at                 TIMESTAMPTZ NOT NULL,
	content_hash               TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_user_hash
	ON user_memory(user_id, content_hash);

CREATE INDEX IF NOT EXISTS idx_memory_user_confidence
	ON user_memory(user_id, confidence);
`

// MigrationPgvector adds the embedding column used for similarity-based
// memory retrieval. Applied only when the pgvector extension is present.
const MigrationPgvector = `
ALTER TABLE user_memory ADD COLUMN IF NOT EXISTS embedding vector(1536);

CREATE INDEX IF NOT EXISTS idx_memory_embedding
	ON user_memory USING ivfflat (embedding vector_cosine_ops);
`
