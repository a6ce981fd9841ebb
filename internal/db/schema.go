package db

// Schema creates every auxiliary table the core's derived structures live
// in (spec §6's "embedded database" list): dedup registry, embedding cache,
// relationship graph, PageRank scores, access/retrieval logs, generational
// GC bookkeeping, reinforcement schedules, reference counts, search cache,
// circuit breaker state, emotional tags, and schema/temporal bookkeeping.
// Modeled on the teacher's inline CREATE TABLE IF NOT EXISTS style (see
// internal/storage/postgres/schema.go) rather than external migration
// files, since every table here is owned by this module alone.
const Schema = `
CREATE TABLE IF NOT EXISTS content_hashes (
	memory_id       TEXT PRIMARY KEY,
	exact_hash      TEXT NOT NULL,
	normalized_hash TEXT NOT NULL,
	semantic_hash   TEXT,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_hashes_exact ON content_hashes(exact_hash);
CREATE INDEX IF NOT EXISTS idx_content_hashes_normalized ON content_hashes(normalized_hash);
CREATE INDEX IF NOT EXISTS idx_content_hashes_semantic ON content_hashes(semantic_hash);

CREATE TABLE IF NOT EXISTS dedup_events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	candidate_id    TEXT NOT NULL,
	matched_id      TEXT,
	level           TEXT NOT NULL,
	decision        TEXT NOT NULL,
	created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dedup_events_candidate ON dedup_events(candidate_id);

CREATE TABLE IF NOT EXISTS embeddings (
	memory_id   TEXT PRIMARY KEY,
	model       TEXT NOT NULL,
	dimensions  INTEGER NOT NULL,
	vector      BLOB NOT NULL,
	created_at  TEXT NOT NULL,
	accessed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_embeddings_accessed ON embeddings(accessed_at);

CREATE TABLE IF NOT EXISTS memory_relationships (
	id          TEXT PRIMARY KEY,
	from_id     TEXT NOT NULL,
	to_id       TEXT NOT NULL,
	type        TEXT NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	valid_from  TEXT NOT NULL,
	valid_to    TEXT,
	auto_detected INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	UNIQUE(from_id, to_id, type)
);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON memory_relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON memory_relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_relationships_type ON memory_relationships(type);

CREATE TABLE IF NOT EXISTS memory_pagerank (
	memory_id   TEXT PRIMARY KEY,
	score       REAL NOT NULL,
	in_degree   INTEGER NOT NULL DEFAULT 0,
	out_degree  INTEGER NOT NULL DEFAULT 0,
	computed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_access_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id   TEXT NOT NULL,
	access_type TEXT NOT NULL,
	accessed_at TEXT NOT NULL,
	query       TEXT
);
CREATE INDEX IF NOT EXISTS idx_access_log_memory ON memory_access_log(memory_id);
CREATE INDEX IF NOT EXISTS idx_access_log_time ON memory_access_log(accessed_at);

CREATE TABLE IF NOT EXISTS retrieval_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	query          TEXT NOT NULL,
	project_id     TEXT,
	result_ids     TEXT NOT NULL,
	result_count   INTEGER NOT NULL,
	cache_hit      INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_retrieval_log_time ON retrieval_log(created_at);

CREATE TABLE IF NOT EXISTS retrieval_blind_spots (
	memory_id      TEXT PRIMARY KEY,
	access_count   INTEGER NOT NULL DEFAULT 0,
	last_flagged   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_generations (
	memory_id      TEXT PRIMARY KEY,
	generation     INTEGER NOT NULL DEFAULT 0,
	promoted_at    TEXT NOT NULL,
	previous_generation INTEGER,
	survived_count INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generations_generation ON memory_generations(generation);

CREATE TABLE IF NOT EXISTS gc_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	generation  INTEGER NOT NULL,
	reason      TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_schedule (
	memory_id      TEXT PRIMARY KEY,
	due_at         TEXT NOT NULL,
	interval_days  REAL NOT NULL,
	stability      REAL NOT NULL DEFAULT 0,
	ease           REAL NOT NULL DEFAULT 2.5,
	repetitions    INTEGER NOT NULL DEFAULT 0,
	last_grade     TEXT,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_schedule_due ON review_schedule(due_at);

CREATE TABLE IF NOT EXISTS review_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id   TEXT NOT NULL,
	grade       TEXT NOT NULL,
	reviewed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_review_history_memory ON review_history(memory_id);

CREATE TABLE IF NOT EXISTS reference_counts (
	memory_id      TEXT NOT NULL,
	ref_type       TEXT NOT NULL,
	count          INTEGER NOT NULL DEFAULT 0,
	updated_at     TEXT NOT NULL,
	PRIMARY KEY (memory_id, ref_type)
);

CREATE TABLE IF NOT EXISTS search_cache (
	cache_key   TEXT PRIMARY KEY,
	query       TEXT NOT NULL,
	project_id  TEXT,
	results     TEXT NOT NULL,
	hits        INTEGER NOT NULL DEFAULT 0,
	last_hit    TEXT,
	created_at  TEXT NOT NULL,
	expires_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_cache_expires ON search_cache(expires_at);

CREATE TABLE IF NOT EXISTS search_analytics (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	query         TEXT NOT NULL,
	hit           INTEGER NOT NULL,
	result_count  INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS circuit_breaker_state (
	name           TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	failure_count  INTEGER NOT NULL DEFAULT 0,
	last_failure_at TEXT,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS emotional_tags (
	memory_id   TEXT PRIMARY KEY,
	valence     REAL NOT NULL DEFAULT 0,
	arousal     REAL NOT NULL DEFAULT 0,
	flashbulb   INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event       TEXT NOT NULL,
	detail      TEXT,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS temporal_edges (
	id          TEXT PRIMARY KEY,
	from_id     TEXT NOT NULL,
	to_id       TEXT NOT NULL,
	type        TEXT NOT NULL,
	valid_from  TEXT NOT NULL,
	valid_to    TEXT,
	superseded_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_temporal_edges_from ON temporal_edges(from_id);
`
