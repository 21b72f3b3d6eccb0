package sqlite

import "github.com/talentdb/talent/internal/storage/migrations"

// Timestamps are stored as fixed-width UTC text so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "candidates and config tables",
		Up: `
-- Candidates table
CREATE TABLE IF NOT EXISTS candidates (
    id TEXT PRIMARY KEY,
    full_name TEXT NOT NULL DEFAULT '' CHECK(length(full_name) <= 500),
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    linkedin_url TEXT NOT NULL DEFAULT '',
    current_company TEXT NOT NULL DEFAULT '',
    apollo_id TEXT NOT NULL DEFAULT '',
    loxo_id TEXT NOT NULL DEFAULT '',
    headline TEXT NOT NULL DEFAULT '',
    current_title TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    skills TEXT NOT NULL DEFAULT '[]',
    employment_history TEXT,
    cv_parsed_text TEXT NOT NULL DEFAULT '',
    apollo_raw_data TEXT,
    loxo_raw_data TEXT,
    source TEXT NOT NULL DEFAULT 'manual'
        CHECK(source IN ('apollo', 'loxo', 'cv_upload', 'manual')),
    embedding_status TEXT NOT NULL DEFAULT 'pending'
        CHECK(embedding_status IN ('pending', 'processing', 'completed', 'failed')),
    last_synced_at TEXT,
    version INTEGER NOT NULL DEFAULT 1 CHECK(version >= 1),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_linkedin ON candidates(linkedin_url) WHERE linkedin_url != '';
CREATE INDEX IF NOT EXISTS idx_candidates_email ON candidates(email) WHERE email != '';
CREATE INDEX IF NOT EXISTS idx_candidates_name_company ON candidates(full_name, current_company)
    WHERE full_name != '' AND current_company != '';
CREATE INDEX IF NOT EXISTS idx_candidates_apollo ON candidates(apollo_id) WHERE apollo_id != '';
CREATE INDEX IF NOT EXISTS idx_candidates_loxo ON candidates(loxo_id) WHERE loxo_id != '';
CREATE INDEX IF NOT EXISTS idx_candidates_phone ON candidates(phone) WHERE phone != '';
CREATE INDEX IF NOT EXISTS idx_candidates_created ON candidates(created_at, id);
CREATE INDEX IF NOT EXISTS idx_candidates_embedding ON candidates(embedding_status);

-- Config table (key-value store)
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`,
		Down: `
DROP TABLE IF EXISTS config;
DROP TABLE IF EXISTS candidates;
`,
	},
	{
		Version:     2,
		Description: "ingest audit events",
		Up: `
CREATE TABLE IF NOT EXISTS ingest_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp TEXT NOT NULL,
    candidate_id TEXT NOT NULL DEFAULT '',
    batch_id TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL CHECK(severity IN ('info', 'warning', 'error', 'critical')),
    message TEXT NOT NULL DEFAULT '',
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_ingest_events_timestamp ON ingest_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_ingest_events_candidate ON ingest_events(candidate_id);
CREATE INDEX IF NOT EXISTS idx_ingest_events_batch ON ingest_events(batch_id);
CREATE INDEX IF NOT EXISTS idx_ingest_events_severity ON ingest_events(severity, timestamp);
`,
		Down: `
DROP TABLE IF EXISTS ingest_events;
`,
	},
}
