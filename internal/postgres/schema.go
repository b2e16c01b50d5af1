package postgres

// schema is applied on startup. Statements are idempotent so a fresh
// database and an existing one both end up in the same shape.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id            BIGSERIAL PRIMARY KEY,
	name          TEXT NOT NULL,
	slug          TEXT NOT NULL DEFAULT '',
	city          TEXT NOT NULL DEFAULT '',
	country       TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	latitude      DOUBLE PRECISION,
	longitude     DOUBLE PRECISION,
	status        TEXT NOT NULL DEFAULT 'active',
	redirect_id   BIGINT REFERENCES events(id),
	needs_reindex BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS events_slug_idx ON events (slug);
CREATE INDEX IF NOT EXISTS events_needs_reindex_idx ON events (needs_reindex) WHERE needs_reindex;

CREATE TABLE IF NOT EXISTS editions (
	id           BIGSERIAL PRIMARY KEY,
	event_id     BIGINT NOT NULL REFERENCES events(id),
	year         INTEGER NOT NULL DEFAULT 0,
	start_date   TIMESTAMPTZ,
	end_date     TIMESTAMPTZ,
	region_name  TEXT NOT NULL DEFAULT '',
	region_code  TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	confirmed    BOOLEAN NOT NULL DEFAULT FALSE,
	confirmed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS editions_event_idx ON editions (event_id);

CREATE TABLE IF NOT EXISTS organizers (
	id         BIGSERIAL PRIMARY KEY,
	edition_id BIGINT NOT NULL REFERENCES editions(id) UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	website    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS races (
	id          BIGSERIAL PRIMARY KEY,
	edition_id  BIGINT NOT NULL REFERENCES editions(id),
	name        TEXT NOT NULL DEFAULT '',
	distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
	start_time  TIMESTAMPTZ,
	price       TEXT NOT NULL DEFAULT '',
	active      BOOLEAN NOT NULL DEFAULT FALSE,
	archived    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS races_edition_idx ON races (edition_id) WHERE NOT archived;

CREATE TABLE IF NOT EXISTS proposals (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	source          TEXT NOT NULL DEFAULT '',
	changes         JSONB NOT NULL DEFAULT '{}',
	user_changes    JSONB NOT NULL DEFAULT '{}',
	approved_blocks JSONB NOT NULL DEFAULT '{}',
	event_id        BIGINT,
	edition_id      BIGINT,
	race_id         BIGINT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS proposal_applications (
	id          TEXT PRIMARY KEY,
	proposal_id TEXT NOT NULL,
	block       TEXT NOT NULL DEFAULT '',
	success     BOOLEAN NOT NULL,
	applied     JSONB NOT NULL DEFAULT '{}',
	filtered    JSONB NOT NULL DEFAULT '{}',
	created_ids JSONB NOT NULL DEFAULT '{}',
	errors      JSONB NOT NULL DEFAULT '[]',
	warnings    JSONB NOT NULL DEFAULT '[]',
	applied_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS proposal_applications_proposal_idx
	ON proposal_applications (proposal_id, applied_at DESC);
`
