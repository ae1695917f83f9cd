package store

// migrations lists schema changes in forward-only order, mirroring the
// teacher's versioned migrationVN consts in internal/state/db.go.
var migrations = []struct {
	version int
	sql     string
}{
	{1, migrationV1Missions},
	{2, migrationV2Epochs},
	{3, migrationV3WorkUnits},
	{4, migrationV4Backlog},
	{5, migrationV5ReviewsAndContext},
}

const migrationV1Missions = `
CREATE TABLE IF NOT EXISTS missions (
	id TEXT PRIMARY KEY,
	objective TEXT NOT NULL,
	verification_command TEXT,
	budget_usd REAL NOT NULL DEFAULT 0,
	wall_time_budget_ns INTEGER NOT NULL DEFAULT 0,
	started_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'running',
	stop_reason TEXT,
	total_cost_usd REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);
`

const migrationV2Epochs = `
CREATE TABLE IF NOT EXISTS epochs (
	id TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL REFERENCES missions(id),
	ordinal INTEGER NOT NULL,
	planned_unit_ids TEXT,
	dispatched_unit_ids TEXT,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	ambition_score REAL NOT NULL DEFAULT 0,
	all_failed INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_epochs_mission_id ON epochs(mission_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_epochs_mission_ordinal ON epochs(mission_id, ordinal);
`

const migrationV3WorkUnits = `
CREATE TABLE IF NOT EXISTS work_units (
	id TEXT PRIMARY KEY,
	mission_id TEXT NOT NULL REFERENCES missions(id),
	epoch_id TEXT REFERENCES epochs(id),
	description TEXT NOT NULL,
	files_hint TEXT,
	depends_on TEXT,
	acceptance_criteria TEXT,
	specialist_tag TEXT,
	needs_research INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL DEFAULT 'pending',
	attempt_count INTEGER NOT NULL DEFAULT 0,
	queued_at TEXT NOT NULL,
	last_failure_reason TEXT,
	created_at TEXT NOT NULL,
	completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_work_units_mission_id ON work_units(mission_id);
CREATE INDEX IF NOT EXISTS idx_work_units_epoch_id ON work_units(epoch_id);
CREATE INDEX IF NOT EXISTS idx_work_units_state ON work_units(state);
`

const migrationV4Backlog = `
CREATE TABLE IF NOT EXISTS backlog_items (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	impact REAL NOT NULL DEFAULT 0,
	effort REAL NOT NULL DEFAULT 0,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	pinned_score REAL,
	last_failure TEXT,
	stale_since TEXT
);
`

const migrationV5ReviewsAndContext = `
CREATE TABLE IF NOT EXISTS review_records (
	unit_id TEXT PRIMARY KEY REFERENCES work_units(id),
	alignment INTEGER NOT NULL DEFAULT 0,
	approach INTEGER NOT NULL DEFAULT 0,
	tests INTEGER NOT NULL DEFAULT 0,
	notes TEXT,
	parsed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS context_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mission_id TEXT NOT NULL REFERENCES missions(id),
	unit_id TEXT REFERENCES work_units(id),
	content TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_context_items_mission_id ON context_items(mission_id);

CREATE TABLE IF NOT EXISTS reflections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	mission_id TEXT NOT NULL REFERENCES missions(id),
	epoch_ordinal INTEGER NOT NULL,
	feedback TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reflections_mission_id ON reflections(mission_id);
`
