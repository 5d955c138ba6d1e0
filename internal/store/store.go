package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotInitialized is returned when the sentinel projects are missing,
// meaning initialize-store has not been run against the database.
var ErrNotInitialized = errors.New("store not initialized")

// Store is the SQLite data access layer for the linked symbol graph.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
// Transactions take the write lock immediately so concurrent stage workers
// wait on the busy timeout instead of failing on lock upgrade.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// tables lists every table in drop order (children first).
var tables = []string{
	"import_runs",
	"metrics",
	"problems",
	"comments",
	"imports",
	"relations",
	"entities",
	"files",
	"project_dependencies",
	"projects",
}

// Reset drops every table and recreates the schema.
func (s *Store) Reset() error {
	for _, t := range tables {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	return s.Migrate()
}

// primitives are the platform primitive types seeded into the primitives
// project.
var primitives = []string{"boolean", "char", "byte", "short", "int", "long", "float", "double", "void"}

// Seed inserts the sentinel projects and the primitive entities. Sentinel
// projects are created already done so the pipeline never schedules them.
func (s *Store) Seed() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer tx.Rollback()

	sentinels := []Project{
		{Name: PrimitivesProject, Kind: ProjectPrimitive, Hash: PrimitivesProject, Marker: End(StageDone)},
		{Name: UnknownsProject, Kind: ProjectUnknown, Hash: UnknownsProject, Marker: End(StageDone)},
		{Name: NotApplicableProject, Kind: ProjectSynthetic, Hash: NotApplicableProject, Marker: End(StageDone)},
	}
	var primitivesID int64
	for i := range sentinels {
		id, err := insertProjectTx(tx, &sentinels[i])
		if err != nil {
			return fmt.Errorf("seed: project %q: %w", sentinels[i].Name, err)
		}
		if sentinels[i].Kind == ProjectPrimitive {
			primitivesID = id
		}
	}
	for _, name := range primitives {
		if _, err := insertEntityTx(tx, &Entity{
			Kind:      KindPrimitive,
			FQN:       name,
			ProjectID: primitivesID,
			Stage:     StageEntity,
		}); err != nil {
			return fmt.Errorf("seed: primitive %q: %w", name, err)
		}
	}
	return tx.Commit()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS projects (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  hash            TEXT NOT NULL UNIQUE,
  path            TEXT,
  description     TEXT,
  version         TEXT,
  grp             TEXT,
  stage           INTEGER NOT NULL DEFAULT 0,
  dirty           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS project_dependencies (
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  depends_on_id   INTEGER NOT NULL REFERENCES projects(id),
  PRIMARY KEY (project_id, depends_on_id)
);

CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  path            TEXT NOT NULL,
  kind            TEXT NOT NULL,
  hash            TEXT,
  UNIQUE (project_id, path)
);

CREATE TABLE IF NOT EXISTS entities (
  id                INTEGER PRIMARY KEY,
  kind              TEXT NOT NULL,
  fqn               TEXT NOT NULL,
  signature         TEXT NOT NULL DEFAULT '',
  erased_signature  TEXT NOT NULL DEFAULT '',
  modifiers         TEXT,
  multi             INTEGER NOT NULL DEFAULT 0,
  position          INTEGER,
  provenance        TEXT,
  project_id        INTEGER NOT NULL REFERENCES projects(id),
  origin_project_id INTEGER REFERENCES projects(id),
  file_id           INTEGER REFERENCES files(id),
  offset            INTEGER,
  length            INTEGER,
  stage             INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
  id              INTEGER PRIMARY KEY,
  kind            TEXT NOT NULL,
  lhs_id          INTEGER NOT NULL REFERENCES entities(id),
  rhs_id          INTEGER NOT NULL REFERENCES entities(id),
  provenance      TEXT NOT NULL,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  file_id         INTEGER REFERENCES files(id),
  offset          INTEGER,
  length          INTEGER,
  position        INTEGER,
  stage           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imports (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  file_id         INTEGER NOT NULL REFERENCES files(id),
  entity_id       INTEGER NOT NULL REFERENCES entities(id),
  provenance      TEXT NOT NULL,
  on_demand       INTEGER NOT NULL DEFAULT 0,
  static          INTEGER NOT NULL DEFAULT 0,
  offset          INTEGER,
  length          INTEGER
);

CREATE TABLE IF NOT EXISTS comments (
  id              INTEGER PRIMARY KEY,
  kind            TEXT NOT NULL,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  file_id         INTEGER REFERENCES files(id),
  entity_id       INTEGER REFERENCES entities(id),
  offset          INTEGER,
  length          INTEGER
);

CREATE TABLE IF NOT EXISTS problems (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  file_id         INTEGER NOT NULL REFERENCES files(id),
  kind            TEXT NOT NULL,
  error_code      INTEGER,
  message         TEXT
);

CREATE TABLE IF NOT EXISTS metrics (
  id              INTEGER PRIMARY KEY,
  project_id      INTEGER NOT NULL REFERENCES projects(id),
  file_id         INTEGER REFERENCES files(id),
  entity_id       INTEGER REFERENCES entities(id),
  kind            TEXT NOT NULL,
  value           REAL NOT NULL,
  stage           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS import_runs (
  id              TEXT PRIMARY KEY,
  command         TEXT NOT NULL,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP,
  status          TEXT NOT NULL,
  report          TEXT
);

CREATE INDEX IF NOT EXISTS idx_files_project ON files(project_id);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(fqn, signature);
CREATE INDEX IF NOT EXISTS idx_entities_erased ON entities(fqn, erased_signature);
CREATE INDEX IF NOT EXISTS idx_entities_project ON entities(project_id);
CREATE INDEX IF NOT EXISTS idx_entities_origin ON entities(origin_project_id);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_relations_lhs ON relations(lhs_id);
CREATE INDEX IF NOT EXISTS idx_relations_rhs ON relations(rhs_id);
CREATE INDEX IF NOT EXISTS idx_relations_project ON relations(project_id);
CREATE INDEX IF NOT EXISTS idx_relations_kind ON relations(kind);
CREATE INDEX IF NOT EXISTS idx_imports_project ON imports(project_id);
CREATE INDEX IF NOT EXISTS idx_comments_project ON comments(project_id);
CREATE INDEX IF NOT EXISTS idx_metrics_project ON metrics(project_id);
`
