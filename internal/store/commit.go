package store

import (
	"database/sql"
	"fmt"
)

// CommitBatch inserts all buffered rows from a BatchedStore into SQLite and
// records the project's new stage marker within a single transaction. Fake
// (negative) IDs are remapped to real IDs, and every reference within the
// batch is rewritten using the fakeToReal mapping. IDs that are already
// positive point at committed rows (other projects, unknown stubs) and are
// kept as-is.
//
// Insert order respects FK dependencies:
//  1. Files (depend on project_id only)
//  2. Entities (depend on file_id)
//  3. Relations (depend on entity IDs, file_id)
//  4. Imports, comments, problems, metrics (depend on file_id, entity_id)
//  5. Dependencies
//  6. Stage marker
func (s *Store) CommitBatch(batch *BatchedStore, projectID int64, marker Marker) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	fakeToReal := make(map[int64]int64)
	remap := func(id int64) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		realID, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("id %d not in fakeToReal map", id)
		}
		return realID, nil
	}
	remapPtr := func(id *int64) (*int64, error) {
		if id == nil {
			return nil, nil
		}
		realID, err := remap(*id)
		if err != nil {
			return nil, err
		}
		return &realID, nil
	}

	// 1. Files
	for _, f := range batch.Files {
		realID, err := insertFileTx(tx, &f)
		if err != nil {
			return fmt.Errorf("commit batch: file %q: %w", f.Path, err)
		}
		fakeToReal[f.ID] = realID
	}

	// 2. Entities
	for _, e := range batch.Entities {
		fakeID := e.ID
		if e.FileID, err = remapPtr(e.FileID); err != nil {
			return fmt.Errorf("commit batch: entity %q file: %w", e.Name(), err)
		}
		realID, err := insertEntityTx(tx, &e)
		if err != nil {
			return fmt.Errorf("commit batch: entity %q: %w", e.Name(), err)
		}
		fakeToReal[fakeID] = realID
	}

	// 3. Relations
	for _, r := range batch.Relations {
		if r.LHS, err = remap(r.LHS); err != nil {
			return fmt.Errorf("commit batch: %s relation lhs: %w", r.Kind, err)
		}
		if r.RHS, err = remap(r.RHS); err != nil {
			return fmt.Errorf("commit batch: %s relation rhs: %w", r.Kind, err)
		}
		if r.FileID, err = remapPtr(r.FileID); err != nil {
			return fmt.Errorf("commit batch: %s relation file: %w", r.Kind, err)
		}
		if _, err := insertRelationTx(tx, &r); err != nil {
			return fmt.Errorf("commit batch: %s relation: %w", r.Kind, err)
		}
	}

	// 4. Imports, comments, problems, metrics
	for _, imp := range batch.Imports {
		if imp.FileID, err = remap(imp.FileID); err != nil {
			return fmt.Errorf("commit batch: import file: %w", err)
		}
		if imp.EntityID, err = remap(imp.EntityID); err != nil {
			return fmt.Errorf("commit batch: import entity: %w", err)
		}
		if _, err := insertImportTx(tx, &imp); err != nil {
			return fmt.Errorf("commit batch: import: %w", err)
		}
	}
	for _, c := range batch.Comments {
		if c.FileID, err = remapPtr(c.FileID); err != nil {
			return fmt.Errorf("commit batch: comment file: %w", err)
		}
		if c.EntityID, err = remapPtr(c.EntityID); err != nil {
			return fmt.Errorf("commit batch: comment entity: %w", err)
		}
		if _, err := insertCommentTx(tx, &c); err != nil {
			return fmt.Errorf("commit batch: comment: %w", err)
		}
	}
	for _, p := range batch.Problems {
		if p.FileID, err = remap(p.FileID); err != nil {
			return fmt.Errorf("commit batch: problem file: %w", err)
		}
		if _, err := insertProblemTx(tx, &p); err != nil {
			return fmt.Errorf("commit batch: problem: %w", err)
		}
	}
	for _, m := range batch.Metrics {
		if m.FileID, err = remapPtr(m.FileID); err != nil {
			return fmt.Errorf("commit batch: metric %q file: %w", m.Kind, err)
		}
		if m.EntityID, err = remapPtr(m.EntityID); err != nil {
			return fmt.Errorf("commit batch: metric %q entity: %w", m.Kind, err)
		}
		if _, err := insertMetricTx(tx, &m); err != nil {
			return fmt.Errorf("commit batch: metric %q: %w", m.Kind, err)
		}
	}

	// 5. Dependencies
	for _, d := range batch.Dependencies {
		if err := addDependencyTx(tx, d); err != nil {
			return fmt.Errorf("commit batch: dependency %d -> %d: %w", d.ProjectID, d.DependsOnID, err)
		}
	}

	// 6. Stage marker
	if err := setMarkerTx(tx, projectID, marker); err != nil {
		return fmt.Errorf("commit batch: marker %s: %w", marker, err)
	}

	return tx.Commit()
}

// --- Transaction-scoped insert helpers ---
// These accept an execer so Store's direct insert methods share them.

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func lastID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertFileTx(ex execer, f *File) (int64, error) {
	return lastID(ex.Exec(
		"INSERT INTO files (project_id, path, kind, hash) VALUES (?, ?, ?, ?)",
		f.ProjectID, f.Path, f.Kind, f.Hash,
	))
}

func insertEntityTx(ex execer, e *Entity) (int64, error) {
	return lastID(ex.Exec(insertEntitySQL, entityArgs(e)...))
}

func insertRelationTx(ex execer, r *Relation) (int64, error) {
	return lastID(ex.Exec(insertRelationSQL, relationArgs(r)...))
}

func insertImportTx(ex execer, imp *Import) (int64, error) {
	return lastID(ex.Exec(
		`INSERT INTO imports (project_id, file_id, entity_id, provenance, on_demand, static, offset, length)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		imp.ProjectID, imp.FileID, imp.EntityID, imp.Provenance, imp.OnDemand, imp.Static, imp.Offset, imp.Length,
	))
}

func insertCommentTx(ex execer, c *Comment) (int64, error) {
	return lastID(ex.Exec(
		`INSERT INTO comments (kind, project_id, file_id, entity_id, offset, length)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.Kind, c.ProjectID, c.FileID, c.EntityID, c.Offset, c.Length,
	))
}

func insertProblemTx(ex execer, p *Problem) (int64, error) {
	return lastID(ex.Exec(
		`INSERT INTO problems (project_id, file_id, kind, error_code, message) VALUES (?, ?, ?, ?, ?)`,
		p.ProjectID, p.FileID, p.Kind, p.ErrorCode, p.Message,
	))
}

func insertMetricTx(ex execer, m *Metric) (int64, error) {
	return lastID(ex.Exec(
		`INSERT INTO metrics (project_id, file_id, entity_id, kind, value, stage) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ProjectID, m.FileID, m.EntityID, m.Kind, m.Value, m.Stage,
	))
}

func addDependencyTx(ex execer, d Dependency) error {
	_, err := ex.Exec(
		"INSERT OR IGNORE INTO project_dependencies (project_id, depends_on_id) VALUES (?, ?)",
		d.ProjectID, d.DependsOnID,
	)
	return err
}

// --- Direct inserts, used outside of batched stage work ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	id, err := insertImportTx(s.db, imp)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) InsertComment(c *Comment) (int64, error) {
	id, err := insertCommentTx(s.db, c)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	c.ID = id
	return id, nil
}

func (s *Store) InsertProblem(p *Problem) (int64, error) {
	id, err := insertProblemTx(s.db, p)
	if err != nil {
		return 0, fmt.Errorf("insert problem: %w", err)
	}
	p.ID = id
	return id, nil
}

func (s *Store) InsertMetric(m *Metric) (int64, error) {
	id, err := insertMetricTx(s.db, m)
	if err != nil {
		return 0, fmt.Errorf("insert metric: %w", err)
	}
	m.ID = id
	return id, nil
}

func (s *Store) AddDependency(d Dependency) error {
	if err := addDependencyTx(s.db, d); err != nil {
		return fmt.Errorf("add dependency: %w", err)
	}
	return nil
}
