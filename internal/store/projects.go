package store

import (
	"database/sql"
	"fmt"
)

// --- Project operations ---

func insertProjectTx(tx *sql.Tx, p *Project) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO projects (name, kind, hash, path, description, version, grp, stage, dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Kind, p.Hash, p.Path, p.Description, p.Version, p.Group,
		p.Marker.Stage, p.Marker.Dirty,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// InsertProject creates a project row. The marker is stored as given.
func (s *Store) InsertProject(p *Project) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO projects (name, kind, hash, path, description, version, grp, stage, dirty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Kind, p.Hash, p.Path, p.Description, p.Version, p.Group,
		p.Marker.Stage, p.Marker.Dirty,
	)
	if err != nil {
		return 0, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return id, nil
}

const projectCols = `id, name, kind, hash, COALESCE(path, ''), COALESCE(description, ''),
	COALESCE(version, ''), COALESCE(grp, ''), stage, dirty`

func scanProject(scanner interface{ Scan(...any) error }) (*Project, error) {
	p := &Project{}
	err := scanner.Scan(&p.ID, &p.Name, &p.Kind, &p.Hash, &p.Path, &p.Description,
		&p.Version, &p.Group, &p.Marker.Stage, &p.Marker.Dirty)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) queryProject(query string, args ...any) (*Project, error) {
	p, err := scanProject(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) queryProjects(query string, args ...any) ([]*Project, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectByID returns the project or nil if it does not exist.
func (s *Store) ProjectByID(id int64) (*Project, error) {
	p, err := s.queryProject("SELECT "+projectCols+" FROM projects WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("project by id: %w", err)
	}
	return p, nil
}

// ProjectByHash returns the project with the given identity hash, or nil.
func (s *Store) ProjectByHash(hash string) (*Project, error) {
	p, err := s.queryProject("SELECT "+projectCols+" FROM projects WHERE hash = ?", hash)
	if err != nil {
		return nil, fmt.Errorf("project by hash: %w", err)
	}
	return p, nil
}

// ProjectByName returns the first project with the given name, or nil.
func (s *Store) ProjectByName(name string) (*Project, error) {
	p, err := s.queryProject("SELECT "+projectCols+" FROM projects WHERE name = ? ORDER BY id LIMIT 1", name)
	if err != nil {
		return nil, fmt.Errorf("project by name: %w", err)
	}
	return p, nil
}

func (s *Store) Projects() ([]*Project, error) {
	projects, err := s.queryProjects("SELECT " + projectCols + " FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	return projects, nil
}

func (s *Store) ProjectsByKind(kind ProjectKind) ([]*Project, error) {
	projects, err := s.queryProjects("SELECT "+projectCols+" FROM projects WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, fmt.Errorf("projects by kind: %w", err)
	}
	return projects, nil
}

// Marker reads the persisted stage marker of a project.
func (s *Store) Marker(projectID int64) (Marker, error) {
	var m Marker
	err := s.db.QueryRow("SELECT stage, dirty FROM projects WHERE id = ?", projectID).Scan(&m.Stage, &m.Dirty)
	if err != nil {
		return Marker{}, fmt.Errorf("marker for project %d: %w", projectID, err)
	}
	return m, nil
}

// SetMarker persists a project's stage marker.
func (s *Store) SetMarker(projectID int64, m Marker) error {
	if _, err := s.db.Exec("UPDATE projects SET stage = ?, dirty = ? WHERE id = ?", m.Stage, m.Dirty, projectID); err != nil {
		return fmt.Errorf("set marker for project %d: %w", projectID, err)
	}
	return nil
}

func setMarkerTx(tx *sql.Tx, projectID int64, m Marker) error {
	_, err := tx.Exec("UPDATE projects SET stage = ?, dirty = ? WHERE id = ?", m.Stage, m.Dirty, projectID)
	return err
}

// Dependencies returns the declared dependency project IDs of a project.
func (s *Store) Dependencies(projectID int64) ([]int64, error) {
	rows, err := s.db.Query(
		"SELECT depends_on_id FROM project_dependencies WHERE project_id = ? ORDER BY depends_on_id", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sentinels holds the IDs of the seeded sentinel projects.
type Sentinels struct {
	Primitives    int64
	Unknowns      int64
	NotApplicable int64
}

// SentinelProjects looks up the seeded sentinel projects. It returns
// ErrNotInitialized if any of them is missing.
func (s *Store) SentinelProjects() (Sentinels, error) {
	var out Sentinels
	for name, dst := range map[string]*int64{
		PrimitivesProject:    &out.Primitives,
		UnknownsProject:      &out.Unknowns,
		NotApplicableProject: &out.NotApplicable,
	} {
		p, err := s.ProjectByHash(name)
		if err != nil {
			return Sentinels{}, err
		}
		if p == nil {
			return Sentinels{}, fmt.Errorf("sentinel project %q: %w", name, ErrNotInitialized)
		}
		*dst = p.ID
	}
	return out, nil
}
