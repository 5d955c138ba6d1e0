package store

import (
	"database/sql"
	"fmt"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (project_id, path, kind, hash) VALUES (?, ?, ?, ?)",
		f.ProjectID, f.Path, f.Kind, f.Hash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// FilesByProject returns every file of a project.
func (s *Store) FilesByProject(projectID int64) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, project_id, path, kind, COALESCE(hash, '') FROM files WHERE project_id = ? ORDER BY id", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("files by project: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Kind, &f.Hash); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileMap returns the path to file ID map of a project.
func (s *Store) FileMap(projectID int64) (map[string]int64, error) {
	files, err := s.FilesByProject(projectID)
	if err != nil {
		return nil, err
	}
	m := make(map[string]int64, len(files))
	for _, f := range files {
		m[f.Path] = f.ID
	}
	return m, nil
}

// --- Entity operations ---

func (s *Store) InsertEntity(e *Entity) (int64, error) {
	res, err := s.db.Exec(insertEntitySQL, entityArgs(e)...)
	if err != nil {
		return 0, fmt.Errorf("insert entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	return id, nil
}

const insertEntitySQL = `INSERT INTO entities (kind, fqn, signature, erased_signature, modifiers,
	multi, position, provenance, project_id, origin_project_id, file_id, offset, length, stage)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func entityArgs(e *Entity) []any {
	return []any{
		e.Kind, e.FQN, e.Signature, e.ErasedSignature, marshalModifiers(e.Modifiers),
		e.Multi, e.Position, e.Provenance, e.ProjectID, e.OriginProjectID,
		e.FileID, e.Offset, e.Length, e.Stage,
	}
}

// EntityCols is the column list for entity queries.
const EntityCols = `id, kind, fqn, signature, erased_signature, modifiers, multi, position,
	provenance, project_id, origin_project_id, file_id, offset, length, stage`

func scanEntity(scanner interface{ Scan(...any) error }) (*Entity, error) {
	e := &Entity{}
	var mods sql.NullString
	err := scanner.Scan(
		&e.ID, &e.Kind, &e.FQN, &e.Signature, &e.ErasedSignature, &mods, &e.Multi,
		&e.Position, &e.Provenance, &e.ProjectID, &e.OriginProjectID, &e.FileID,
		&e.Offset, &e.Length, &e.Stage,
	)
	if err != nil {
		return nil, err
	}
	e.Modifiers = unmarshalModifiers(mods.String)
	return e, nil
}

func (s *Store) queryEntities(query string, args ...any) ([]*Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// EntityByID returns the entity or nil if it does not exist.
func (s *Store) EntityByID(id int64) (*Entity, error) {
	e, err := scanEntity(s.db.QueryRow("SELECT "+EntityCols+" FROM entities WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("entity by id: %w", err)
	}
	return e, nil
}

// EntitiesByName returns every entity in the corpus with the given fqn and
// signature, ordered by ID.
func (s *Store) EntitiesByName(fqn, signature string) ([]*Entity, error) {
	entities, err := s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE fqn = ? AND signature = ? ORDER BY id", fqn, signature,
	)
	if err != nil {
		return nil, fmt.Errorf("entities by name: %w", err)
	}
	return entities, nil
}

// EntitiesInProjects returns the entities with the given fqn and signature
// owned by any of projectIDs, ordered by ID.
func (s *Store) EntitiesInProjects(projectIDs []int64, fqn, signature string) ([]*Entity, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	args := append([]any{fqn, signature}, int64sToArgs(projectIDs)...)
	entities, err := s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE fqn = ? AND signature = ? AND project_id IN ("+
			placeholderList(len(projectIDs))+") ORDER BY id", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("entities in projects: %w", err)
	}
	return entities, nil
}

// EntitiesByErasure is EntitiesInProjects keyed by erased signature instead.
func (s *Store) EntitiesByErasure(projectIDs []int64, fqn, erased string) ([]*Entity, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	args := append([]any{fqn, erased}, int64sToArgs(projectIDs)...)
	entities, err := s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE fqn = ? AND erased_signature = ? AND signature <> '' AND project_id IN ("+
			placeholderList(len(projectIDs))+") ORDER BY id", args...,
	)
	if err != nil {
		return nil, fmt.Errorf("entities by erasure: %w", err)
	}
	return entities, nil
}

// EntitiesByProject returns the entities owned by a project.
func (s *Store) EntitiesByProject(projectID int64) ([]*Entity, error) {
	entities, err := s.queryEntities("SELECT "+EntityCols+" FROM entities WHERE project_id = ? ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("entities by project: %w", err)
	}
	return entities, nil
}

func (s *Store) EntitiesByKind(kind EntityKind) ([]*Entity, error) {
	entities, err := s.queryEntities("SELECT "+EntityCols+" FROM entities WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, fmt.Errorf("entities by kind: %w", err)
	}
	return entities, nil
}

// SynthesizedBy returns the synthesized entities a project's stages created.
func (s *Store) SynthesizedBy(projectID int64) ([]*Entity, error) {
	entities, err := s.queryEntities(
		"SELECT "+EntityCols+" FROM entities WHERE origin_project_id = ? ORDER BY id", projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("synthesized by: %w", err)
	}
	return entities, nil
}

// ParameterAliases rebuilds the "parent#position" aliases of a project's
// parameters from their containment relations.
func (s *Store) ParameterAliases(projectID int64) (map[string]int64, error) {
	rows, err := s.db.Query(
		`SELECT p.fqn || p.signature || '#' || e.position, e.id
		 FROM entities e
		 JOIN relations r ON r.rhs_id = e.id AND r.kind = ?
		 JOIN entities p ON p.id = r.lhs_id
		 WHERE e.project_id = ? AND e.kind = ? AND e.position IS NOT NULL`,
		RelContains, projectID, KindParameter,
	)
	if err != nil {
		return nil, fmt.Errorf("parameter aliases: %w", err)
	}
	defer rows.Close()
	aliases := make(map[string]int64)
	for rows.Next() {
		var alias string
		var id int64
		if err := rows.Scan(&alias, &id); err != nil {
			return nil, fmt.Errorf("scan parameter alias: %w", err)
		}
		aliases[alias] = id
	}
	return aliases, rows.Err()
}

// Supertype is a direct parent of a type in the extends/implements graph.
type Supertype struct {
	ID        int64
	FQN       string
	Kind      EntityKind
	ProjectID int64
}

// Supertypes returns the direct supertypes of a type. Parameterized
// supertypes are replaced by their base type.
func (s *Store) Supertypes(typeID int64) ([]Supertype, error) {
	rows, err := s.db.Query(
		`SELECT e.id, e.fqn, e.kind, e.project_id
		 FROM relations r
		 LEFT JOIN relations b ON b.lhs_id = r.rhs_id AND b.kind = ?
		 JOIN entities e ON e.id = COALESCE(b.rhs_id, r.rhs_id)
		 WHERE r.lhs_id = ? AND r.kind IN (?, ?)
		 ORDER BY r.id`,
		RelHasBaseType, typeID, RelExtends, RelImplements,
	)
	if err != nil {
		return nil, fmt.Errorf("supertypes: %w", err)
	}
	defer rows.Close()
	var out []Supertype
	for rows.Next() {
		var st Supertype
		if err := rows.Scan(&st.ID, &st.FQN, &st.Kind, &st.ProjectID); err != nil {
			return nil, fmt.Errorf("scan supertype: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// --- Metric operations ---

// MetricsByProject returns every metric row of a project.
func (s *Store) MetricsByProject(projectID int64) ([]*Metric, error) {
	rows, err := s.db.Query(
		"SELECT id, project_id, file_id, entity_id, kind, value, stage FROM metrics WHERE project_id = ? ORDER BY id",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("metrics by project: %w", err)
	}
	defer rows.Close()
	var metrics []*Metric
	for rows.Next() {
		m := &Metric{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.FileID, &m.EntityID, &m.Kind, &m.Value, &m.Stage); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
