package store

import "fmt"

// --- Relation operations ---

const insertRelationSQL = `INSERT INTO relations (kind, lhs_id, rhs_id, provenance, project_id,
	file_id, offset, length, position, stage)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func relationArgs(r *Relation) []any {
	return []any{
		r.Kind, r.LHS, r.RHS, r.Provenance, r.ProjectID,
		r.FileID, r.Offset, r.Length, r.Position, r.Stage,
	}
}

func (s *Store) InsertRelation(r *Relation) (int64, error) {
	res, err := s.db.Exec(insertRelationSQL, relationArgs(r)...)
	if err != nil {
		return 0, fmt.Errorf("insert relation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	return id, nil
}

const relationCols = `id, kind, lhs_id, rhs_id, provenance, project_id, file_id, offset, length, position, stage`

func (s *Store) queryRelations(query string, args ...any) ([]*Relation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rels []*Relation
	for rows.Next() {
		r := &Relation{}
		if err := rows.Scan(&r.ID, &r.Kind, &r.LHS, &r.RHS, &r.Provenance, &r.ProjectID,
			&r.FileID, &r.Offset, &r.Length, &r.Position, &r.Stage); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

func (s *Store) RelationsByKind(kind RelationKind) ([]*Relation, error) {
	rels, err := s.queryRelations("SELECT "+relationCols+" FROM relations WHERE kind = ? ORDER BY id", kind)
	if err != nil {
		return nil, fmt.Errorf("relations by kind: %w", err)
	}
	return rels, nil
}

// RelationsFrom returns the outgoing relations of an entity.
func (s *Store) RelationsFrom(entityID int64) ([]*Relation, error) {
	rels, err := s.queryRelations("SELECT "+relationCols+" FROM relations WHERE lhs_id = ? ORDER BY id", entityID)
	if err != nil {
		return nil, fmt.Errorf("relations from: %w", err)
	}
	return rels, nil
}

// RelationsTo returns the incoming relations of an entity.
func (s *Store) RelationsTo(entityID int64) ([]*Relation, error) {
	rels, err := s.queryRelations("SELECT "+relationCols+" FROM relations WHERE rhs_id = ? ORDER BY id", entityID)
	if err != nil {
		return nil, fmt.Errorf("relations to: %w", err)
	}
	return rels, nil
}

func (s *Store) RelationsByProject(projectID int64) ([]*Relation, error) {
	rels, err := s.queryRelations("SELECT "+relationCols+" FROM relations WHERE project_id = ? ORDER BY id", projectID)
	if err != nil {
		return nil, fmt.Errorf("relations by project: %w", err)
	}
	return rels, nil
}

// --- Import, comment and problem operations ---

func (s *Store) ImportsByProject(projectID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, file_id, entity_id, provenance, on_demand, static, offset, length
		 FROM imports WHERE project_id = ? ORDER BY id`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by project: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.ProjectID, &imp.FileID, &imp.EntityID, &imp.Provenance,
			&imp.OnDemand, &imp.Static, &imp.Offset, &imp.Length); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}

func (s *Store) CommentsByProject(projectID int64) ([]*Comment, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, project_id, file_id, entity_id, offset, length
		 FROM comments WHERE project_id = ? ORDER BY id`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("comments by project: %w", err)
	}
	defer rows.Close()
	var comments []*Comment
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.Kind, &c.ProjectID, &c.FileID, &c.EntityID, &c.Offset, &c.Length); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *Store) ProblemsByProject(projectID int64) ([]*Problem, error) {
	rows, err := s.db.Query(
		`SELECT id, project_id, file_id, kind, COALESCE(error_code, 0), COALESCE(message, '')
		 FROM problems WHERE project_id = ? ORDER BY id`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("problems by project: %w", err)
	}
	defer rows.Close()
	var problems []*Problem
	for rows.Next() {
		p := &Problem{}
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.FileID, &p.Kind, &p.ErrorCode, &p.Message); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}
