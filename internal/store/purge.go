package store

import "fmt"

type stmt struct {
	sql  string
	args []any
}

// PurgeStage transactionally removes every row a project's stages from
// `from` onward wrote, then records reset as the project's marker. Rows are
// deleted in reverse-dependency order to respect FK constraints:
//
//   - relations, imports, comments and metrics owned by the project,
//   - entities owned by the project, plus synthesized entities it originated,
//   - for the entity stage, also problems, files and declared dependencies.
//
// Unknown stubs are shared across projects and never purged.
func (s *Store) PurgeStage(projectID int64, from Stage, reset Marker) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("purge: begin: %w", err)
	}
	defer tx.Rollback()

	queries := []stmt{
		{"DELETE FROM relations WHERE project_id = ? AND stage >= ?", []any{projectID, from}},
		{"DELETE FROM metrics WHERE project_id = ? AND stage >= ?", []any{projectID, from}},
	}
	if from <= StageStructural {
		queries = append(queries,
			stmt{"DELETE FROM imports WHERE project_id = ?", []any{projectID}},
			stmt{"DELETE FROM comments WHERE project_id = ?", []any{projectID}},
		)
	}
	queries = append(queries, stmt{
		"DELETE FROM entities WHERE (project_id = ? OR origin_project_id = ?) AND stage >= ?",
		[]any{projectID, projectID, from},
	})
	if from <= StageEntity {
		queries = append(queries,
			stmt{"DELETE FROM problems WHERE project_id = ?", []any{projectID}},
			stmt{"DELETE FROM files WHERE project_id = ?", []any{projectID}},
			stmt{"DELETE FROM project_dependencies WHERE project_id = ?", []any{projectID}},
		)
	}

	for _, q := range queries {
		if _, err := tx.Exec(q.sql, q.args...); err != nil {
			return fmt.Errorf("purge %s stage of project %d: %w", from, projectID, err)
		}
	}
	if err := setMarkerTx(tx, projectID, reset); err != nil {
		return fmt.Errorf("purge: reset marker: %w", err)
	}
	return tx.Commit()
}
