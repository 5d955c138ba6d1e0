package store

import "fmt"

// Dangling counts rows whose entity references do not resolve.
type Dangling struct {
	Relations int
	Imports   int
	Comments  int
	Metrics   int

	// RelationIDs holds up to sampleLimit offending relation IDs.
	RelationIDs []int64
}

const sampleLimit = 20

// Total returns the number of dangling rows across all tables.
func (d Dangling) Total() int {
	return d.Relations + d.Imports + d.Comments + d.Metrics
}

// DanglingRows scans the store for relations, imports, comments and metrics
// that point at entities which do not exist.
func (s *Store) DanglingRows() (Dangling, error) {
	var d Dangling
	counts := []struct {
		dst   *int
		query string
	}{
		{&d.Relations, `SELECT COUNT(*) FROM relations r
			LEFT JOIN entities l ON l.id = r.lhs_id
			LEFT JOIN entities h ON h.id = r.rhs_id
			WHERE l.id IS NULL OR h.id IS NULL`},
		{&d.Imports, `SELECT COUNT(*) FROM imports i
			LEFT JOIN entities e ON e.id = i.entity_id WHERE e.id IS NULL`},
		{&d.Comments, `SELECT COUNT(*) FROM comments c
			LEFT JOIN entities e ON e.id = c.entity_id WHERE c.entity_id IS NOT NULL AND e.id IS NULL`},
		{&d.Metrics, `SELECT COUNT(*) FROM metrics m
			LEFT JOIN entities e ON e.id = m.entity_id WHERE m.entity_id IS NOT NULL AND e.id IS NULL`},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return Dangling{}, fmt.Errorf("dangling rows: %w", err)
		}
	}
	if d.Relations == 0 {
		return d, nil
	}

	rows, err := s.db.Query(`SELECT r.id FROM relations r
		LEFT JOIN entities l ON l.id = r.lhs_id
		LEFT JOIN entities h ON h.id = r.rhs_id
		WHERE l.id IS NULL OR h.id IS NULL
		ORDER BY r.id LIMIT ?`, sampleLimit)
	if err != nil {
		return Dangling{}, fmt.Errorf("dangling relation ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return Dangling{}, fmt.Errorf("scan relation id: %w", err)
		}
		d.RelationIDs = append(d.RelationIDs, id)
	}
	return d, rows.Err()
}
