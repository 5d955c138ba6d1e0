package store

import (
	"fmt"
	"sort"
	"strings"
)

// entityLabel renders an entity reference without its surrogate ID. The
// caller must join projects as <alias>p and <alias>o (origin) on the entity.
func entityLabel(alias string) string {
	return fmt.Sprintf(`%[1]sp.name || '/' || COALESCE(%[1]so.name, '') || ':' || %[1]s.kind || ':' ||
		%[1]s.fqn || %[1]s.signature || '@' || COALESCE(%[1]s.offset, '') || '#' || COALESCE(%[1]s.position, '')`, alias)
}

func entityJoins(alias, column string) string {
	return fmt.Sprintf(` JOIN entities %[1]s ON %[1]s.id = %[2]s
		JOIN projects %[1]sp ON %[1]sp.id = %[1]s.project_id
		LEFT JOIN projects %[1]so ON %[1]so.id = %[1]s.origin_project_id`, alias, column)
}

func optionalEntityJoins(alias, column string) string {
	return fmt.Sprintf(` LEFT JOIN entities %[1]s ON %[1]s.id = %[2]s
		LEFT JOIN projects %[1]sp ON %[1]sp.id = %[1]s.project_id
		LEFT JOIN projects %[1]so ON %[1]so.id = %[1]s.origin_project_id`, alias, column)
}

var dumpQueries = []string{
	`SELECT 'project ' || name || ' ' || kind || ' ' || stage || ' ' || dirty FROM projects`,

	`SELECT 'dependency ' || p.name || ' -> ' || d.name FROM project_dependencies pd
		JOIN projects p ON p.id = pd.project_id JOIN projects d ON d.id = pd.depends_on_id`,

	`SELECT 'file ' || p.name || ' ' || f.path || ' ' || f.kind FROM files f JOIN projects p ON p.id = f.project_id`,

	`SELECT 'entity ' || ` + entityLabel("e") + ` || ' multi=' || e.multi || ' mods=' || COALESCE(e.modifiers, '') ||
		' prov=' || COALESCE(e.provenance, '') || ' file=' || COALESCE(f.path, '') ||
		' len=' || COALESCE(e.length, '') || ' stage=' || e.stage
		FROM entities e
		JOIN projects ep ON ep.id = e.project_id
		LEFT JOIN projects eo ON eo.id = e.origin_project_id
		LEFT JOIN files f ON f.id = e.file_id`,

	`SELECT 'relation ' || p.name || ' ' || r.kind || ' ' || ` + entityLabel("l") + ` || ' -> ' || ` + entityLabel("h") + ` ||
		' ' || r.provenance || ' file=' || COALESCE(f.path, '') || ' off=' || COALESCE(r.offset, '') ||
		' len=' || COALESCE(r.length, '') || ' pos=' || COALESCE(r.position, '') || ' stage=' || r.stage
		FROM relations r
		JOIN projects p ON p.id = r.project_id
		LEFT JOIN files f ON f.id = r.file_id` + entityJoins("l", "r.lhs_id") + entityJoins("h", "r.rhs_id"),

	`SELECT 'import ' || p.name || ' ' || f.path || ' ' || ` + entityLabel("e") + ` || ' ' || i.provenance ||
		' demand=' || i.on_demand || ' static=' || i.static || ' off=' || COALESCE(i.offset, '')
		FROM imports i
		JOIN projects p ON p.id = i.project_id
		JOIN files f ON f.id = i.file_id` + entityJoins("e", "i.entity_id"),

	`SELECT 'comment ' || p.name || ' ' || c.kind || ' ' || COALESCE(f.path, '') || ' ' ||
		COALESCE(` + entityLabel("e") + `, '') || ' off=' || COALESCE(c.offset, '') || ' len=' || COALESCE(c.length, '')
		FROM comments c
		JOIN projects p ON p.id = c.project_id
		LEFT JOIN files f ON f.id = c.file_id` + optionalEntityJoins("e", "c.entity_id"),

	`SELECT 'problem ' || p.name || ' ' || f.path || ' ' || pr.kind || ' ' || COALESCE(pr.error_code, '') || ' ' ||
		COALESCE(pr.message, '')
		FROM problems pr
		JOIN projects p ON p.id = pr.project_id
		JOIN files f ON f.id = pr.file_id`,

	`SELECT 'metric ' || p.name || ' ' || COALESCE(f.path, '') || ' ' || COALESCE(` + entityLabel("e") + `, '') ||
		' ' || m.kind || '=' || printf('%.6f', m.value) || ' stage=' || m.stage
		FROM metrics m
		JOIN projects p ON p.id = m.project_id
		LEFT JOIN files f ON f.id = m.file_id` + optionalEntityJoins("e", "m.entity_id"),
}

// Dump renders the whole symbol graph as sorted lines that reference rows by
// name rather than surrogate ID. Two stores holding the same graph produce
// identical dumps regardless of insertion order or ID assignment.
func (s *Store) Dump() ([]string, error) {
	var lines []string
	for _, q := range dumpQueries {
		rows, err := s.db.Query(q)
		if err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				rows.Close()
				return nil, fmt.Errorf("dump: scan: %w", err)
			}
			lines = append(lines, strings.TrimSpace(line))
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
	}
	sort.Strings(lines)
	return lines, nil
}
