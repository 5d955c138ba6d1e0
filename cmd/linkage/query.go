package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/linkage"
	"github.com/jward/linkage/internal/resolve"
	"github.com/jward/linkage/internal/store"
)

var (
	flagProject  string
	flagUnknowns bool
	flagKind     string
	flagFrom     int64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the symbol store",
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects with their stage markers",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var entitiesCmd = &cobra.Command{
	Use:   "entities [name]",
	Short: "List entities by name (fqn plus optional signature) or by --project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEntities,
}

var relationsCmd = &cobra.Command{
	Use:   "relations",
	Short: "List relations by --kind or from an entity with --from",
	Args:  cobra.NoArgs,
	RunE:  runRelations,
}

func init() {
	entitiesCmd.Flags().StringVar(&flagProject, "project", "", "project name or hash")
	entitiesCmd.Flags().BoolVar(&flagUnknowns, "unknowns", false, "list placeholder entities for names no project declares")
	relationsCmd.Flags().StringVar(&flagKind, "kind", "", "relation kind, e.g. calls")
	relationsCmd.Flags().Int64Var(&flagFrom, "from", 0, "entity ID whose outgoing relations to list")

	queryCmd.AddCommand(projectsCmd)
	queryCmd.AddCommand(entitiesCmd)
	queryCmd.AddCommand(relationsCmd)
}

// openQuery opens an existing store for reading.
func openQuery() (*linkage.Importer, *linkage.QueryBuilder, error) {
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("database not found: %s (run 'linkage initialize-store' first)", cfg.DB)
	}
	imp, err := openImporter()
	if err != nil {
		return nil, nil, err
	}
	return imp, imp.Query(), nil
}

func runProjects(cmd *cobra.Command, args []string) error {
	imp, q, err := openQuery()
	if err != nil {
		return err
	}
	defer imp.Close()
	projects, err := q.Projects()
	if err != nil {
		return err
	}
	out := make([]CLIProject, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectToCLI(p))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "projects", Results: out})
}

func runEntities(cmd *cobra.Command, args []string) error {
	imp, q, err := openQuery()
	if err != nil {
		return err
	}
	defer imp.Close()

	var entities []*store.Entity
	switch {
	case len(args) == 1:
		fqn, sig := resolve.SplitMember(args[0])
		entities, err = q.EntitiesByName(fqn, sig)
	case flagProject != "":
		entities, err = q.EntitiesByProject(flagProject)
	case flagUnknowns:
		entities, err = q.Unknowns()
	default:
		return fmt.Errorf("requires a name argument, --project or --unknowns")
	}
	if err != nil {
		return err
	}
	names, err := projectNames(q)
	if err != nil {
		return err
	}
	out := make([]CLIEntity, 0, len(entities))
	for _, e := range entities {
		out = append(out, entityToCLI(e, names[e.ProjectID]))
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "entities", Results: out})
}

func runRelations(cmd *cobra.Command, args []string) error {
	imp, q, err := openQuery()
	if err != nil {
		return err
	}
	defer imp.Close()

	var rels []*store.Relation
	switch {
	case flagFrom != 0:
		rels, err = q.RelationsFrom(flagFrom)
	case flagKind != "":
		rels, err = q.RelationsByKind(store.RelationKind(flagKind))
	default:
		return fmt.Errorf("requires --kind or --from")
	}
	if err != nil {
		return err
	}
	edges, err := q.Edges(rels)
	if err != nil {
		return err
	}
	names, err := projectNames(q)
	if err != nil {
		return err
	}
	out := make([]CLIRelation, 0, len(edges))
	for _, e := range edges {
		out = append(out, CLIRelation{
			ID:         e.ID,
			Kind:       string(e.Kind),
			From:       e.From,
			FromID:     e.LHS,
			To:         e.To,
			ToID:       e.RHS,
			Provenance: string(e.Provenance),
			Project:    names[e.ProjectID],
			Stage:      e.Stage.String(),
		})
	}
	return outputResult(cmd.OutOrStdout(), CLIResult{Command: "relations", Results: out})
}

func projectNames(q *linkage.QueryBuilder) (map[int64]string, error) {
	projects, err := q.Projects()
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names, nil
}

func projectToCLI(p *store.Project) CLIProject {
	return CLIProject{
		ID:      p.ID,
		Name:    p.Name,
		Kind:    string(p.Kind),
		Hash:    p.Hash,
		Version: p.Version,
		Marker:  p.Marker.String(),
	}
}

func entityToCLI(e *store.Entity, project string) CLIEntity {
	c := CLIEntity{
		ID:        e.ID,
		Kind:      string(e.Kind),
		Name:      e.Name(),
		Project:   project,
		Modifiers: e.Modifiers,
		Stage:     e.Stage.String(),
	}
	if e.Provenance != nil {
		c.Provenance = string(*e.Provenance)
	}
	if e.Position != nil {
		c.Position = strconv.Itoa(*e.Position)
	}
	return c
}
