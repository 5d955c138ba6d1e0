package linkage

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jward/linkage/internal/resolve"
	"github.com/jward/linkage/internal/store"
)

// newResolver builds the resolver for one project's relation stage and
// loads the project's file map.
func (imp *Importer) newResolver(pr *projectRun, shared *resolve.Shared) (*resolve.Resolver, error) {
	files, err := imp.store.FileMap(pr.project.ID)
	if err != nil {
		return nil, err
	}
	pr.files = files

	ids, err := imp.store.Dependencies(pr.project.ID)
	if err != nil {
		return nil, err
	}
	deps := make([]*store.Project, 0, len(ids))
	for _, id := range ids {
		p, err := imp.store.ProjectByID(id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			deps = append(deps, p)
		}
	}
	return resolve.New(shared, resolve.Config{
		Project:      pr.project,
		Dependencies: deps,
		Stage:        pr.stage,
		Out:          pr.batch,
	})
}

// importStructural buffers entity metrics, locals and parameters, every
// non-referential relation, imports and comments.
func (imp *Importer) importStructural(pr *projectRun, shared *resolve.Shared) (resolve.Stats, error) {
	r, err := imp.newResolver(pr, shared)
	if err != nil {
		return nil, err
	}
	steps := []func(*projectRun, *resolve.Resolver) error{
		structuralMetrics,
		structuralLocals,
		structuralRelations,
		structuralImports,
		structuralComments,
	}
	for _, step := range steps {
		if err := step(pr, r); err != nil {
			return nil, err
		}
	}
	return r.Stats(), nil
}

func structuralMetrics(pr *projectRun, r *resolve.Resolver) error {
	for _, rec := range pr.bundle.Entities {
		if len(rec.Metrics) == 0 {
			continue
		}
		id, ok := r.Model().Lookup(rec.Name())
		if !ok {
			pr.drop("unresolved_entity", "entity metrics", zap.String("name", rec.Name()))
			continue
		}
		fid, _ := pr.fileID(rec.Path)
		for _, kind := range sortedKeys(rec.Metrics) {
			if _, err := pr.batch.InsertMetric(&store.Metric{
				ProjectID: pr.project.ID,
				FileID:    fid,
				EntityID:  &id,
				Kind:      kind,
				Value:     rec.Metrics[kind],
				Stage:     store.StageStructural,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func structuralLocals(pr *projectRun, r *resolve.Resolver) error {
	for _, rec := range pr.bundle.Locals {
		if rec.Kind != store.KindParameter && rec.Kind != store.KindLocalVariable {
			pr.drop("bad_kind", "local", zap.String("name", rec.Name), zap.String("kind", string(rec.Kind)))
			continue
		}
		fid, ok := pr.fileID(rec.Path)
		if !ok {
			pr.drop("unmapped_path", "local", zap.String("name", rec.Name), zap.String("path", rec.Path))
			continue
		}
		id, err := pr.batch.InsertEntity(&store.Entity{
			Kind:      rec.Kind,
			FQN:       rec.Name,
			Modifiers: rec.Modifiers,
			Position:  rec.Position,
			ProjectID: pr.project.ID,
			FileID:    fid,
			Offset:    rec.Offset,
			Length:    rec.Length,
			Stage:     store.StageStructural,
		})
		if err != nil {
			return err
		}

		if rec.Parent != "" {
			parent, ok, err := r.ResolveLocal(rec.Parent)
			if err != nil {
				return err
			}
			if ok {
				if err := insertRelation(pr, store.RelContains, parent.ID, id, store.Internal, fid, nil, nil); err != nil {
					return err
				}
				if rec.Kind == store.KindParameter && rec.Position != nil {
					r.DeclareAlias(resolve.Alias(rec.Parent, *rec.Position), id)
				}
			} else {
				pr.drop("unresolved_parent", "containment", zap.String("name", rec.Name), zap.String("parent", rec.Parent))
			}
		}

		if rec.Type != "" {
			typ, err := r.Resolve(rec.Type)
			if err != nil {
				return err
			}
			if err := insertRelation(pr, store.RelHolds, id, typ.ID, typ.Provenance, fid, rec.Offset, rec.Length); err != nil {
				return err
			}
		}
	}
	return nil
}

func structuralRelations(pr *projectRun, r *resolve.Resolver) error {
	for _, rec := range pr.bundle.Relations {
		if rec.Kind.IsReferential() {
			continue
		}
		if err := relate(pr, r, rec.Kind, rec.LHS, rec.RHS, rec.Path, rec.Offset, rec.Length, r.Resolve); err != nil {
			return err
		}
	}
	return nil
}

func structuralImports(pr *projectRun, r *resolve.Resolver) error {
	for _, rec := range pr.bundle.Imports {
		fid, ok := pr.files[rec.Path]
		if !ok {
			pr.drop("unmapped_path", "import", zap.String("name", rec.Name), zap.String("path", rec.Path))
			continue
		}
		name := strings.TrimSuffix(rec.Name, ".*")
		if name == "" {
			pr.drop("missing_name", "import", zap.String("path", rec.Path))
			continue
		}
		res, err := r.Resolve(name)
		if err != nil {
			return err
		}
		if _, err := pr.batch.InsertImport(&store.Import{
			ProjectID:  pr.project.ID,
			FileID:     fid,
			EntityID:   res.ID,
			Provenance: res.Provenance,
			OnDemand:   rec.OnDemand,
			Static:     rec.Static,
			Offset:     rec.Offset,
			Length:     rec.Length,
		}); err != nil {
			return err
		}
	}
	return nil
}

func structuralComments(pr *projectRun, r *resolve.Resolver) error {
	for _, rec := range pr.bundle.Comments {
		fid, ok := pr.fileID(rec.Path)
		if !ok {
			pr.drop("unmapped_path", "comment", zap.String("path", rec.Path))
			continue
		}
		c := &store.Comment{
			Kind:      rec.Kind,
			ProjectID: pr.project.ID,
			FileID:    fid,
			Offset:    rec.Offset,
			Length:    rec.Length,
		}
		if rec.Owner != "" {
			owner, ok, err := r.ResolveLocal(rec.Owner)
			if err != nil {
				return err
			}
			if ok {
				c.EntityID = &owner.ID
			}
		}
		if c.EntityID == nil && c.Kind == "javadoc" {
			c.Kind = "unassociated_javadoc"
		}
		if _, err := pr.batch.InsertComment(c); err != nil {
			return err
		}
	}
	return nil
}

// relate resolves both ends of a relation record and buffers the edge.
// The lhs must be declared by the project itself; the rhs goes through
// rhs, which never misses.
func relate(pr *projectRun, r *resolve.Resolver, kind store.RelationKind, lhsName, rhsName, path string,
	offset, length *int, rhs func(string) (resolve.Resolved, error)) error {
	lhs, ok, err := r.ResolveLocal(lhsName)
	if err != nil {
		return err
	}
	if !ok {
		pr.drop("unresolved_lhs", "relation", zap.String("kind", string(kind)), zap.String("lhs", lhsName))
		return nil
	}
	target, err := rhs(rhsName)
	if err != nil {
		return err
	}
	fid, ok := pr.fileID(path)
	if !ok {
		offset, length = nil, nil
	}
	return insertRelation(pr, kind, lhs.ID, target.ID, target.Provenance, fid, offset, length)
}

func insertRelation(pr *projectRun, kind store.RelationKind, lhs, rhs int64, prov store.Provenance,
	fid *int64, offset, length *int) error {
	_, err := pr.batch.InsertRelation(&store.Relation{
		Kind:       kind,
		LHS:        lhs,
		RHS:        rhs,
		Provenance: prov,
		ProjectID:  pr.project.ID,
		FileID:     fid,
		Offset:     offset,
		Length:     length,
		Stage:      pr.stage,
	})
	return err
}
