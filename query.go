package linkage

import (
	"fmt"

	"github.com/jward/linkage/internal/store"
)

// QueryBuilder provides a read-only query API over the Store.
type QueryBuilder struct {
	store *store.Store
}

// Edge is a relation with both endpoints rendered as names.
type Edge struct {
	*Relation
	From string
	To   string
}

// Projects returns every project, sentinels included, in creation order.
func (q *QueryBuilder) Projects() ([]*Project, error) {
	return q.store.Projects()
}

// Project returns the project with the given name or identity hash, or nil.
func (q *QueryBuilder) Project(nameOrHash string) (*Project, error) {
	p, err := q.store.ProjectByHash(nameOrHash)
	if err != nil || p != nil {
		return p, err
	}
	return q.store.ProjectByName(nameOrHash)
}

// EntitiesByName returns every entity with the given fqn and signature
// across all projects.
func (q *QueryBuilder) EntitiesByName(fqn, signature string) ([]*Entity, error) {
	return q.store.EntitiesByName(fqn, signature)
}

// EntitiesByProject returns the entities owned by the named project.
func (q *QueryBuilder) EntitiesByProject(nameOrHash string) ([]*Entity, error) {
	p, err := q.Project(nameOrHash)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("entities by project: no project %q", nameOrHash)
	}
	return q.store.EntitiesByProject(p.ID)
}

// RelationsByKind returns every relation of the given kind.
func (q *QueryBuilder) RelationsByKind(kind RelationKind) ([]*Relation, error) {
	return q.store.RelationsByKind(kind)
}

// RelationsFrom returns the outgoing relations of an entity.
func (q *QueryBuilder) RelationsFrom(entityID int64) ([]*Relation, error) {
	return q.store.RelationsFrom(entityID)
}

// RelationsTo returns the incoming relations of an entity.
func (q *QueryBuilder) RelationsTo(entityID int64) ([]*Relation, error) {
	return q.store.RelationsTo(entityID)
}

// Unknowns returns the stub entities created for unresolvable names.
func (q *QueryBuilder) Unknowns() ([]*Entity, error) {
	return q.store.EntitiesByKind(store.KindUnknown)
}

// Edges renders relations with their endpoint names.
func (q *QueryBuilder) Edges(rels []*Relation) ([]Edge, error) {
	names := make(map[int64]string)
	name := func(id int64) (string, error) {
		if n, ok := names[id]; ok {
			return n, nil
		}
		e, err := q.store.EntityByID(id)
		if err != nil {
			return "", fmt.Errorf("edges: entity %d: %w", id, err)
		}
		n := fmt.Sprintf("#%d", id)
		if e != nil {
			n = e.Name()
		}
		names[id] = n
		return n, nil
	}
	out := make([]Edge, 0, len(rels))
	for _, r := range rels {
		from, err := name(r.LHS)
		if err != nil {
			return nil, err
		}
		to, err := name(r.RHS)
		if err != nil {
			return nil, err
		}
		out = append(out, Edge{Relation: r, From: from, To: to})
	}
	return out, nil
}
