package resolve

import (
	"fmt"

	"github.com/jward/linkage/internal/store"
)

// synthesize creates the entity for a composite type expression and its
// structural relations, recursing into the component names. Each name is
// synthesized at most once per project; later calls return the memoized
// entity without emitting relations again.
func (r *Resolver) synthesize(expr TypeExpr) (Resolved, error) {
	name := expr.Text()
	if res, ok := r.memo[name]; ok {
		return res, nil
	}

	e := r.syntheticEntity(name, "")
	switch t := expr.(type) {
	case ArrayType:
		e.Kind = store.KindArray
		e.Multi = t.Dims
	case WildcardType:
		e.Kind = store.KindWildcard
	case TypeVariable:
		e.Kind = store.KindTypeVariable
	case ParameterizedType:
		e.Kind = store.KindParameterizedType
	case NamedType:
		return Resolved{}, fmt.Errorf("synthesize %q: not a composite type", name)
	}
	id, err := r.out.InsertEntity(e)
	if err != nil {
		return Resolved{}, fmt.Errorf("synthesize %q: %w", name, err)
	}
	res := Resolved{ID: id, Provenance: store.NotApplicable}
	r.memo[name] = res

	switch t := expr.(type) {
	case ArrayType:
		err = r.link(id, store.RelHasElementsOf, t.Element, nil)
	case WildcardType:
		if t.Bound == "" {
			break
		}
		kind := store.RelHasUpperBound
		if t.Lower {
			kind = store.RelHasLowerBound
		}
		err = r.link(id, kind, t.Bound, nil)
	case TypeVariable:
		for _, b := range t.Bounds {
			if err = r.link(id, store.RelHasUpperBound, b, nil); err != nil {
				break
			}
		}
	case ParameterizedType:
		if err = r.link(id, store.RelHasBaseType, t.Base, nil); err != nil {
			break
		}
		for i, arg := range t.Args {
			if err = r.link(id, store.RelHasTypeArgument, arg, &i); err != nil {
				break
			}
		}
	}
	if err != nil {
		return Resolved{}, fmt.Errorf("synthesize %q: %w", name, err)
	}
	return res, nil
}

// link resolves target and records a structural relation from lhs to it.
func (r *Resolver) link(lhs int64, kind store.RelationKind, target string, position *int) error {
	res, err := r.resolve(target, false)
	if err != nil {
		return err
	}
	_, err = r.out.InsertRelation(&store.Relation{
		Kind:       kind,
		LHS:        lhs,
		RHS:        res.ID,
		Provenance: res.Provenance,
		ProjectID:  r.project.ID,
		Position:   position,
		Stage:      r.stage,
	})
	return err
}

// syntheticEntity returns an entity owned by the not-applicable sentinel and
// attributed to the current project and stage.
func (r *Resolver) syntheticEntity(fqn, sig string) *store.Entity {
	origin := r.project.ID
	return &store.Entity{
		FQN:             fqn,
		Signature:       sig,
		ErasedSignature: EraseSignature(sig),
		ProjectID:       r.shared.Sentinels.NotApplicable,
		OriginProjectID: &origin,
		Stage:           r.stage,
	}
}

// duplicate creates one entity standing for several independent
// declarations of name, linked to each with a matches relation.
func (r *Resolver) duplicate(name string, matches []*store.Entity) (Resolved, error) {
	if res, ok := r.memo[name]; ok {
		return res, nil
	}
	classes := make([]store.Provenance, len(matches))
	for i, m := range matches {
		c, err := r.classOf(m.ProjectID)
		if err != nil {
			return Resolved{}, err
		}
		classes[i] = c
	}
	prov := mergeProvenance(classes)

	fqn, sig := SplitMember(name)
	e := r.syntheticEntity(fqn, sig)
	e.Kind = store.KindDuplicate
	e.Provenance = &prov
	id, err := r.out.InsertEntity(e)
	if err != nil {
		return Resolved{}, fmt.Errorf("duplicate %q: %w", name, err)
	}
	for i, m := range matches {
		if _, err := r.out.InsertRelation(&store.Relation{
			Kind:       store.RelMatches,
			LHS:        id,
			RHS:        m.ID,
			Provenance: classes[i],
			ProjectID:  r.project.ID,
			Stage:      r.stage,
		}); err != nil {
			return Resolved{}, fmt.Errorf("duplicate %q: %w", name, err)
		}
	}
	res := Resolved{ID: id, Provenance: prov}
	r.memo[name] = res
	return res, nil
}
