package resolve

import (
	"go.uber.org/zap"

	"github.com/jward/linkage/internal/store"
)

type memberHit struct {
	entity *store.Entity
	owner  store.Supertype
}

// virtual resolves a member reference through the supertype graph of its
// receiver type, reaching into any project that owns a supertype.
func (r *Resolver) virtual(name string) (Resolved, bool, error) {
	fqn, sig := SplitMember(name)
	recv, member := SplitReceiver(fqn)
	if recv == "" || member == constructorName || member == initializerName {
		return Resolved{}, false, nil
	}
	if _, ok := ParseTypeExpr(recv).(ArrayType); ok {
		res, err := r.resolve(ObjectType+"."+member+sig, false)
		return res, err == nil, err
	}

	start, ok, err := r.receiverType(Erase(recv))
	if err != nil || !ok {
		return Resolved{}, false, err
	}
	field := sig == ""
	hits, err := r.walk(start, member, sig, field)
	if err != nil {
		return Resolved{}, false, err
	}

	switch {
	case len(hits) == 0:
		return Resolved{}, false, nil
	case len(hits) == 1:
		prov, err := r.classOf(hits[0].entity.ProjectID)
		return Resolved{ID: hits[0].entity.ID, Provenance: prov}, err == nil, err
	case field:
		owners := make([]string, len(hits))
		for i, h := range hits {
			owners[i] = h.owner.FQN
		}
		r.log.Error("ambiguous field access", zap.String("name", name), zap.Strings("owners", owners))
		return Resolved{}, false, nil
	}
	matches := make([]*store.Entity, len(hits))
	for i, h := range hits {
		matches[i] = h.entity
	}
	res, err := r.duplicate(name, matches)
	return res, err == nil, err
}

// walk visits the supertype graph breadth first from start. For methods
// the first class that declares the member ends the walk; otherwise every
// interface that declares it is returned. Fields collect every declaring
// type. Types that declare the member are not expanded further.
func (r *Resolver) walk(start store.Supertype, member, sig string, field bool) ([]memberHit, error) {
	queue := []store.Supertype{start}
	seen := map[int64]bool{start.ID: true}
	var hits []memberHit
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]

		m, err := r.memberOf(t, member, sig)
		if err != nil {
			return nil, err
		}
		if m != nil {
			if !field && t.Kind != store.KindInterface {
				return []memberHit{{entity: m, owner: t}}, nil
			}
			hits = append(hits, memberHit{entity: m, owner: t})
			continue
		}

		supers, err := r.supertypes(t.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range supers {
			if !seen[s.ID] {
				seen[s.ID] = true
				queue = append(queue, s)
			}
		}
	}
	return hits, nil
}

// receiverType finds the declared type named typeName without creating
// stubs: the current project first, then a declared dependency, then the
// lowest ID anywhere in the corpus.
func (r *Resolver) receiverType(typeName string) (store.Supertype, bool, error) {
	if id, ok := r.model.Lookup(typeName); ok {
		if kind, _ := r.model.Kind(id); kind.IsDeclaredType() {
			return store.Supertype{ID: id, FQN: typeName, Kind: kind, ProjectID: r.project.ID}, true, nil
		}
	}
	candidates, err := r.shared.Store.EntitiesByName(typeName, "")
	if err != nil {
		return store.Supertype{}, false, err
	}
	var found *store.Entity
	for _, e := range candidates {
		if !e.Kind.IsDeclaredType() {
			continue
		}
		if r.isDependency(e.ProjectID) {
			found = e
			break
		}
		if found == nil {
			found = e
		}
	}
	if found == nil {
		return store.Supertype{}, false, nil
	}
	return store.Supertype{ID: found.ID, FQN: found.FQN, Kind: found.Kind, ProjectID: found.ProjectID}, true, nil
}

// memberOf returns the member of t with the given simple name and
// signature, retrying with the erased signature.
func (r *Resolver) memberOf(t store.Supertype, member, sig string) (*store.Entity, error) {
	fqn := t.FQN + "." + member
	owner := []int64{t.ProjectID}
	matches, err := r.shared.Store.EntitiesInProjects(owner, fqn, sig)
	if err != nil {
		return nil, err
	}
	matches = referenceable(matches)
	if len(matches) == 0 && sig != "" {
		if matches, err = r.shared.Store.EntitiesByErasure(owner, fqn, EraseSignature(sig)); err != nil {
			return nil, err
		}
		matches = referenceable(matches)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (r *Resolver) supertypes(id int64) ([]store.Supertype, error) {
	if s, ok := r.supers[id]; ok {
		return s, nil
	}
	s, err := r.shared.Store.Supertypes(id)
	if err != nil {
		return nil, err
	}
	r.supers[id] = s
	return s, nil
}

func (r *Resolver) isDependency(projectID int64) bool {
	for _, d := range r.deps {
		if d == projectID {
			return true
		}
	}
	return false
}
