package resolve

import (
	"fmt"

	"github.com/jward/linkage/internal/store"
)

// LibraryIndex maps names declared by platform projects and the primitive
// sentinel to their entities. It is built once before a relation stage and
// never mutated afterwards, so workers read it without locking.
type LibraryIndex struct {
	exact  map[string]Resolved
	erased map[string]Resolved
}

// BuildLibraryIndex loads every platform and primitive entity. When two
// platform projects declare the same name the lower project ID wins.
func BuildLibraryIndex(s *store.Store) (*LibraryIndex, error) {
	idx := &LibraryIndex{exact: make(map[string]Resolved), erased: make(map[string]Resolved)}

	var owners []*store.Project
	for _, kind := range []store.ProjectKind{store.ProjectPrimitive, store.ProjectPlatform} {
		projects, err := s.ProjectsByKind(kind)
		if err != nil {
			return nil, fmt.Errorf("library index: %w", err)
		}
		owners = append(owners, projects...)
	}

	for _, p := range owners {
		prov := store.PlatformLibrary
		if p.Kind == store.ProjectPrimitive {
			prov = store.NotApplicable
		}
		entities, err := s.EntitiesByProject(p.ID)
		if err != nil {
			return nil, fmt.Errorf("library index: project %s: %w", p.Name, err)
		}
		for _, e := range entities {
			if !indexable(e.Kind) {
				continue
			}
			r := Resolved{ID: e.ID, Provenance: prov}
			name := e.Name()
			if _, ok := idx.exact[name]; !ok {
				idx.exact[name] = r
			}
			if e.Signature != "" && e.ErasedSignature != "" {
				key := e.FQN + e.ErasedSignature
				if _, ok := idx.erased[key]; !ok {
					idx.erased[key] = r
				}
			}
		}
	}
	return idx, nil
}

// indexable reports whether entities of kind k can be referenced by name
// from another project.
func indexable(k store.EntityKind) bool {
	return k != store.KindParameter && k != store.KindLocalVariable && !k.IsSynthesized()
}

// Lookup resolves name against the index, falling back to the erased
// signature for members.
func (x *LibraryIndex) Lookup(name string) (Resolved, bool) {
	if r, ok := x.exact[name]; ok {
		return r, true
	}
	fqn, sig := SplitMember(name)
	if sig == "" {
		return Resolved{}, false
	}
	r, ok := x.erased[fqn+EraseSignature(sig)]
	return r, ok
}

// Len returns the number of indexed names.
func (x *LibraryIndex) Len() int {
	return len(x.exact)
}
