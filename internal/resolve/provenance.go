package resolve

import "github.com/jward/linkage/internal/store"

// Resolved is the outcome of resolving a qualified name: the entity it
// denotes and where that entity lives relative to the referencing project.
type Resolved struct {
	ID         int64
	Provenance store.Provenance
}

// classify returns the provenance of an entity owned by owner when it is
// referenced from project current.
func classify(owner *store.Project, current int64) store.Provenance {
	if owner.ID == current {
		return store.Internal
	}
	switch owner.Kind {
	case store.ProjectPlatform:
		return store.PlatformLibrary
	case store.ProjectPrimitive, store.ProjectSynthetic:
		return store.NotApplicable
	case store.ProjectUnknown:
		return store.Unknown
	}
	return store.External
}

// mergeProvenance returns the shared provenance of a duplicate's matches, or
// MIXED_EXTERNAL when they disagree.
func mergeProvenance(classes []store.Provenance) store.Provenance {
	if len(classes) == 0 {
		return store.Unknown
	}
	for _, c := range classes[1:] {
		if c != classes[0] {
			return store.MixedExternal
		}
	}
	return classes[0]
}

// Stats counts resolutions per provenance class.
type Stats map[store.Provenance]int

func (s Stats) add(p store.Provenance) { s[p]++ }
