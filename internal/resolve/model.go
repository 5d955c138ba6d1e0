package resolve

import (
	"fmt"

	"github.com/jward/linkage/internal/store"
)

// Model is the set of names a project declares, keyed by fqn+signature and
// by fqn+erased signature. It also holds parameter aliases parent#position.
// A Model belongs to one worker and is not safe for concurrent use.
type Model struct {
	names   map[string]int64
	erased  map[string]int64
	kinds   map[int64]store.EntityKind
	aliases map[string]int64
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		names:   make(map[string]int64),
		erased:  make(map[string]int64),
		kinds:   make(map[int64]store.EntityKind),
		aliases: make(map[string]int64),
	}
}

// LoadModel builds the model of a project from its committed rows.
func LoadModel(s *store.Store, projectID int64) (*Model, error) {
	m := NewModel()
	entities, err := s.EntitiesByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	for _, e := range entities {
		if indexable(e.Kind) {
			m.Add(e)
		}
	}
	aliases, err := s.ParameterAliases(projectID)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	for alias, id := range aliases {
		m.aliases[alias] = id
	}
	return m, nil
}

// Add records a declared entity. It reports false if the name is already
// taken; the existing entry is kept.
func (m *Model) Add(e *store.Entity) bool {
	name := e.Name()
	if _, ok := m.names[name]; ok {
		return false
	}
	m.names[name] = e.ID
	m.kinds[e.ID] = e.Kind
	if e.Signature != "" {
		erased := e.ErasedSignature
		if erased == "" {
			erased = EraseSignature(e.Signature)
		}
		if _, ok := m.erased[e.FQN+erased]; !ok {
			m.erased[e.FQN+erased] = e.ID
		}
	}
	return true
}

// AddAlias records a parameter under parent#position.
func (m *Model) AddAlias(alias string, id int64) {
	m.aliases[alias] = id
}

// Lookup finds a declared entity or parameter alias by exact name.
func (m *Model) Lookup(name string) (int64, bool) {
	if id, ok := m.names[name]; ok {
		return id, true
	}
	id, ok := m.aliases[name]
	return id, ok
}

// LookupErased finds a member by its erased signature.
func (m *Model) LookupErased(name string) (int64, bool) {
	fqn, sig := SplitMember(name)
	if sig == "" {
		return 0, false
	}
	id, ok := m.erased[fqn+EraseSignature(sig)]
	return id, ok
}

// Kind returns the kind of a modeled entity.
func (m *Model) Kind(id int64) (store.EntityKind, bool) {
	k, ok := m.kinds[id]
	return k, ok
}

// Len returns the number of declared names.
func (m *Model) Len() int {
	return len(m.names)
}

// Alias formats the alias of the parameter at position of parent.
func Alias(parent string, position int) string {
	return fmt.Sprintf("%s#%d", parent, position)
}
