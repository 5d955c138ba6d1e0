package resolve

import (
	"fmt"
	"sync"

	"github.com/jward/linkage/internal/store"
)

// UnknownCache hands out one stub entity per unresolvable name across all
// workers of a run. Stubs are written straight to the store, owned by the
// unknowns sentinel project, so every worker's batch can reference them by
// their committed ID.
type UnknownCache struct {
	mu      sync.Mutex
	store   *store.Store
	owner   int64
	ids     map[string]int64
	created int
}

// NewUnknownCache loads the stubs already present in the store.
func NewUnknownCache(s *store.Store, owner int64) (*UnknownCache, error) {
	existing, err := s.EntitiesByProject(owner)
	if err != nil {
		return nil, fmt.Errorf("load unknown stubs: %w", err)
	}
	c := &UnknownCache{store: s, owner: owner, ids: make(map[string]int64, len(existing))}
	for _, e := range existing {
		c.ids[e.Name()] = e.ID
	}
	return c, nil
}

// GetOrInsert returns the stub for name, inserting it if no worker has done
// so yet. The lookup and the insert happen under one lock.
func (c *UnknownCache) GetOrInsert(name string, stage store.Stage) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.ids[name]; ok {
		return id, nil
	}
	fqn, sig := SplitMember(name)
	id, err := c.store.InsertEntity(&store.Entity{
		Kind:            store.KindUnknown,
		FQN:             fqn,
		Signature:       sig,
		ErasedSignature: EraseSignature(sig),
		ProjectID:       c.owner,
		Stage:           stage,
	})
	if err != nil {
		return 0, fmt.Errorf("insert unknown %q: %w", name, err)
	}
	c.ids[name] = id
	c.created++
	return id, nil
}

// Len returns the number of known stubs.
func (c *UnknownCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// Created returns the number of stubs inserted through this cache.
func (c *UnknownCache) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}
