package store

import "sync"

// BatchedStore buffers one project's stage output in memory using fake
// (negative) IDs. It implements DataStore so stage importers and the
// resolver can write to it without knowing whether they're hitting SQLite
// or an in-memory buffer. Rows become visible to other projects only when
// Store.CommitBatch flushes them together with the stage marker.
//
// Thread safety: the mutex protects fake ID allocation and slice appends.
type BatchedStore struct {
	mu sync.Mutex

	Files        []File
	Entities     []Entity
	Relations    []Relation
	Imports      []Import
	Comments     []Comment
	Problems     []Problem
	Metrics      []Metric
	Dependencies []Dependency

	nextFakeID int64 // starts at -1, decrements
}

// Compile-time check: *BatchedStore satisfies DataStore.
var _ DataStore = (*BatchedStore)(nil)

// NewBatchedStore creates an empty BatchedStore.
func NewBatchedStore() *BatchedStore {
	return &BatchedStore{nextFakeID: -1}
}

func (b *BatchedStore) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

func (b *BatchedStore) InsertFile(f *File) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	f.ID = fakeID
	b.Files = append(b.Files, *f)
	return fakeID, nil
}

func (b *BatchedStore) InsertEntity(e *Entity) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	e.ID = fakeID
	b.Entities = append(b.Entities, *e)
	return fakeID, nil
}

func (b *BatchedStore) InsertRelation(r *Relation) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	r.ID = fakeID
	b.Relations = append(b.Relations, *r)
	return fakeID, nil
}

func (b *BatchedStore) InsertImport(imp *Import) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	imp.ID = fakeID
	b.Imports = append(b.Imports, *imp)
	return fakeID, nil
}

func (b *BatchedStore) InsertComment(c *Comment) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	c.ID = fakeID
	b.Comments = append(b.Comments, *c)
	return fakeID, nil
}

func (b *BatchedStore) InsertProblem(p *Problem) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	p.ID = fakeID
	b.Problems = append(b.Problems, *p)
	return fakeID, nil
}

func (b *BatchedStore) InsertMetric(m *Metric) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fakeID := b.allocFakeID()
	m.ID = fakeID
	b.Metrics = append(b.Metrics, *m)
	return fakeID, nil
}

func (b *BatchedStore) AddDependency(d Dependency) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Dependencies = append(b.Dependencies, d)
	return nil
}

// Counts reports the number of buffered rows per table.
func (b *BatchedStore) Counts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]int{
		"files":     len(b.Files),
		"entities":  len(b.Entities),
		"relations": len(b.Relations),
		"imports":   len(b.Imports),
		"comments":  len(b.Comments),
		"problems":  len(b.Problems),
		"metrics":   len(b.Metrics),
	}
}
