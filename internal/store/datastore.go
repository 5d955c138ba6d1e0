package store

// DataStore is the interface for stage-phase writes. Both Store (direct
// SQLite) and BatchedStore (in-memory buffering for one project's stage)
// implement it, so the resolver can write synthesized rows without knowing
// whether they are committed immediately or with the stage flush.
type DataStore interface {
	// Inserts; each returns the assigned ID (negative for buffered rows).
	InsertFile(f *File) (int64, error)
	InsertEntity(e *Entity) (int64, error)
	InsertRelation(r *Relation) (int64, error)
	InsertImport(imp *Import) (int64, error)
	InsertComment(c *Comment) (int64, error)
	InsertProblem(p *Problem) (int64, error)
	InsertMetric(m *Metric) (int64, error)
	AddDependency(d Dependency) error
}

// Compile-time check: *Store satisfies DataStore.
var _ DataStore = (*Store)(nil)
