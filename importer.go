package linkage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/linkage/internal/metrics"
	"github.com/jward/linkage/internal/store"
)

// Importer is the top-level handle: it owns the symbol store and runs the
// staged import pipeline over fact bundles.
type Importer struct {
	store          *store.Store
	threads        int
	structuralOnly bool
	filter         map[string]bool
	log            *zap.Logger
	metrics        *metrics.Metrics
}

// Option configures an Importer.
type Option func(*Importer)

// WithThreadCount sets the number of workers per stage. Values below one
// are treated as one.
func WithThreadCount(n int) Option {
	return func(imp *Importer) {
		if n < 1 {
			n = 1
		}
		imp.threads = n
	}
}

// WithStructuralOnly stops every import after the structural stage.
func WithStructuralOnly(v bool) Option {
	return func(imp *Importer) {
		imp.structuralOnly = v
	}
}

// WithFilter restricts imports to bundles whose project name or identity
// hash is listed. An empty list imports everything.
func WithFilter(names []string) Option {
	return func(imp *Importer) {
		if len(names) == 0 {
			imp.filter = nil
			return
		}
		imp.filter = make(map[string]bool, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				imp.filter[n] = true
			}
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(imp *Importer) {
		if log != nil {
			imp.log = log
		}
	}
}

// WithMetrics sets the collectors the importer updates.
func WithMetrics(m *metrics.Metrics) Option {
	return func(imp *Importer) {
		if m != nil {
			imp.metrics = m
		}
	}
}

// New opens (creating if needed) the store at dbPath and applies its schema.
func New(dbPath string, opts ...Option) (*Importer, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("linkage: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("linkage: migrate: %w", err)
	}
	imp := &Importer{
		store:   s,
		threads: 4,
		log:     zap.NewNop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp, nil
}

// Close releases the store.
func (imp *Importer) Close() error {
	return imp.store.Close()
}

// Store returns the underlying Store for direct access.
func (imp *Importer) Store() *Store {
	return imp.store
}

// Metrics returns the collectors updated by imports.
func (imp *Importer) Metrics() *metrics.Metrics {
	return imp.metrics
}

// Query returns a new QueryBuilder wrapping the Store.
func (imp *Importer) Query() *QueryBuilder {
	return &QueryBuilder{store: imp.store}
}

// InitializeStore drops all data and seeds the sentinel projects and
// primitive types.
func (imp *Importer) InitializeStore() error {
	if err := imp.store.Reset(); err != nil {
		return fmt.Errorf("linkage: reset: %w", err)
	}
	if err := imp.store.Seed(); err != nil {
		return fmt.Errorf("linkage: seed: %w", err)
	}
	imp.log.Info("store initialized")
	return nil
}

// Check runs the consistency scan over the whole store.
func (imp *Importer) Check() (store.Dangling, error) {
	return imp.store.DanglingRows()
}

func (imp *Importer) selected(p *store.Project) bool {
	if imp.filter == nil {
		return true
	}
	return imp.filter[p.Name] || imp.filter[p.Hash]
}
