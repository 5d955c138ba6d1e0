// Package resolve links qualified names seen in one project to the entities
// that define them, synthesizing entities for composite type expressions,
// duplicates and unresolvable names.
package resolve

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/linkage/internal/store"
)

// Shared holds the state every worker of a stage resolves against. The
// library index is read-only; the unknown cache serializes its own writes.
type Shared struct {
	Store     *store.Store
	Sentinels store.Sentinels
	Library   *LibraryIndex
	Unknowns  *UnknownCache
	Logger    *zap.Logger
}

// Config describes the project a Resolver works for.
type Config struct {
	Project      *store.Project
	Dependencies []*store.Project
	Stage        store.Stage
	// Out receives synthesized entities and their relations.
	Out store.DataStore
	// Model overrides loading the project's model from the store.
	Model *Model
}

// Resolver resolves names on behalf of one project during one stage. It
// is owned by a single worker.
type Resolver struct {
	shared   *Shared
	project  *store.Project
	deps     []int64
	projects map[int64]*store.Project
	stage    store.Stage
	out      store.DataStore
	model    *Model
	memo     map[string]Resolved
	supers   map[int64][]store.Supertype
	stats    Stats
	log      *zap.Logger
}

// New builds a resolver. The synthesis memo is preloaded with the entities
// earlier stages of this project already synthesized.
func New(shared *Shared, cfg Config) (*Resolver, error) {
	log := shared.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Resolver{
		shared:   shared,
		project:  cfg.Project,
		projects: map[int64]*store.Project{cfg.Project.ID: cfg.Project},
		stage:    cfg.Stage,
		out:      cfg.Out,
		model:    cfg.Model,
		memo:     make(map[string]Resolved),
		supers:   make(map[int64][]store.Supertype),
		stats:    make(Stats),
		log:      log.With(zap.String("project", cfg.Project.Name), zap.String("stage", cfg.Stage.String())),
	}
	for _, d := range cfg.Dependencies {
		r.deps = append(r.deps, d.ID)
		r.projects[d.ID] = d
	}
	if r.model == nil {
		m, err := LoadModel(shared.Store, cfg.Project.ID)
		if err != nil {
			return nil, err
		}
		r.model = m
	}
	synthesized, err := shared.Store.SynthesizedBy(cfg.Project.ID)
	if err != nil {
		return nil, fmt.Errorf("preload synthesized: %w", err)
	}
	for _, e := range synthesized {
		prov := store.NotApplicable
		if e.Provenance != nil {
			prov = *e.Provenance
		}
		r.memo[e.Name()] = Resolved{ID: e.ID, Provenance: prov}
	}
	return r, nil
}

// Model returns the project's local model.
func (r *Resolver) Model() *Model { return r.model }

// Stats returns the number of resolutions per provenance class so far.
func (r *Resolver) Stats() Stats { return r.stats }

// Declare adds an entity created during the current stage to the local
// model. It reports false if the name is already declared.
func (r *Resolver) Declare(e *store.Entity) bool {
	return r.model.Add(e)
}

// DeclareAlias makes a parameter resolvable as parent#position.
func (r *Resolver) DeclareAlias(alias string, id int64) {
	r.model.AddAlias(alias, id)
}

// Resolve returns the entity name denotes. It always produces an entity;
// the error is reserved for store failures.
func (r *Resolver) Resolve(name string) (Resolved, error) {
	res, err := r.resolve(name, false)
	if err != nil {
		return Resolved{}, err
	}
	r.stats.add(res.Provenance)
	return res, nil
}

// ResolveVirtual is Resolve with dispatch through supertypes for member
// names that no declared dependency or platform library defines.
func (r *Resolver) ResolveVirtual(name string) (Resolved, error) {
	res, err := r.resolve(name, true)
	if err != nil {
		return Resolved{}, err
	}
	r.stats.add(res.Provenance)
	return res, nil
}

// ResolveLocal resolves name only against the current project, synthesizing
// composite type expressions. It never creates unknown stubs.
func (r *Resolver) ResolveLocal(name string) (Resolved, bool, error) {
	if id, ok := r.model.Lookup(name); ok {
		return Resolved{ID: id, Provenance: store.Internal}, true, nil
	}
	if id, ok := r.model.LookupErased(name); ok {
		return Resolved{ID: id, Provenance: store.Internal}, true, nil
	}
	if res, ok := r.memo[name]; ok {
		return res, true, nil
	}
	if expr := ParseTypeExpr(name); !isNamed(expr) {
		res, err := r.synthesize(expr)
		return res, err == nil, err
	}
	return Resolved{}, false, nil
}

func (r *Resolver) resolve(name string, virtual bool) (Resolved, error) {
	if id, ok := r.model.Lookup(name); ok {
		return Resolved{ID: id, Provenance: store.Internal}, nil
	}
	if res, ok := r.memo[name]; ok {
		return res, nil
	}
	if expr := ParseTypeExpr(name); !isNamed(expr) {
		return r.synthesize(expr)
	}
	if id, ok := r.model.LookupErased(name); ok {
		return Resolved{ID: id, Provenance: store.Internal}, nil
	}

	res, ok, err := r.fromDependencies(name)
	if err != nil || ok {
		return res, err
	}
	if res, ok := r.shared.Library.Lookup(name); ok {
		return res, nil
	}
	if virtual {
		res, ok, err := r.virtual(name)
		if err != nil || ok {
			return res, err
		}
	}

	id, err := r.shared.Unknowns.GetOrInsert(name, r.stage)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{ID: id, Provenance: store.Unknown}, nil
}

// fromDependencies looks name up in the committed rows of the declared
// dependencies. Several matches produce a duplicate entity, except for
// packages where the lowest ID is canonical.
func (r *Resolver) fromDependencies(name string) (Resolved, bool, error) {
	if len(r.deps) == 0 {
		return Resolved{}, false, nil
	}
	fqn, sig := SplitMember(name)
	matches, err := r.shared.Store.EntitiesInProjects(r.deps, fqn, sig)
	if err != nil {
		return Resolved{}, false, err
	}
	matches = referenceable(matches)
	if len(matches) == 0 && sig != "" {
		matches, err = r.shared.Store.EntitiesByErasure(r.deps, fqn, EraseSignature(sig))
		if err != nil {
			return Resolved{}, false, err
		}
		matches = referenceable(matches)
	}
	if len(matches) == 0 {
		return Resolved{}, false, nil
	}
	for _, m := range matches {
		if m.Kind == store.KindPackage {
			prov, err := r.classOf(m.ProjectID)
			return Resolved{ID: m.ID, Provenance: prov}, err == nil, err
		}
	}
	if len(matches) == 1 {
		prov, err := r.classOf(matches[0].ProjectID)
		return Resolved{ID: matches[0].ID, Provenance: prov}, err == nil, err
	}
	res, err := r.duplicate(name, matches)
	return res, err == nil, err
}

// classOf returns the provenance of entities owned by projectID.
func (r *Resolver) classOf(projectID int64) (store.Provenance, error) {
	p, ok := r.projects[projectID]
	if !ok {
		var err error
		p, err = r.shared.Store.ProjectByID(projectID)
		if err != nil {
			return "", err
		}
		if p == nil {
			return store.External, nil
		}
		r.projects[projectID] = p
	}
	return classify(p, r.project.ID), nil
}

func referenceable(entities []*store.Entity) []*store.Entity {
	out := entities[:0]
	for _, e := range entities {
		if indexable(e.Kind) {
			out = append(out, e)
		}
	}
	return out
}
