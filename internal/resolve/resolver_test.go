package resolve

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linkage/internal/store"
)

// fixture is a seeded store with helpers to declare projects and entities.
type fixture struct {
	t         *testing.T
	store     *store.Store
	sentinels store.Sentinels
	unknowns  *UnknownCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	require.NoError(t, s.Seed())
	sentinels, err := s.SentinelProjects()
	require.NoError(t, err)
	unknowns, err := NewUnknownCache(s, sentinels.Unknowns)
	require.NoError(t, err)
	return &fixture{t: t, store: s, sentinels: sentinels, unknowns: unknowns}
}

func (f *fixture) project(name string, kind store.ProjectKind) *store.Project {
	f.t.Helper()
	p := &store.Project{Name: name, Kind: kind, Hash: "hash-" + name, Marker: store.End(store.StageStructural)}
	_, err := f.store.InsertProject(p)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) entity(p *store.Project, kind store.EntityKind, name string) *store.Entity {
	f.t.Helper()
	fqn, sig := SplitMember(name)
	e := &store.Entity{
		Kind: kind, FQN: fqn, Signature: sig, ErasedSignature: EraseSignature(sig),
		ProjectID: p.ID, Stage: store.StageEntity,
	}
	_, err := f.store.InsertEntity(e)
	require.NoError(f.t, err)
	return e
}

func (f *fixture) relate(p *store.Project, kind store.RelationKind, lhs, rhs *store.Entity) {
	f.t.Helper()
	_, err := f.store.InsertRelation(&store.Relation{
		Kind: kind, LHS: lhs.ID, RHS: rhs.ID, Provenance: store.Internal, ProjectID: p.ID, Stage: store.StageStructural,
	})
	require.NoError(f.t, err)
}

func (f *fixture) shared() *Shared {
	f.t.Helper()
	lib, err := BuildLibraryIndex(f.store)
	require.NoError(f.t, err)
	return &Shared{Store: f.store, Sentinels: f.sentinels, Library: lib, Unknowns: f.unknowns}
}

func (f *fixture) resolver(p *store.Project, stage store.Stage, out store.DataStore, deps ...*store.Project) *Resolver {
	f.t.Helper()
	r, err := New(f.shared(), Config{Project: p, Dependencies: deps, Stage: stage, Out: out})
	require.NoError(f.t, err)
	return r
}

func relationsOfKind(b *store.BatchedStore, kind store.RelationKind) []store.Relation {
	var out []store.Relation
	for _, r := range b.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// Resolution order
// =============================================================================

func TestResolve_LocalFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	lib := f.project("lib", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	f.entity(lib, store.KindClass, "a.B")
	local := f.entity(app, store.KindClass, "a.B")

	r := f.resolver(app, store.StageStructural, store.NewBatchedStore(), lib)
	res, err := r.Resolve("a.B")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: local.ID, Provenance: store.Internal}, res)
}

func TestResolve_DeclaredDependency(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	lib := f.project("lib", store.ProjectArchive)
	jdk := f.project("jdk", store.ProjectPlatform)
	app := f.project("app", store.ProjectSource)
	b := f.entity(lib, store.KindClass, "a.B")
	str := f.entity(jdk, store.KindClass, "java.lang.String")

	r := f.resolver(app, store.StageStructural, store.NewBatchedStore(), lib, jdk)

	res, err := r.Resolve("a.B")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: b.ID, Provenance: store.External}, res)

	res, err = r.Resolve("java.lang.String")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: str.ID, Provenance: store.PlatformLibrary}, res)
}

func TestResolve_UndeclaredProjectIsNotSearched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	other := f.project("other", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	f.entity(other, store.KindClass, "a.B")

	r := f.resolver(app, store.StageStructural, store.NewBatchedStore())
	res, err := r.Resolve("a.B")
	require.NoError(t, err)
	assert.Equal(t, store.Unknown, res.Provenance)
}

func TestResolve_ErasureFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	lib := f.project("lib", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	m := f.entity(lib, store.KindMethod, "a.B.m(java.util.List<<T+java.lang.Object>>)")

	r := f.resolver(app, store.StageReferential, store.NewBatchedStore(), lib)
	res, err := r.Resolve("a.B.m(java.util.List<java.lang.String>)")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: m.ID, Provenance: store.External}, res)
}

func TestResolve_PlatformLibraryIndex(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	jdk := f.project("jdk", store.ProjectPlatform)
	app := f.project("app", store.ProjectSource)
	obj := f.entity(jdk, store.KindClass, "java.lang.Object")

	r := f.resolver(app, store.StageStructural, store.NewBatchedStore())

	res, err := r.Resolve("java.lang.Object")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: obj.ID, Provenance: store.PlatformLibrary}, res)

	res, err = r.Resolve("int")
	require.NoError(t, err)
	assert.Equal(t, store.NotApplicable, res.Provenance)
	prim, err := f.store.EntityByID(res.ID)
	require.NoError(t, err)
	assert.Equal(t, store.KindPrimitive, prim.Kind)
}

func TestResolve_PackagesUseLowestID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.project("a", store.ProjectArchive)
	b := f.project("b", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	first := f.entity(a, store.KindPackage, "org.x")
	f.entity(b, store.KindPackage, "org.x")

	batch := store.NewBatchedStore()
	r := f.resolver(app, store.StageStructural, batch, b, a)
	res, err := r.Resolve("org.x")
	require.NoError(t, err)
	assert.Equal(t, first.ID, res.ID)
	assert.Empty(t, batch.Entities)
}

// =============================================================================
// Totality & unknown stubs
// =============================================================================

func TestResolve_Totality(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.project("app", store.ProjectSource)
	r := f.resolver(app, store.StageReferential, store.NewBatchedStore())

	names := []string{
		"", "x", "a.B", "a.B.m()", "a.B.m(int,a.C)", "a.B[]", "<?>", "<?+a.B>", "<T+a.B&a.C>",
		"java.util.Map<a.K,java.util.List<a.V>>", "a.B.<init>()", "a.B[].clone()", "weird<<>>", "<", ">",
	}
	for _, n := range names {
		res, err := r.ResolveVirtual(n)
		require.NoError(t, err, n)
		assert.NotZero(t, res.ID, n)
		assert.NotEmpty(t, res.Provenance, n)
	}
}

func TestUnknownCache_OneStubPerName(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]int64, 16)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := f.unknowns.GetOrInsert("missing.T.m(int)", store.StageReferential)
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, f.unknowns.Created())

	stubs, err := f.store.EntitiesByKind(store.KindUnknown)
	require.NoError(t, err)
	require.Len(t, stubs, 1)
	assert.Equal(t, "missing.T.m", stubs[0].FQN)
	assert.Equal(t, "(int)", stubs[0].Signature)
	assert.Equal(t, f.sentinels.Unknowns, stubs[0].ProjectID)

	reloaded, err := NewUnknownCache(f.store, f.sentinels.Unknowns)
	require.NoError(t, err)
	id, err := reloaded.GetOrInsert("missing.T.m(int)", store.StageReferential)
	require.NoError(t, err)
	assert.Equal(t, ids[0], id)
	assert.Zero(t, reloaded.Created())
}

// =============================================================================
// Duplicates
// =============================================================================

func TestResolve_DuplicateMixed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	jdk := f.project("jdk", store.ProjectPlatform)
	ext := f.project("ext", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	a := f.entity(jdk, store.KindClass, "x.Y")
	b := f.entity(ext, store.KindClass, "x.Y")

	batch := store.NewBatchedStore()
	r := f.resolver(app, store.StageStructural, batch, jdk, ext)
	res, err := r.Resolve("x.Y")
	require.NoError(t, err)
	assert.Equal(t, store.MixedExternal, res.Provenance)

	require.Len(t, batch.Entities, 1)
	dup := batch.Entities[0]
	assert.Equal(t, store.KindDuplicate, dup.Kind)
	assert.Equal(t, res.ID, dup.ID)
	assert.Equal(t, f.sentinels.NotApplicable, dup.ProjectID)
	assert.Equal(t, app.ID, *dup.OriginProjectID)
	assert.Equal(t, store.MixedExternal, *dup.Provenance)

	matches := relationsOfKind(batch, store.RelMatches)
	require.Len(t, matches, 2)
	assert.Equal(t, a.ID, matches[0].RHS)
	assert.Equal(t, store.PlatformLibrary, matches[0].Provenance)
	assert.Equal(t, b.ID, matches[1].RHS)
	assert.Equal(t, store.External, matches[1].Provenance)

	again, err := r.Resolve("x.Y")
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Len(t, relationsOfKind(batch, store.RelMatches), 2)
}

func TestResolve_DuplicateSharedClass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.project("a", store.ProjectArchive)
	b := f.project("b", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	f.entity(a, store.KindMethod, "x.Y.m(int)")
	f.entity(b, store.KindMethod, "x.Y.m(int)")

	batch := store.NewBatchedStore()
	r := f.resolver(app, store.StageReferential, batch, a, b)
	res, err := r.Resolve("x.Y.m(int)")
	require.NoError(t, err)
	assert.Equal(t, store.External, res.Provenance)
	require.Len(t, batch.Entities, 1)
	assert.Equal(t, "x.Y.m", batch.Entities[0].FQN)
	assert.Equal(t, "(int)", batch.Entities[0].Signature)
	assert.Len(t, relationsOfKind(batch, store.RelMatches), 2)
}

// =============================================================================
// Virtual resolution
// =============================================================================

// hierarchy declares lib types a.Base (class, m()), a.I and a.J (interfaces,
// both run()), a.K (interface, f field) and a.L (interface, f field), plus
// app type c.D extends a.Base implements a.I, a.J, a.K, a.L.
func hierarchy(t *testing.T) (*fixture, *store.Project, *store.Project, map[string]*store.Entity) {
	f := newFixture(t)
	jdk := f.project("jdk", store.ProjectPlatform)
	lib := f.project("lib", store.ProjectArchive)
	app := f.project("app", store.ProjectSource)
	e := map[string]*store.Entity{}
	e["Object"] = f.entity(jdk, store.KindClass, "java.lang.Object")
	e["hashCode"] = f.entity(jdk, store.KindMethod, "java.lang.Object.hashCode()")
	e["Base"] = f.entity(lib, store.KindClass, "a.Base")
	e["Base.m"] = f.entity(lib, store.KindMethod, "a.Base.m()")
	e["I"] = f.entity(lib, store.KindInterface, "a.I")
	e["I.run"] = f.entity(lib, store.KindMethod, "a.I.run()")
	e["J"] = f.entity(lib, store.KindInterface, "a.J")
	e["J.run"] = f.entity(lib, store.KindMethod, "a.J.run()")
	e["I.m"] = f.entity(lib, store.KindMethod, "a.I.m()")
	e["K"] = f.entity(lib, store.KindInterface, "a.K")
	e["K.f"] = f.entity(lib, store.KindField, "a.K.f")
	e["L"] = f.entity(lib, store.KindInterface, "a.L")
	e["L.f"] = f.entity(lib, store.KindField, "a.L.f")
	e["L.g"] = f.entity(lib, store.KindField, "a.L.g")
	e["D"] = f.entity(app, store.KindClass, "c.D")
	f.relate(lib, store.RelExtends, e["Base"], e["Object"])
	for _, parent := range []string{"I", "J", "K", "L"} {
		f.relate(app, store.RelImplements, e["D"], e[parent])
	}
	f.relate(app, store.RelExtends, e["D"], e["Base"])
	return f, jdk, app, e
}

func TestResolveVirtual_ClassBeatsInterface(t *testing.T) {
	t.Parallel()
	f, _, app, e := hierarchy(t)
	r := f.resolver(app, store.StageReferential, store.NewBatchedStore())

	res, err := r.ResolveVirtual("c.D.m()")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: e["Base.m"].ID, Provenance: store.External}, res)
}

func TestResolveVirtual_InheritedFromPlatform(t *testing.T) {
	t.Parallel()
	f, _, app, e := hierarchy(t)
	r := f.resolver(app, store.StageReferential, store.NewBatchedStore())

	res, err := r.ResolveVirtual("a.Base.hashCode()")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: e["hashCode"].ID, Provenance: store.PlatformLibrary}, res)
}

func TestResolveVirtual_SeveralInterfacesMakeDuplicate(t *testing.T) {
	t.Parallel()
	f, _, app, e := hierarchy(t)
	batch := store.NewBatchedStore()
	r := f.resolver(app, store.StageReferential, batch)

	res, err := r.ResolveVirtual("c.D.run()")
	require.NoError(t, err)
	assert.Equal(t, store.External, res.Provenance)
	require.Len(t, batch.Entities, 1)
	assert.Equal(t, store.KindDuplicate, batch.Entities[0].Kind)

	var targets []int64
	for _, m := range relationsOfKind(batch, store.RelMatches) {
		targets = append(targets, m.RHS)
	}
	assert.ElementsMatch(t, []int64{e["I.run"].ID, e["J.run"].ID}, targets)
}

func TestResolveVirtual_Fields(t *testing.T) {
	t.Parallel()
	f, _, app, e := hierarchy(t)
	r := f.resolver(app, store.StageReferential, store.NewBatchedStore())

	res, err := r.ResolveVirtual("c.D.g")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: e["L.g"].ID, Provenance: store.External}, res)

	res, err = r.ResolveVirtual("c.D.f")
	require.NoError(t, err)
	assert.Equal(t, store.Unknown, res.Provenance, "ambiguous fields fall through to a stub")
}

func TestResolveVirtual_ConstructorsAndArrays(t *testing.T) {
	t.Parallel()
	f, _, app, e := hierarchy(t)
	r := f.resolver(app, store.StageReferential, store.NewBatchedStore())

	res, err := r.ResolveVirtual("c.D.<init>()")
	require.NoError(t, err)
	assert.Equal(t, store.Unknown, res.Provenance)

	res, err = r.ResolveVirtual("c.D[].hashCode()")
	require.NoError(t, err)
	assert.Equal(t, Resolved{ID: e["hashCode"].ID, Provenance: store.PlatformLibrary}, res)
}

func TestResolve_NotVirtualOutsideReferentialLookup(t *testing.T) {
	t.Parallel()
	f, _, app, _ := hierarchy(t)
	r := f.resolver(app, store.StageStructural, store.NewBatchedStore())

	res, err := r.Resolve("c.D.m()")
	require.NoError(t, err)
	assert.Equal(t, store.Unknown, res.Provenance)
	assert.Equal(t, 1, r.Stats()[store.Unknown])
}

func TestResolve_StatsCountTopLevelCalls(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.project("app", store.ProjectSource)
	r := f.resolver(app, store.StageStructural, store.NewBatchedStore())
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(fmt.Sprintf("java.util.List<m.T%d>", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, r.Stats()[store.NotApplicable])
	assert.Zero(t, r.Stats()[store.Unknown], "nested resolutions are not counted")
}
