package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// BatchedStore
// =============================================================================

func TestBatchedStore_FakeIDsAreNegativeAndUnique(t *testing.T) {
	t.Parallel()
	b := NewBatchedStore()

	fid, err := b.InsertFile(&File{ProjectID: 1, Path: "A.java"})
	require.NoError(t, err)
	eid, err := b.InsertEntity(&Entity{Kind: KindClass, FQN: "A", ProjectID: 1})
	require.NoError(t, err)
	rid, err := b.InsertRelation(&Relation{Kind: RelContains, LHS: eid, RHS: eid, ProjectID: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(-1), fid)
	assert.Equal(t, int64(-2), eid)
	assert.Equal(t, int64(-3), rid)
	assert.Equal(t, 1, b.Counts()["files"])
	assert.Equal(t, 1, b.Counts()["entities"])
	assert.Equal(t, 1, b.Counts()["relations"])
}

func TestBatchedStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	b := NewBatchedStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, err := b.InsertEntity(&Entity{Kind: KindClass, FQN: "A", ProjectID: 1})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, e := range b.Entities {
		assert.False(t, seen[e.ID], "duplicate fake id %d", e.ID)
		seen[e.ID] = true
	}
	assert.Len(t, seen, 400)
}

// =============================================================================
// CommitBatch
// =============================================================================

func TestCommitBatch_RemapsFakeIDs(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	lib := insertTestProject(t, s, "lib", ProjectArchive, End(StageDone))
	libType := insertTestEntity(t, s, lib.ID, KindClass, "lib.Base", "")
	app := insertTestProject(t, s, "app", ProjectSource, Begin(StageEntity))

	b := NewBatchedStore()
	f := &File{ProjectID: app.ID, Path: "app/Main.java", Kind: "source"}
	_, err := b.InsertFile(f)
	require.NoError(t, err)
	main := &Entity{Kind: KindClass, FQN: "app.Main", ProjectID: app.ID, FileID: &f.ID, Stage: StageEntity}
	_, err = b.InsertEntity(main)
	require.NoError(t, err)
	_, err = b.InsertRelation(&Relation{
		Kind: RelExtends, LHS: main.ID, RHS: libType.ID, Provenance: External,
		ProjectID: app.ID, FileID: &f.ID, Stage: StageEntity,
	})
	require.NoError(t, err)
	_, err = b.InsertImport(&Import{ProjectID: app.ID, FileID: f.ID, EntityID: libType.ID, Provenance: External})
	require.NoError(t, err)
	_, err = b.InsertComment(&Comment{Kind: "javadoc", ProjectID: app.ID, FileID: &f.ID, EntityID: &main.ID})
	require.NoError(t, err)
	_, err = b.InsertProblem(&Problem{ProjectID: app.ID, FileID: f.ID, Kind: "syntax", ErrorCode: 7, Message: "x"})
	require.NoError(t, err)
	_, err = b.InsertMetric(&Metric{ProjectID: app.ID, FileID: &f.ID, Kind: "loc", Value: 12, Stage: StageEntity})
	require.NoError(t, err)
	_, err = b.InsertMetric(&Metric{ProjectID: app.ID, EntityID: &main.ID, Kind: "nom", Value: 1, Stage: StageEntity})
	require.NoError(t, err)
	require.NoError(t, b.AddDependency(Dependency{ProjectID: app.ID, DependsOnID: lib.ID}))

	require.NoError(t, s.CommitBatch(b, app.ID, End(StageEntity)))

	files, err := s.FilesByProject(app.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Positive(t, files[0].ID)

	entities, err := s.EntitiesByProject(app.ID)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Positive(t, entities[0].ID)
	assert.Equal(t, files[0].ID, *entities[0].FileID)

	rels, err := s.RelationsByProject(app.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, entities[0].ID, rels[0].LHS)
	assert.Equal(t, libType.ID, rels[0].RHS, "committed ids are kept")

	imports, err := s.ImportsByProject(app.ID)
	require.NoError(t, err)
	require.Len(t, imports, 1)
	assert.Equal(t, libType.ID, imports[0].EntityID)

	comments, err := s.CommentsByProject(app.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, entities[0].ID, *comments[0].EntityID)

	metrics, err := s.MetricsByProject(app.ID)
	require.NoError(t, err)
	assert.Len(t, metrics, 2)

	deps, err := s.Dependencies(app.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{lib.ID}, deps)

	m, err := s.Marker(app.ID)
	require.NoError(t, err)
	assert.Equal(t, End(StageEntity), m)

	d, err := s.DanglingRows()
	require.NoError(t, err)
	assert.Zero(t, d.Total())
}

func TestCommitBatch_UnknownFakeIDRollsBack(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	app := insertTestProject(t, s, "app", ProjectSource, Begin(StageEntity))

	b := NewBatchedStore()
	_, err := b.InsertEntity(&Entity{Kind: KindClass, FQN: "app.Main", ProjectID: app.ID, Stage: StageEntity})
	require.NoError(t, err)
	_, err = b.InsertRelation(&Relation{Kind: RelContains, LHS: -99, RHS: -1, ProjectID: app.ID, Stage: StageEntity})
	require.NoError(t, err)

	err = s.CommitBatch(b, app.ID, End(StageEntity))
	require.Error(t, err)

	entities, err := s.EntitiesByProject(app.ID)
	require.NoError(t, err)
	assert.Empty(t, entities, "partial batch must not be visible")

	m, err := s.Marker(app.ID)
	require.NoError(t, err)
	assert.Equal(t, Begin(StageEntity), m)
}

// =============================================================================
// PurgeStage
// =============================================================================

// seedThreeStages writes one row set per stage for a single project and
// returns the project.
func seedThreeStages(t *testing.T, s *Store) (*Project, Sentinels) {
	t.Helper()
	sentinels, err := s.SentinelProjects()
	require.NoError(t, err)

	p := insertTestProject(t, s, "app", ProjectSource, End(StageDone))
	f := &File{ProjectID: p.ID, Path: "app/A.java", Kind: "source"}
	_, err = s.InsertFile(f)
	require.NoError(t, err)
	_, err = s.InsertProblem(&Problem{ProjectID: p.ID, FileID: f.ID, Kind: "syntax"})
	require.NoError(t, err)
	_, err = s.InsertMetric(&Metric{ProjectID: p.ID, FileID: &f.ID, Kind: "loc", Value: 3, Stage: StageEntity})
	require.NoError(t, err)

	cls := insertTestEntity(t, s, p.ID, KindClass, "app.A", "")
	m := insertTestEntity(t, s, p.ID, KindMethod, "app.A.m", "()")

	local := &Entity{Kind: KindLocalVariable, FQN: "x", ProjectID: p.ID, Stage: StageStructural}
	_, err = s.InsertEntity(local)
	require.NoError(t, err)
	arr := &Entity{
		Kind: KindArray, FQN: "app.A[]", Multi: 1, ProjectID: sentinels.NotApplicable,
		OriginProjectID: &p.ID, Stage: StageStructural,
	}
	_, err = s.InsertEntity(arr)
	require.NoError(t, err)
	insertTestRelation(t, s, p.ID, RelContains, cls.ID, m.ID, StageStructural)
	insertTestRelation(t, s, p.ID, RelHolds, local.ID, arr.ID, StageStructural)
	insertTestRelation(t, s, p.ID, RelHasElementsOf, arr.ID, cls.ID, StageStructural)
	_, err = s.InsertImport(&Import{ProjectID: p.ID, FileID: f.ID, EntityID: cls.ID, Provenance: Internal})
	require.NoError(t, err)
	_, err = s.InsertMetric(&Metric{ProjectID: p.ID, EntityID: &m.ID, Kind: "nop", Value: 0, Stage: StageStructural})
	require.NoError(t, err)

	unknown := &Entity{Kind: KindUnknown, FQN: "missing.T", ProjectID: sentinels.Unknowns, Stage: StageReferential}
	_, err = s.InsertEntity(unknown)
	require.NoError(t, err)
	insertTestRelation(t, s, p.ID, RelCalls, m.ID, unknown.ID, StageReferential)
	return p, sentinels
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestPurgeStage_Referential(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	p, _ := seedThreeStages(t, s)

	require.NoError(t, s.PurgeStage(p.ID, StageReferential, End(StageStructural)))

	calls, err := s.RelationsByKind(RelCalls)
	require.NoError(t, err)
	assert.Empty(t, calls)
	rels, err := s.RelationsByProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 3, "structural relations survive")
	assert.Equal(t, 1, countRows(t, s, "imports"))

	unknowns, err := s.EntitiesByKind(KindUnknown)
	require.NoError(t, err)
	assert.Len(t, unknowns, 1, "unknown stubs are never purged")

	m, err := s.Marker(p.ID)
	require.NoError(t, err)
	assert.Equal(t, End(StageStructural), m)
}

func TestPurgeStage_Structural(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	p, _ := seedThreeStages(t, s)

	require.NoError(t, s.PurgeStage(p.ID, StageStructural, End(StageEntity)))

	rels, err := s.RelationsByProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
	assert.Zero(t, countRows(t, s, "imports"))

	synthesized, err := s.SynthesizedBy(p.ID)
	require.NoError(t, err)
	assert.Empty(t, synthesized)

	entities, err := s.EntitiesByProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, entities, 2, "declared entities survive")

	metrics, err := s.MetricsByProject(p.ID)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, "loc", metrics[0].Kind)

	files, err := s.FilesByProject(p.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	d, err := s.DanglingRows()
	require.NoError(t, err)
	assert.Zero(t, d.Total())
}

func TestPurgeStage_Entity(t *testing.T) {
	t.Parallel()
	s := newSeededStore(t)
	p, _ := seedThreeStages(t, s)

	require.NoError(t, s.PurgeStage(p.ID, StageEntity, Marker{}))

	entities, err := s.EntitiesByProject(p.ID)
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Zero(t, countRows(t, s, "files"))
	assert.Zero(t, countRows(t, s, "problems"))
	assert.Zero(t, countRows(t, s, "metrics"))

	m, err := s.Marker(p.ID)
	require.NoError(t, err)
	assert.Equal(t, Marker{}, m)

	prims, err := s.EntitiesByKind(KindPrimitive)
	require.NoError(t, err)
	assert.Len(t, prims, len(primitives))
}

// =============================================================================
// Consistency & Dump
// =============================================================================

func TestDanglingRows_DetectsMissingEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	p := insertTestProject(t, s, "app", ProjectSource, Marker{})
	a := insertTestEntity(t, s, p.ID, KindClass, "a.A", "")
	b := insertTestEntity(t, s, p.ID, KindClass, "a.B", "")
	r := insertTestRelation(t, s, p.ID, RelExtends, a.ID, b.ID, StageStructural)

	conn, err := s.db.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.ExecContext(context.Background(), "PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	_, err = conn.ExecContext(context.Background(), "DELETE FROM entities WHERE id = ?", b.ID)
	require.NoError(t, err)

	d, err := s.DanglingRows()
	require.NoError(t, err)
	assert.Equal(t, 1, d.Relations)
	assert.Equal(t, []int64{r.ID}, d.RelationIDs)
	assert.Equal(t, 1, d.Total())
}

func TestDump_IndependentOfIDs(t *testing.T) {
	t.Parallel()

	build := func(order []string, pad int) []string {
		s := newTestStore(t)
		p := insertTestProject(t, s, "app", ProjectSource, End(StageDone))
		// Pad the id sequence so the two stores assign different ids.
		for range pad {
			_, err := s.db.Exec("INSERT INTO entities (kind, fqn, signature, project_id, stage) VALUES ('class', 'pad', '', ?, 1)", p.ID)
			require.NoError(t, err)
		}
		_, err := s.db.Exec("DELETE FROM entities WHERE fqn = 'pad'")
		require.NoError(t, err)

		ids := make(map[string]int64)
		for _, fqn := range order {
			ids[fqn] = insertTestEntity(t, s, p.ID, KindClass, fqn, "").ID
		}
		insertTestRelation(t, s, p.ID, RelExtends, ids["a.B"], ids["a.A"], StageStructural)
		lines, err := s.Dump()
		require.NoError(t, err)
		return lines
	}

	first := build([]string{"a.A", "a.B"}, 0)
	second := build([]string{"a.B", "a.A"}, 5)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "project app source 4 0")
}
