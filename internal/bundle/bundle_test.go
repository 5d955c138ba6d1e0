package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jward/linkage/internal/config"
	"github.com/jward/linkage/internal/store"
)

func ptr[T any](v T) *T { return &v }

func sampleBundle() *Bundle {
	return &Bundle{
		Manifest: Manifest{
			Name:      "app",
			Kind:      store.ProjectSource,
			Version:   "1.0",
			DependsOn: []string{"hash-lib"},
		},
		Files: []FileRecord{{Path: "c/D.java", Kind: "source", Metrics: map[string]float64{"loc": 10}}},
		Entities: []EntityRecord{
			{Kind: store.KindClass, FQN: "c.D", Path: "c/D.java", Offset: ptr(0), Length: ptr(80)},
			{Kind: store.KindMethod, FQN: "c.D.f", Signature: "()", Modifiers: []string{"public"}, Path: "c/D.java"},
		},
		Relations: []RelationRecord{{Kind: store.RelCalls, LHS: "c.D.f()", RHS: "a.B.m()", Path: "c/D.java", Offset: ptr(42)}},
		Imports:   []ImportRecord{{Path: "c/D.java", Name: "a.B"}},
		Comments:  []CommentRecord{{Kind: "javadoc", Path: "c/D.java", Owner: "c.D"}},
		Locals:    []LocalRecord{{Kind: store.KindParameter, Name: "x", Type: "int", Parent: "c.D.f()", Position: ptr(0)}},
		Problems:  []ProblemRecord{{Path: "c/D.java", Kind: "warning", ErrorCode: 3, Message: "unused"}},
	}
}

// =============================================================================
// Manifest
// =============================================================================

func TestManifest_Validate(t *testing.T) {
	t.Parallel()

	m := Manifest{Name: "lib", Kind: store.ProjectArchive, Version: "2"}
	require.NoError(t, m.Validate())
	assert.Equal(t, store.ComputeProjectHash(store.ProjectArchive, "lib", "2", "", ""), m.Hash)

	explicit := Manifest{Name: "lib", Kind: store.ProjectArchive, Hash: "given"}
	require.NoError(t, explicit.Validate())
	assert.Equal(t, "given", explicit.Hash)

	assert.Error(t, (&Manifest{Kind: store.ProjectArchive}).Validate())
	assert.Error(t, (&Manifest{Name: "x", Kind: store.ProjectUnknown}).Validate())
}

// =============================================================================
// Round trip through DirSource
// =============================================================================

func TestWriterLoader_RoundTrip(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	want := sampleBundle()
	require.NoError(t, Writer{Root: root}.Write("app", want))

	l := NewLoader(DirSource{Root: root}, nil)
	got, err := l.Load(context.Background(), "app")
	require.NoError(t, err)

	assert.Equal(t, "app", got.Ref)
	assert.Equal(t, "app", got.Manifest.Name)
	assert.NotEmpty(t, got.Manifest.Hash)
	assert.Equal(t, []string{"hash-lib"}, got.Manifest.DependsOn)
	assert.Equal(t, want.Files, got.Files)
	assert.Equal(t, want.Entities, got.Entities)
	assert.Equal(t, want.Relations, got.Relations)
	assert.Equal(t, want.Imports, got.Imports)
	assert.Equal(t, want.Comments, got.Comments)
	assert.Equal(t, want.Locals, got.Locals)
	assert.Equal(t, want.Problems, got.Problems)
	assert.Zero(t, got.Dropped)
}

func TestLoader_MissingFilesAreEmpty(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, Writer{Root: root}.Write("lib", &Bundle{
		Manifest: Manifest{Name: "lib", Kind: store.ProjectArchive},
	}))

	got, err := NewLoader(DirSource{Root: root}, nil).Load(context.Background(), "lib")
	require.NoError(t, err)
	assert.Empty(t, got.Entities)
	assert.Empty(t, got.Relations)
}

func TestLoader_MalformedLinesDropped(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, Writer{Root: root}.Write("lib", &Bundle{
		Manifest: Manifest{Name: "lib", Kind: store.ProjectArchive},
	}))
	body := `{"kind":"class","fqn":"a.B"}
not json

{"kind":"method","fqn":"a.B.m","signature":"()"}
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", EntitiesFile), []byte(body), 0o644))

	got, err := NewLoader(DirSource{Root: root}, nil).Load(context.Background(), "lib")
	require.NoError(t, err)
	require.Len(t, got.Entities, 2)
	assert.Equal(t, "a.B.m()", got.Entities[1].Name())
	assert.Equal(t, 1, got.Dropped)
}

func TestLoader_Discover(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	w := Writer{Root: root}
	require.NoError(t, w.Write("jdk", &Bundle{Manifest: Manifest{Name: "jdk", Kind: store.ProjectPlatform}}))
	require.NoError(t, w.Write("lib", &Bundle{Manifest: Manifest{Name: "lib", Kind: store.ProjectArchive}}))
	require.NoError(t, w.Write("app", &Bundle{Manifest: Manifest{Name: "app", Kind: store.ProjectSource}}))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-bundle"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken", ManifestFile), []byte("kind: source\n"), 0o644))

	l := NewLoader(DirSource{Root: root}, nil)

	all, err := l.Discover(context.Background())
	require.NoError(t, err)
	var names []string
	for _, e := range all {
		names = append(names, e.Manifest.Name)
	}
	assert.Equal(t, []string{"app", "jdk", "lib"}, names)

	archives, err := l.Discover(context.Background(), store.ProjectArchive)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "lib", archives[0].Ref)
}

func TestDirSource_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := DirSource{Root: filepath.Join(t.TempDir(), "nope")}.List(context.Background())
	assert.Error(t, err)
}

func TestMinioSource_ListErrorLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src, err := NewMinioSource(config.MinIOConfig{Endpoint: "127.0.0.1:1", Bucket: "bundles", Prefix: "/corpus/"})
	require.NoError(t, err)
	assert.Equal(t, "corpus/lib/manifest.yaml", src.key("lib", ManifestFile))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.List(ctx)
	assert.Error(t, err)
}
