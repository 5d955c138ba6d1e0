package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/jward/linkage/internal/bundle"
	"github.com/jward/linkage/internal/config"
	"github.com/jward/linkage/internal/store"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagFormat = "text"
	flagProject, flagKind, flagFrom, flagUnknowns = "", "", 0, false
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func writeArchives(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	w := bundle.Writer{Root: root}
	require.NoError(t, w.Write("lib", &bundle.Bundle{
		Manifest: bundle.Manifest{Name: "lib", Kind: store.ProjectArchive, Hash: "hash-lib"},
		Files:    []bundle.FileRecord{{Path: "a/B.class", Kind: "class"}},
		Entities: []bundle.EntityRecord{
			{Kind: store.KindPackage, FQN: "a"},
			{Kind: store.KindClass, FQN: "a.B", Path: "a/B.class"},
		},
		Relations: []bundle.RelationRecord{
			{Kind: store.RelContains, LHS: "a", RHS: "a.B"},
		},
	}))
	require.NoError(t, w.Write("app", &bundle.Bundle{
		Manifest: bundle.Manifest{Name: "app", Kind: store.ProjectArchive, Hash: "hash-app", DependsOn: []string{"hash-lib"}},
		Files:    []bundle.FileRecord{{Path: "c/D.class", Kind: "class"}},
		Entities: []bundle.EntityRecord{
			{Kind: store.KindPackage, FQN: "c"},
			{Kind: store.KindClass, FQN: "c.D", Path: "c/D.class"},
		},
		Relations: []bundle.RelationRecord{
			{Kind: store.RelExtends, LHS: "c.D", RHS: "a.B"},
		},
	}))
	return root
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"LINKAGE_DB", "LINKAGE_CORPUS", "LINKAGE_THREADS", "LINKAGE_STRUCTURAL_ONLY",
		"LINKAGE_METRICS_FILE", "LINKAGE_LOG_LEVEL", "LINKAGE_LOG_FORMAT", "LINKAGE_MINIO_BUCKET"} {
		t.Setenv(k, "")
	}
}

func TestCLI_ImportArchivesThenQuery(t *testing.T) {
	clearEnv(t)
	corpus := writeArchives(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "data", "linkage.db")
	metricsFile := filepath.Join(dir, "metrics.prom")
	common := []string{"--db", db, "--corpus", corpus}

	out, err := execute(t, append([]string{"initialize-store"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized "+db)

	out, err = execute(t, append([]string{"import-archives", "--thread-count", "2", "--metrics-file", metricsFile}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "import-archives: 2 project(s)")
	assert.Contains(t, out, "referential")

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "linkage_")

	out, err = execute(t, append([]string{"check"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "relations  0")

	out, err = execute(t, append([]string{"query", "projects", "--format", "json"}, common...)...)
	require.NoError(t, err)
	var res struct {
		Command string       `json:"command"`
		Results []CLIProject `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "projects", res.Command)
	markers := map[string]string{}
	for _, p := range res.Results {
		markers[p.Name] = p.Marker
	}
	assert.Equal(t, "DONE", markers["lib"])
	assert.Equal(t, "DONE", markers["app"])

	out, err = execute(t, append([]string{"query", "relations", "--kind", "extends"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "c.D (#")
	assert.Contains(t, out, "a.B (#")

	out, err = execute(t, append([]string{"query", "entities", "a.B"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "lib")
}

func TestCLI_QueryWithoutStore(t *testing.T) {
	clearEnv(t)
	db := filepath.Join(t.TempDir(), "missing.db")
	_, err := execute(t, "query", "projects", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
}

func TestCLI_InvalidFormat(t *testing.T) {
	clearEnv(t)
	_, err := execute(t, "check", "--format", "yaml", "--db", filepath.Join(t.TempDir(), "x.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestReadFilter(t *testing.T) {
	dir := t.TempDir()

	names, err := readFilter("")
	require.NoError(t, err)
	assert.Nil(t, names)

	path := filepath.Join(dir, "filter.txt")
	require.NoError(t, os.WriteFile(path, []byte("# archives\nlib\n\n  hash-app  \n"), 0o644))
	names, err = readFilter(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "hash-app"}, names)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0o644))
	_, err = readFilter(empty)
	assert.ErrorContains(t, err, "lists no projects")

	_, err = readFilter(filepath.Join(dir, "absent.txt"))
	assert.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	l, err := buildLogger(config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = buildLogger(config.LogConfig{Level: "warn", Format: "console"}, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = buildLogger(config.LogConfig{Level: "loud"}, false)
	assert.ErrorContains(t, err, "invalid log level")
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.Error(t, validateFormat("csv"))
}
