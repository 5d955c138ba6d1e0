package linkage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/linkage/internal/bundle"
	"github.com/jward/linkage/internal/store"
)

func TestQueryBuilder(t *testing.T) {
	t.Parallel()
	imp := newTestImporter(t)
	src := writeCorpus(t, map[string]*bundle.Bundle{
		"lib": libBundle(store.ProjectArchive),
		"app": appBundle(store.ProjectSource),
	})
	importAll(t, imp, src, store.ProjectArchive, store.ProjectSource)
	q := imp.Query()

	projects, err := q.Projects()
	require.NoError(t, err)
	var names []string
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{store.PrimitivesProject, store.UnknownsProject, store.NotApplicableProject, "lib", "app"}, names)

	entities, err := q.EntitiesByProject("lib")
	require.NoError(t, err)
	assert.Len(t, entities, 3)

	_, err = q.EntitiesByProject("missing")
	assert.Error(t, err)

	cDf := single(t, imp, "c.D.f", "()")
	out, err := q.RelationsFrom(cDf.ID)
	require.NoError(t, err)
	edges, err := q.Edges(out)
	require.NoError(t, err)
	var rendered []string
	for _, e := range edges {
		rendered = append(rendered, string(e.Kind)+" "+e.From+" -> "+e.To)
	}
	assert.ElementsMatch(t, []string{"uses c.D.f() -> x.Missing", "calls c.D.f() -> a.B.m()"}, rendered)

	aBm := single(t, imp, "a.B.m", "()")
	in, err := q.RelationsTo(aBm.ID)
	require.NoError(t, err)
	assert.Len(t, in, 2)
}

func TestReport_Text(t *testing.T) {
	t.Parallel()
	imp := newTestImporter(t)
	src := writeCorpus(t, map[string]*bundle.Bundle{"lib": libBundle(store.ProjectArchive)})
	rep, err := imp.Import(t.Context(), src, store.ProjectArchive)
	require.NoError(t, err)

	var buf bytes.Buffer
	rep.WriteText(&buf)
	assert.Contains(t, buf.String(), "import-archives: 1 project(s)")
	assert.Contains(t, buf.String(), "referential")
	assert.Contains(t, rep.JSON(), `"command":"import-archives"`)
}
