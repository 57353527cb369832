package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/design"
	svlerr "github.com/hdltools/svls/internal/errors"
)

func newTestDriver(t *testing.T, files map[string]string) (*Driver, string) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	cfg := config.Default()
	cfg.Performance.IndexingThreads = 2
	d := New(cfg, dir)
	require.NoError(t, d.Start(context.Background(), false))
	return d, dir
}

func TestDocumentLifecycle(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"a.sv": "module a; endmodule\n",
	})
	path := filepath.Join(dir, "a.sv")

	d.OpenDocument(path, "module a; endmodule\n")

	// Unsaved change shadows the indexed symbols.
	require.NoError(t, d.ChangeDocument(path, "module a_v2; endmodule\n"))
	assert.Empty(t, d.Indexer().Snapshot().Lookup("a"))
	assert.NotEmpty(t, d.Indexer().Snapshot().Lookup("a_v2"))

	// Closing without saving restores the on-disk view.
	d.CloseDocument(path)
	assert.NotEmpty(t, d.Indexer().Snapshot().Lookup("a"))

	// Change then save makes the edit durable in the index.
	d.OpenDocument(path, "module a; endmodule\n")
	require.NoError(t, d.ChangeDocument(path, "module a_v3; endmodule\n"))
	require.NoError(t, d.SaveDocument(context.Background(), path))
	assert.NotEmpty(t, d.Indexer().Snapshot().Lookup("a_v3"))

	err := d.ChangeDocument(filepath.Join(dir, "missing.sv"), "")
	var nf *svlerr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestGetModulesInFile(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"multi.sv": "module outer;\n  module inner; endmodule\nendmodule\npackage pkg; endpackage\n",
	})

	mods, err := d.GetModulesInFile(filepath.Join(dir, "multi.sv"))
	require.NoError(t, err)
	byName := make(map[string]ModuleInfo)
	for _, m := range mods {
		byName[m.Name] = m
	}
	require.Contains(t, byName, "outer")
	require.Contains(t, byName, "inner")
	assert.Equal(t, "outer", byName["inner"].Container)
	assert.Equal(t, "package", byName["pkg"].Kind)
}

func TestGetModulesInFileParseFailure(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"broken.sv": "module ; endmodule\n",
	})

	_, err := d.GetModulesInFile(filepath.Join(dir, "broken.sv"))
	var pe *svlerr.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, filepath.Join(dir, "broken.sv"), pe.FilePath)
	assert.Equal(t, 1, pe.Line)
}

func TestFailedDesignSelectionReleasesDocuments(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"m.sv": "module m; endmodule\n",
	})
	path := filepath.Join(dir, "m.sv")

	// The index still lists m, but the file on disk no longer defines it,
	// so elaboration of the acquired closure fails.
	require.NoError(t, os.WriteFile(path, []byte("module other; endmodule\n"), 0o644))
	err := d.SetTopLevel(context.Background(), "m")
	require.Error(t, err)

	_, err = d.Compilation()
	var nf *svlerr.NotFoundError
	assert.ErrorAs(t, err, &nf)

	// Only the store's own reference remains on the loaded document.
	doc := d.Store().Get(path)
	require.NotNil(t, doc)
	assert.Equal(t, int32(1), doc.Refs())
}

func TestDefinitionsAmbiguity(t *testing.T) {
	d, _ := newTestDriver(t, map[string]string{
		"x/foo.sv": "module foo; endmodule\n",
		"y/foo.sv": "module foo; endmodule\n",
	})

	entries, err := d.Definitions("foo")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "ambiguity is surfaced, not resolved")

	_, err = d.Definitions("nope")
	var nf *svlerr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestDesignSelectionAndQueries(t *testing.T) {
	d, _ := newTestDriver(t, map[string]string{
		"leaf.sv": "module leaf(input logic a, output logic y);\n  assign y = a;\nendmodule\n",
		"top.sv":  "module top;\n  logic p, q;\n  leaf l(.a(p), .y(q));\nendmodule\n",
	})

	_, err := d.Compilation()
	require.Error(t, err, "explore mode has no design")

	require.NoError(t, d.SetTopLevel(context.Background(), "top"))
	comp, err := d.Compilation()
	require.NoError(t, err)
	assert.Equal(t, design.StateReady, comp.State())

	paths, err := comp.GetConePaths(design.ConeLoads, "top.p")
	require.NoError(t, err)
	assert.Contains(t, paths, "top.l.a")

	d.ClearDesign()
	_, err = d.Compilation()
	assert.Error(t, err)
	assert.Equal(t, design.StateCleared, comp.State())
}

func TestSaveRefreshesDependentDesign(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"m.sv": "module m(input logic a, output logic x);\n  assign x = a;\nendmodule\n",
	})
	path := filepath.Join(dir, "m.sv")
	require.NoError(t, d.SetTopLevel(context.Background(), "m"))
	comp, err := d.Compilation()
	require.NoError(t, err)
	gen1 := comp.Analysis().Generation

	d.OpenDocument(path, "module m(input logic a, b, output logic x);\n  assign x = a & b;\nendmodule\n")
	require.NoError(t, d.SaveDocument(context.Background(), path))

	assert.Greater(t, comp.Analysis().Generation, gen1)
	drivers, err := comp.GetConePaths(design.ConeDrivers, "m.x")
	require.NoError(t, err)
	assert.Equal(t, []string{"m.a", "m.b"}, drivers)
}

func TestDiagnosticsForFile(t *testing.T) {
	d, dir := newTestDriver(t, map[string]string{
		"bad.sv": "module bad(input logic a;\n  assign = ;\nendmodule\n",
	})
	path := filepath.Join(dir, "bad.sv")
	d.OpenDocument(path, "module bad(input logic a;\n  assign = ;\nendmodule\n")

	diags := d.Diagnostics(path)
	assert.NotEmpty(t, diags)
}
