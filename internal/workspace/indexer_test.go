package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/syntax"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	cfg := config.Default()
	cfg.Performance.IndexingThreads = 2
	return NewIndexer(cfg, root)
}

func TestIndexWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cpu.sv", "module cpu; endmodule\n")
	writeFile(t, dir, "rtl/alu.sv", "module alu; endmodule\nmodule adder; endmodule\n")
	writeFile(t, dir, "notes.txt", "module not_indexed; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	snap := ix.Snapshot()
	require.Len(t, snap.Lookup("cpu"), 1)
	require.Len(t, snap.Lookup("alu"), 1)
	require.Len(t, snap.Lookup("adder"), 1)
	assert.Empty(t, snap.Lookup("not_indexed"))
	assert.Equal(t, EntryModule, snap.Lookup("cpu")[0].Kind)
}

func TestIndexingIdempotence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sv", "module a; endmodule\n")
	writeFile(t, dir, "b.sv", "module b; endmodule\npackage pkg; endpackage\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))
	first := ix.Snapshot().Symbols()

	require.NoError(t, ix.IndexWorkspace(context.Background()))
	second := ix.Snapshot().Symbols()

	assert.Equal(t, first, second)
}

func TestSupersededSweepMergeDropped(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sv", "module old_name; endmodule\n")

	ix := newTestIndexer(t, dir)

	// A sweep captures its generation and parses the file as it is now,
	// but does not merge yet.
	staleGen := ix.nextGen.Add(1)
	stale := [][]sweepResult{{parseForIndex(path, 0)}}

	// The file changes and a newer sweep completes while the first one is
	// still in flight.
	writeFile(t, dir, "a.sv", "module new_name; endmodule\n")
	require.NoError(t, ix.IndexWorkspace(context.Background()))
	require.Len(t, ix.Snapshot().Lookup("new_name"), 1)

	// The first sweep's late merge must not overwrite the newer results.
	ix.merge(staleGen, stale)
	assert.Empty(t, ix.Snapshot().Lookup("old_name"))
	require.Len(t, ix.Snapshot().Lookup("new_name"), 1)

	// Subsequent sweeps keep working after the drop.
	require.NoError(t, ix.IndexWorkspace(context.Background()))
	require.Len(t, ix.Snapshot().Lookup("new_name"), 1)
}

func TestExcludedDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.sv", "module top; endmodule\n")
	writeFile(t, dir, "build/gen.sv", "module generated; endmodule\n")
	writeFile(t, dir, "rtl/build/gen2.sv", "module generated2; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	snap := ix.Snapshot()
	assert.NotEmpty(t, snap.Lookup("top"))
	assert.Empty(t, snap.Lookup("generated"))
	assert.Empty(t, snap.Lookup("generated2"), "exclusions apply at every path segment")
}

func TestMacroOnlyFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "defines.svh", "`define WIDTH 8\n`define DEPTH 16\n")
	writeFile(t, dir, "mixed.sv", "`define LOCAL 1\nmodule mixed; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	snap := ix.Snapshot()
	require.Len(t, snap.Lookup("WIDTH"), 1)
	assert.Equal(t, EntryMacro, snap.Lookup("WIDTH")[0].Kind)
	assert.Len(t, snap.Lookup("DEPTH"), 1)

	// Files with top-level symbols are indexed by those, not their macros.
	assert.NotEmpty(t, snap.Lookup("mixed"))
	assert.Empty(t, snap.Lookup("LOCAL"))
}

func TestAmbiguousDefinitionsPreserved(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one/foo.sv", "module foo; endmodule\n")
	writeFile(t, dir, "two/foo.sv", "module foo; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	snap := ix.Snapshot()
	assert.Len(t, snap.Lookup("foo"), 2)
	files := snap.FilesOf("foo")
	require.Len(t, files, 2)

	preview, ok := snap.PreviewFile("foo")
	require.True(t, ok)
	assert.Equal(t, files[0], preview, "preview is the smallest path")
}

func TestReindexFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sv", "module a; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))
	require.NotEmpty(t, ix.Snapshot().Lookup("a"))

	require.NoError(t, os.WriteFile(path, []byte("module renamed; endmodule\n"), 0o644))
	require.NoError(t, ix.ReindexFile(path))

	snap := ix.Snapshot()
	assert.Empty(t, snap.Lookup("a"))
	assert.NotEmpty(t, snap.Lookup("renamed"))
}

func TestRemoveFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sv", "module a; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	ix.RemoveFile(path)
	assert.Empty(t, ix.Snapshot().Lookup("a"))
	assert.Empty(t, ix.Snapshot().Files())
}

func TestPendingOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sv", "module a; endmodule\n")

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	edited := "module a2; endmodule\n"
	ix.UpdatePending(path, syntax.ParseText(path, edited))

	snap := ix.Snapshot()
	assert.Empty(t, snap.Lookup("a"), "overlay shadows on-disk symbols")
	assert.NotEmpty(t, snap.Lookup("a2"))

	// Discard restores the on-disk view.
	ix.DiscardPending(path)
	assert.NotEmpty(t, ix.Snapshot().Lookup("a"))

	// Commit on save makes the overlay durable.
	ix.UpdatePending(path, syntax.ParseText(path, edited))
	ix.CommitPending(path, xxhash.Sum64String(edited))
	snap = ix.Snapshot()
	assert.Empty(t, snap.Lookup("a"))
	assert.NotEmpty(t, snap.Lookup("a2"))
}

func TestMatchRanking(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.sv", `
module uart_tx; endmodule
module uart_rx; endmodule
module spi_master; endmodule
`)

	ix := newTestIndexer(t, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	snap := ix.Snapshot()
	results := snap.Match("uart", 10)
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, "uart_rx", results[0].Name)
	assert.Equal(t, "uart_tx", results[1].Name)

	exact := snap.Match("spi_master", 10)
	require.NotEmpty(t, exact)
	assert.Equal(t, "spi_master", exact[0].Name)
}

func TestWatcherReindexesOnWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.sv", "module a; endmodule\n")

	cfg := config.Default()
	cfg.Index.WatchDebounceMs = 10
	ix := NewIndexer(cfg, dir)
	require.NoError(t, ix.IndexWorkspace(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var updated atomic.Bool
	w := NewWatcher(cfg, ix)
	w.OnUpdate = func(string) { updated.Store(true) }
	require.NoError(t, w.Start(ctx))

	writeFile(t, dir, "b.sv", "module b; endmodule\n")
	require.Eventually(t, func() bool {
		return len(ix.Snapshot().Lookup("b")) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, updated.Load())
}
