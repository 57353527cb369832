package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/syntax"
)

// fileRecord is the indexed state of one file.
type fileRecord struct {
	hash    uint64
	entries []Entry
}

// Indexer owns the workspace symbol index. A full sweep shallow-parses
// every matching file across a worker pool; each worker parses disjoint
// files with no shared state, and results merge in one pass at the end.
// Sweeps carry a generation number so a superseded sweep that finishes
// late cannot overwrite newer results.
type Indexer struct {
	cfg  *config.Config
	root string

	mu        sync.Mutex
	files     map[string]*fileRecord
	pending   map[string][]Entry // unsaved buffer overlays, applied on save
	mergedGen uint64

	nextGen atomic.Uint64
	snap    atomic.Pointer[Snapshot]
}

// NewIndexer creates an indexer rooted at the given workspace directory.
func NewIndexer(cfg *config.Config, root string) *Indexer {
	ix := &Indexer{
		cfg:     cfg,
		root:    root,
		files:   make(map[string]*fileRecord),
		pending: make(map[string][]Entry),
	}
	ix.snap.Store(&Snapshot{byName: map[string][]Entry{}, byFile: map[string][]Entry{}})
	return ix
}

// Snapshot returns the current immutable index view.
func (ix *Indexer) Snapshot() *Snapshot {
	return ix.snap.Load()
}

// Root returns the workspace root directory.
func (ix *Indexer) Root() string { return ix.root }

type sweepResult struct {
	path    string
	hash    uint64
	entries []Entry
	skipped bool // content hash unchanged, keep previous entries
}

// IndexWorkspace runs a full sweep. Parse failures index the file with the
// symbols that could still be recovered (possibly none) and never abort
// the sweep.
func (ix *Indexer) IndexWorkspace(ctx context.Context) error {
	gen := ix.nextGen.Add(1)
	paths, err := ix.collectFiles()
	if err != nil {
		return err
	}
	debug.LogIndexing("sweep gen=%d files=%d threads=%d",
		gen, len(paths), ix.cfg.EffectiveIndexingThreads())

	hashes := ix.currentHashes()

	threads := ix.cfg.EffectiveIndexingThreads()
	partitions := make([][]sweepResult, threads)
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < threads; w++ {
		worker := w
		g.Go(func() error {
			for i := worker; i < len(paths); i += threads {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				res := parseForIndex(paths[i], hashes[paths[i]])
				partitions[worker] = append(partitions[worker], res)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	ix.merge(gen, partitions)
	return nil
}

// merge folds a sweep's results into the index. Merges are tagged with the
// generation captured at sweep start; a sweep superseded while parsing
// lands here late and is dropped, so old results never overwrite newer
// ones.
func (ix *Indexer) merge(gen uint64, partitions [][]sweepResult) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if gen < ix.mergedGen {
		debug.LogIndexing("sweep gen=%d superseded by gen=%d, dropping results", gen, ix.mergedGen)
		return
	}
	ix.mergedGen = gen

	next := make(map[string]*fileRecord)
	for _, part := range partitions {
		for _, res := range part {
			if res.skipped {
				if prev, ok := ix.files[res.path]; ok {
					next[res.path] = prev
					continue
				}
			}
			next[res.path] = &fileRecord{hash: res.hash, entries: res.entries}
		}
	}
	ix.files = next
	ix.rebuildSnapshotLocked()
}

// ReindexFile reparses a single changed file and merges it into the index
// without a workspace sweep.
func (ix *Indexer) ReindexFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	hash := xxhash.Sum64(content)

	ix.mu.Lock()
	if prev, ok := ix.files[path]; ok && prev.hash == hash {
		ix.mu.Unlock()
		return nil
	}
	ix.mu.Unlock()

	tree := syntax.ParseText(path, string(content))
	entries := entriesFromTree(tree)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.files[path] = &fileRecord{hash: hash, entries: entries}
	delete(ix.pending, path)
	ix.rebuildSnapshotLocked()
	debug.LogIndexing("reindexed %s symbols=%d", path, len(entries))
	return nil
}

// RemoveFile drops a deleted file from the index.
func (ix *Indexer) RemoveFile(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.files, path)
	delete(ix.pending, path)
	ix.rebuildSnapshotLocked()
}

// UpdatePending records the symbols of an unsaved buffer. The overlay
// shadows the on-disk entries in queries until the file is saved or the
// overlay discarded.
func (ix *Indexer) UpdatePending(path string, tree *syntax.Tree) {
	entries := entriesFromTree(tree)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.pending[path] = entries
	ix.rebuildSnapshotLocked()
}

// CommitPending promotes an unsaved overlay into the durable index, used
// when the buffer is saved and its content now matches disk.
func (ix *Indexer) CommitPending(path string, hash uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	entries, ok := ix.pending[path]
	if !ok {
		return
	}
	delete(ix.pending, path)
	ix.files[path] = &fileRecord{hash: hash, entries: entries}
	ix.rebuildSnapshotLocked()
}

// DiscardPending drops an unsaved overlay, restoring the on-disk view.
func (ix *Indexer) DiscardPending(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.pending[path]; !ok {
		return
	}
	delete(ix.pending, path)
	ix.rebuildSnapshotLocked()
}

// rebuildSnapshotLocked publishes a new immutable snapshot from the
// current file records and pending overlays. Callers hold ix.mu.
func (ix *Indexer) rebuildSnapshotLocked() {
	byName := make(map[string][]Entry)
	byFile := make(map[string][]Entry)
	for path, rec := range ix.files {
		entries := rec.entries
		if overlay, ok := ix.pending[path]; ok {
			entries = overlay
		}
		byFile[path] = entries
		for _, e := range entries {
			byName[e.Name] = append(byName[e.Name], e)
		}
	}
	for path, overlay := range ix.pending {
		if _, ok := ix.files[path]; ok {
			continue
		}
		byFile[path] = overlay
		for _, e := range overlay {
			byName[e.Name] = append(byName[e.Name], e)
		}
	}
	ix.snap.Store(&Snapshot{byName: byName, byFile: byFile})
}

func (ix *Indexer) currentHashes() map[string]uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	hashes := make(map[string]uint64, len(ix.files))
	for path, rec := range ix.files {
		hashes[path] = rec.hash
	}
	return hashes
}

// collectFiles walks the workspace applying directory exclusions at every
// path segment and the configured glob patterns to the relative path.
func (ix *Indexer) collectFiles() ([]string, error) {
	var paths []string
	excluded := make(map[string]bool, len(ix.cfg.Index.ExcludeDirs))
	for _, d := range ix.cfg.Index.ExcludeDirs {
		excluded[d] = true
	}
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directories are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != ix.root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.cfg.IsSourceFile(path) {
			return nil
		}
		rel, relErr := filepath.Rel(ix.root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		for _, glob := range ix.cfg.Index.Globs {
			if ok, _ := doublestar.Match(glob, rel); ok {
				paths = append(paths, path)
				return nil
			}
		}
		return nil
	})
	return paths, err
}

// parseForIndex hashes and shallow-parses one file. A file whose content
// hash matches the previous sweep is marked skipped so the merge can reuse
// its entries without reparsing.
func parseForIndex(path string, prevHash uint64) sweepResult {
	content, err := os.ReadFile(path)
	if err != nil {
		debug.LogIndexing("read failed for %s: %v", path, err)
		return sweepResult{path: path}
	}
	hash := xxhash.Sum64(content)
	if prevHash != 0 && hash == prevHash {
		return sweepResult{path: path, hash: hash, skipped: true}
	}
	tree := syntax.ParseText(path, string(content))
	return sweepResult{path: path, hash: hash, entries: entriesFromTree(tree)}
}
