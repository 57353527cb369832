// Package document owns per-file text buffers and their shallow syntax
// trees. Documents are reference counted: the open-document table and every
// live compilation hold their own reference, and teardown order does not
// matter.
package document

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/syntax"
)

// Document is one file's text buffer plus its latest file-local parse.
// The tree is rebuilt on every text change; elaboration state lives
// elsewhere and is refreshed only on save.
type Document struct {
	path string

	mu      sync.RWMutex
	text    string
	version int64
	tree    *syntax.Tree

	refs atomic.Int32
}

// New creates a document with one reference held by the caller.
func New(path, text string) *Document {
	d := &Document{path: path}
	d.refs.Store(1)
	d.setTextLocked(text)
	return d
}

// Path returns the document's file path.
func (d *Document) Path() string { return d.path }

// Retain adds a reference and returns the document for chaining.
func (d *Document) Retain() *Document {
	d.refs.Add(1)
	return d
}

// Release drops one reference and reports whether it was the last.
func (d *Document) Release() bool {
	return d.refs.Add(-1) <= 0
}

// Refs returns the current reference count.
func (d *Document) Refs() int32 { return d.refs.Load() }

// Version returns the edit version, incremented on every text change.
func (d *Document) Version() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Text returns the current buffer contents.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Tree returns the latest shallow syntax tree.
func (d *Document) Tree() *syntax.Tree {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tree
}

// SetText replaces the whole buffer and re-parses.
func (d *Document) SetText(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setTextLocked(text)
}

func (d *Document) setTextLocked(text string) {
	d.text = text
	d.version++
	d.tree = syntax.ParseText(d.path, text)
	debug.LogServer("parsed %s version=%d decls=%d", d.path, d.version, len(d.tree.Decls))
}

// ApplyEdit replaces the text covered by rng (UTF-8 offsets computed from
// line/column positions) and re-parses.
func (d *Document) ApplyEdit(rng syntax.Range, newText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	start, err := d.offsetOf(rng.Start)
	if err != nil {
		return err
	}
	end, err := d.offsetOf(rng.End)
	if err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("edit range inverted in %s", d.path)
	}
	d.setTextLocked(d.text[:start] + newText + d.text[end:])
	return nil
}

// offsetOf converts a 1-based line/column position to a byte offset in the
// current text. Callers hold d.mu.
func (d *Document) offsetOf(pos syntax.Pos) (int, error) {
	if pos.Line < 1 || pos.Column < 1 {
		return 0, fmt.Errorf("position %d:%d out of range in %s", pos.Line, pos.Column, d.path)
	}
	line := 1
	offset := 0
	for line < pos.Line {
		next := indexNewline(d.text, offset)
		if next < 0 {
			return 0, fmt.Errorf("line %d past end of %s", pos.Line, d.path)
		}
		offset = next + 1
		line++
	}
	offset += pos.Column - 1
	if offset > len(d.text) {
		return 0, fmt.Errorf("column %d past end of line %d in %s", pos.Column, pos.Line, d.path)
	}
	return offset, nil
}

func indexNewline(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}
