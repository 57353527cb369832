// Package workspace maintains the workspace-wide symbol index: a
// multithreaded shallow-parse sweep over the configured directories that
// maps top-level symbol and macro names to their defining files.
package workspace

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/hdltools/svls/internal/syntax"
)

// EntryKind classifies an index entry.
type EntryKind int

const (
	EntryModule EntryKind = iota
	EntryInterface
	EntryPackage
	EntryProgram
	EntryClass
	EntryMacro
)

func (k EntryKind) String() string {
	switch k {
	case EntryModule:
		return "module"
	case EntryInterface:
		return "interface"
	case EntryPackage:
		return "package"
	case EntryProgram:
		return "program"
	case EntryClass:
		return "class"
	case EntryMacro:
		return "macro"
	}
	return "unknown"
}

// Entry is one top-level symbol or macro definition site.
type Entry struct {
	Name string
	Kind EntryKind
	File string
	Rng  syntax.Range
}

// Snapshot is an immutable view of the index. Queries read a snapshot so
// that a refresh never exposes half-merged state.
type Snapshot struct {
	byName map[string][]Entry
	byFile map[string][]Entry
}

// Lookup returns every definition of name, across all files. Multiple
// entries mean the name is ambiguous; callers surface the full list.
func (s *Snapshot) Lookup(name string) []Entry {
	return s.byName[name]
}

// FilesOf returns the sorted set of files defining name.
func (s *Snapshot) FilesOf(name string) []string {
	entries := s.byName[name]
	seen := make(map[string]bool, len(entries))
	var files []string
	for _, e := range entries {
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	sort.Strings(files)
	return files
}

// PreviewFile returns a deterministic single-file candidate for completion
// previews of an ambiguous name: the lexicographically smallest defining
// path.
func (s *Snapshot) PreviewFile(name string) (string, bool) {
	files := s.FilesOf(name)
	if len(files) == 0 {
		return "", false
	}
	return files[0], true
}

// FileEntries returns the entries indexed for one file.
func (s *Snapshot) FileEntries(path string) []Entry {
	return s.byFile[path]
}

// Files returns the sorted list of indexed files.
func (s *Snapshot) Files() []string {
	files := make([]string, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Symbols returns every entry sorted by name then file.
func (s *Snapshot) Symbols() []Entry {
	var out []Entry
	for _, entries := range s.byName {
		out = append(out, entries...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].File < out[j].File
	})
	return out
}

// Match finds entries whose names match the query: exact and prefix
// matches first, then fuzzy candidates ranked by Jaro-Winkler similarity.
func (s *Snapshot) Match(query string, limit int) []Entry {
	if limit <= 0 {
		limit = 25
	}
	type scored struct {
		entry Entry
		score float32
	}
	var candidates []scored
	lower := strings.ToLower(query)
	for name, entries := range s.byName {
		var score float32
		switch {
		case name == query:
			score = 2
		case strings.HasPrefix(strings.ToLower(name), lower):
			score = 1.5
		default:
			sim, err := edlib.StringsSimilarity(lower, strings.ToLower(name), edlib.JaroWinkler)
			if err != nil || sim < 0.8 {
				continue
			}
			score = sim
		}
		for _, e := range entries {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].entry.Name != candidates[j].entry.Name {
			return candidates[i].entry.Name < candidates[j].entry.Name
		}
		return candidates[i].entry.File < candidates[j].entry.File
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Entry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out
}

// entriesFromTree classifies one file's shallow parse for the index: its
// top-level design symbols, or its macro definitions when the file has no
// top-level symbols (macro-only headers).
func entriesFromTree(tree *syntax.Tree) []Entry {
	var entries []Entry
	for _, decl := range tree.Decls {
		entries = append(entries, Entry{
			Name: decl.Name,
			Kind: entryKind(decl.Kind),
			File: tree.File,
			Rng:  decl.NameRng,
		})
	}
	if len(entries) == 0 {
		for _, m := range tree.Macros {
			entries = append(entries, Entry{
				Name: m.Name,
				Kind: EntryMacro,
				File: tree.File,
				Rng:  m.NameRng,
			})
		}
	}
	return entries
}

func entryKind(k syntax.DeclKind) EntryKind {
	switch k {
	case syntax.DeclInterface:
		return EntryInterface
	case syntax.DeclPackage:
		return EntryPackage
	case syntax.DeclProgram:
		return EntryProgram
	case syntax.DeclClass:
		return EntryClass
	default:
		return EntryModule
	}
}
