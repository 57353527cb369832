package config

import (
	"runtime"
)

// Config holds the full server configuration. The core only reads the
// fields it recognizes and applies defaults when a field is absent.
type Config struct {
	Version     int
	Project     Project
	Index       Index
	Build       Build
	Performance Performance
	Wcp         Wcp
}

type Project struct {
	Root string
	Name string
}

// Index controls the workspace-wide symbol/macro index.
type Index struct {
	// Directory globs to index. Empty means the whole workspace root.
	Globs []string
	// Directory names/patterns excluded at every path segment.
	ExcludeDirs []string
	// File extensions considered HDL sources.
	Extensions []string
	// WatchMode enables file system watching for targeted reindexing.
	WatchMode bool
	// WatchDebounceMs is the debounce time for file change events.
	WatchDebounceMs int
}

// Build describes how an elaborated design is selected.
type Build struct {
	// File is an explicit file-list (.f) path.
	File string
	// FileGlob locates candidate build files when File is unset.
	FileGlob string
	// Top is the default top module name, if any.
	Top string
}

type Performance struct {
	// IndexingThreads sizes the workspace index worker pool. 0 = NumCPU.
	IndexingThreads int
	// ParsingThreads sizes the per-compilation parse pool. 0 = NumCPU.
	ParsingThreads int
}

// Wcp configures the waveform viewer protocol client.
type Wcp struct {
	// Address of the waveform viewer socket, empty disables the client.
	Address string
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		Version: 1,
		Project: Project{Root: "."},
		Index: Index{
			Globs:           []string{"**/*"},
			ExcludeDirs:     []string{".git", "build", "out"},
			Extensions:      []string{".sv", ".svh", ".v", ".vh"},
			WatchMode:       false,
			WatchDebounceMs: 200,
		},
		Build: Build{
			FileGlob: "**/*.f",
		},
		Performance: Performance{
			IndexingThreads: 0,
			ParsingThreads:  0,
		},
	}
}

// EffectiveIndexingThreads resolves the 0 = auto-detect convention.
func (c *Config) EffectiveIndexingThreads() int {
	if c.Performance.IndexingThreads > 0 {
		return c.Performance.IndexingThreads
	}
	return runtime.NumCPU()
}

// EffectiveParsingThreads resolves the 0 = auto-detect convention.
func (c *Config) EffectiveParsingThreads() int {
	if c.Performance.ParsingThreads > 0 {
		return c.Performance.ParsingThreads
	}
	return runtime.NumCPU()
}

// IsSourceFile reports whether path has a recognized HDL extension.
func (c *Config) IsSourceFile(path string) bool {
	for _, ext := range c.Index.Extensions {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}
