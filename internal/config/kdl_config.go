package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Load reads configuration from the given path, falling back to defaults
// when the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ".svls.kdl"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Resolve the project root relative to the config file's directory.
	dir := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(dir, cfg.Project.Root))
	}

	return cfg, nil
}

// LoadKDL attempts to load configuration from a .svls.kdl file in root.
// Returns nil when no config file is present.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".svls.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	cfg, err := Load(kdlPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "globs":
					if vals := collectStringArgs(cn); len(vals) > 0 {
						cfg.Index.Globs = vals
					}
				case "exclude_dirs":
					if vals := collectStringArgs(cn); len(vals) > 0 {
						cfg.Index.ExcludeDirs = vals
					}
				case "extensions":
					if vals := collectStringArgs(cn); len(vals) > 0 {
						cfg.Index.Extensions = vals
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "build":
			for _, cn := range n.Children {
				assignSimpleString(cn, "file", func(v string) { cfg.Build.File = v })
				assignSimpleString(cn, "file_glob", func(v string) { cfg.Build.FileGlob = v })
				assignSimpleString(cn, "top", func(v string) { cfg.Build.Top = v })
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "indexing_threads":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.IndexingThreads = v
					}
				case "parsing_threads":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ParsingThreads = v
					}
				}
			}
		case "wcp":
			for _, cn := range n.Children {
				assignSimpleString(cn, "address", func(v string) { cfg.Wcp.Address = v })
			}
		}
	}

	return cfg, nil
}

// Helper functions leveraging the kdl-go document model
func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude_dirs { "build"; "out" } — strings appear as
	// child node names with no arguments.
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
