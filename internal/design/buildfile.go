package design

import (
	"os"
	"path/filepath"
	"strings"

	svlerr "github.com/hdltools/svls/internal/errors"
)

// BuildFile is a parsed file-list (.f) artifact: the source files that
// make up a design and, optionally, its top module.
type BuildFile struct {
	Path  string
	Files []string
	Top   string
}

// ParseBuildFile reads a .f file list. One path per line, relative paths
// resolved against the list's directory; `//` and `#` start comments;
// `-top`/`--top` selects the top module; `-f` includes a nested list;
// other `+`/`-` tool options are ignored.
func ParseBuildFile(path string) (*BuildFile, error) {
	bf := &BuildFile{Path: path}
	if err := parseBuildFileInto(bf, path, map[string]bool{}); err != nil {
		return nil, err
	}
	return bf, nil
}

func parseBuildFileInto(bf *BuildFile, path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	if visited[path] {
		return nil
	}
	visited[path] = true

	content, err := os.ReadFile(path)
	if err != nil {
		return svlerr.NewConfigError("build-file", err)
	}
	dir := filepath.Dir(path)

	lines := strings.Split(string(content), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		for j := 0; j < len(fields); j++ {
			tok := fields[j]
			switch {
			case tok == "-top" || tok == "--top":
				if j+1 < len(fields) {
					j++
					bf.Top = fields[j]
				}
			case tok == "-f" || tok == "-F":
				if j+1 < len(fields) {
					j++
					nested := resolvePath(dir, fields[j])
					if err := parseBuildFileInto(bf, nested, visited); err != nil {
						return err
					}
				}
			case strings.HasPrefix(tok, "+incdir+"),
				strings.HasPrefix(tok, "+define+"),
				strings.HasPrefix(tok, "+"),
				strings.HasPrefix(tok, "-"):
				// Tool options we do not interpret.
			default:
				bf.Files = append(bf.Files, resolvePath(dir, tok))
			}
		}
	}
	return nil
}

func resolvePath(dir, p string) string {
	p = os.ExpandEnv(p)
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
