package ast

import (
	"strconv"
	"strings"

	svlerr "github.com/hdltools/svls/internal/errors"
)

// pathSegment is one dotted component of a hierarchical path, with optional
// element indices (a.b[2].c has segments a, b[2], c).
type pathSegment struct {
	name    string
	indices []int64
}

// splitPath parses a dotted hierarchical path into segments. Bracketed
// indices attach to the preceding name.
func splitPath(path string) ([]pathSegment, error) {
	var segs []pathSegment
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, svlerr.NewNotFoundError("scope", path)
		}
		name := part
		var indices []int64
		if i := strings.IndexByte(part, '['); i >= 0 {
			name = part[:i]
			rest := part[i:]
			for len(rest) > 0 {
				if rest[0] != '[' {
					return nil, svlerr.NewNotFoundError("scope", path)
				}
				end := strings.IndexByte(rest, ']')
				if end < 0 {
					return nil, svlerr.NewNotFoundError("scope", path)
				}
				idx, err := strconv.ParseInt(rest[1:end], 10, 64)
				if err != nil {
					return nil, svlerr.NewNotFoundError("scope", path)
				}
				indices = append(indices, idx)
				rest = rest[end+1:]
			}
		}
		if name == "" {
			return nil, svlerr.NewNotFoundError("scope", path)
		}
		segs = append(segs, pathSegment{name: name, indices: indices})
	}
	return segs, nil
}

// LookupPath resolves a full hierarchical path to a symbol. The first
// segment names a top instance or package.
func (c *Compilation) LookupPath(path string) (Symbol, error) {
	sym, rest, err := c.LookupPathPartial(path)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, svlerr.NewNotFoundError("scope", path)
	}
	return sym, nil
}

// LookupPathPartial resolves as much of a hierarchical path as exists and
// returns the deepest symbol found together with the unresolved remainder.
// The remainder is empty on a full match.
func (c *Compilation) LookupPathPartial(path string) (Symbol, string, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}

	cur := c.Root.Member(segs[0].name)
	if cur == nil {
		return nil, "", svlerr.NewNotFoundError("scope", path)
	}
	cur, ok := descendIndices(cur, segs[0].indices)
	if !ok {
		return nil, "", svlerr.NewNotFoundError("scope", path)
	}

	for i := 1; i < len(segs); i++ {
		scope := ScopeOf(cur)
		if scope == nil {
			return cur, joinSegments(segs[i:]), nil
		}
		next := scope.Member(segs[i].name)
		if next == nil {
			return cur, joinSegments(segs[i:]), nil
		}
		next, ok = descendIndices(next, segs[i].indices)
		if !ok {
			return cur, joinSegments(segs[i:]), nil
		}
		cur = next
	}
	return cur, "", nil
}

// descendIndices applies bracketed indices to array symbols.
func descendIndices(sym Symbol, indices []int64) (Symbol, bool) {
	for _, idx := range indices {
		switch arr := sym.(type) {
		case *InstanceArraySymbol:
			el := arr.elementAt(idx)
			if el == nil {
				return nil, false
			}
			sym = el
		case *GenerateArraySymbol:
			el := arr.entryAt(idx)
			if el == nil {
				return nil, false
			}
			sym = el
		default:
			return nil, false
		}
	}
	return sym, true
}

func joinSegments(segs []pathSegment) string {
	var sb strings.Builder
	for i, s := range segs {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.name)
		for _, idx := range s.indices {
			sb.WriteByte('[')
			sb.WriteString(strconv.FormatInt(idx, 10))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}
