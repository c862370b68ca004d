package protect

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard reports whether a workspace path is protected from writes.
// A Guard is immutable once built and safe for concurrent use.
type Guard struct {
	patterns  []string
	fileTypes []string
}

// New creates a Guard with the default patterns plus extra. Entries of
// extra starting with "." and containing no "/" or "*" are treated as file
// extensions; everything else is a glob pattern.
func New(extra ...string) *Guard {
	g := &Guard{
		patterns:  append([]string{}, DefaultPatterns...),
		fileTypes: append([]string{}, DefaultFileTypes...),
	}
	for _, e := range extra {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(e, ".") && !strings.ContainsAny(e, "/*"):
			g.fileTypes = append(g.fileTypes, strings.ToLower(e))
		default:
			g.patterns = append(g.patterns, filepath.ToSlash(e))
		}
	}
	return g
}

// Check returns an error naming the rule that protects rel, or nil. rel is
// relative to the workspace root. The error text starts with "permission
// denied" so retry classification treats it as permanent.
func (g *Guard) Check(rel string) error {
	if g == nil {
		return nil
	}
	rel = filepath.ToSlash(filepath.Clean(rel))

	for _, pattern := range g.patterns {
		if matchGlobPattern(rel, pattern) {
			return fmt.Errorf("permission denied: %s matches protected pattern %s", rel, pattern)
		}
	}

	ext := strings.ToLower(filepath.Ext(rel))
	for _, ft := range g.fileTypes {
		if ext == ft {
			return fmt.Errorf("permission denied: %s files are protected", ft)
		}
	}
	return nil
}

// IsProtected reports whether rel is protected.
func (g *Guard) IsProtected(rel string) bool {
	return g.Check(rel) != nil
}
