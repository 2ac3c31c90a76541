package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// IgnoreFileName is the per-directory ignore file read by Walk.
const IgnoreFileName = ".shelfignore"

// defaultIgnorePatterns are always applied regardless of config or .shelfignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // match against the relative path instead of the basename
	dirOnly   bool // trailing '/': matches directories only
}

// IgnoreMatcher checks relative paths against a set of ignore patterns.
// Patterns without '/' match a basename at any depth; patterns containing
// '/' match the slash-separated path from the walk root. A trailing '/'
// restricts a pattern to directories, whose whole subtree is then skipped.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped. Malformed globs are
// dropped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	m.Add(rawPatterns...)
	return m
}

// Add appends patterns to the matcher.
func (m *IgnoreMatcher) Add(rawPatterns ...string) {
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if strings.HasSuffix(raw, "/") {
			p.dirOnly = true
			raw = strings.TrimRight(raw, "/")
		}
		raw = strings.TrimPrefix(raw, "/")
		if _, err := path.Match(raw, ""); err != nil {
			continue
		}
		p.pattern = raw
		p.matchPath = strings.Contains(raw, "/")
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether the slash-separated relative path should be
// ignored. isDir selects whether directory-only patterns apply.
func (m *IgnoreMatcher) Match(relativePath string, isDir bool) bool {
	if relativePath == "" {
		return false
	}
	basename := path.Base(relativePath)

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		subject := basename
		if p.matchPath {
			subject = relativePath
		}
		if ok, _ := path.Match(p.pattern, subject); ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads an ignore file and returns the raw pattern strings.
// Returns nil and no error if the file does not exist.
func ParseIgnoreFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
