// Package fs walks local directory trees for bulk import.
package fs

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"
)

// Entry is one directory or regular file found by Walk.
type Entry struct {
	// RelPath is slash-separated and relative to the walk root.
	RelPath string
	AbsPath string
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// WalkStats counts what Walk passed over.
type WalkStats struct {
	Ignored int // matched an ignore pattern
	Special int // symlinks, devices, pipes and sockets
}

// Walk visits every directory and regular file under root in lexical order,
// parents before children. The root itself is not visited. Patterns from
// extra and from root's .shelfignore are applied; ignored directories are
// pruned. Returning fs.SkipDir from fn for a directory skips it.
func Walk(root string, extra []string, fn func(Entry) error) (*WalkStats, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	fileRules, err := ParseIgnoreFile(filepath.Join(absRoot, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(defaultIgnorePatterns)
	matcher.Add(extra...)
	matcher.Add(fileRules...)

	stats := &WalkStats{}
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == absRoot {
			if !d.IsDir() {
				return fmt.Errorf("path is not a directory: %s", absRoot)
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !d.IsDir() && !d.Type().IsRegular() {
			stats.Special++
			return nil
		}
		if matcher.Match(rel, d.IsDir()) {
			stats.Ignored++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		entry := Entry{RelPath: rel, AbsPath: p, IsDir: d.IsDir(), ModTime: info.ModTime()}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		return fn(entry)
	})
	if err != nil {
		return stats, fmt.Errorf("walking directory: %w", err)
	}
	return stats, nil
}
