package shelf

import (
	"fmt"
	"strings"
	"unicode"
)

// RootPath is the canonical path of a namespace root.
const RootPath = "."

// TrashName is the name of the hidden trash root in every namespace.
const TrashName = "Trash"

const maxSegmentLength = 255

// NormalizePath canonicalizes a user-supplied path. Leading, trailing and
// repeated slashes are dropped, "." segments are skipped and the empty path
// is the root. ".." segments, NUL bytes, blank and overlong segments are
// rejected with ErrInvalidPath. Case is preserved.
func NormalizePath(raw string) (string, error) {
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: %q contains NUL", ErrInvalidPath, raw)
	}

	segments := make([]string, 0, strings.Count(raw, "/")+1)
	for _, seg := range strings.Split(raw, "/") {
		switch {
		case seg == "" || seg == ".":
			continue
		case seg == "..":
			return "", fmt.Errorf("%w: %q contains '..'", ErrInvalidPath, raw)
		case strings.TrimFunc(seg, unicode.IsSpace) == "":
			return "", fmt.Errorf("%w: %q has a blank segment", ErrInvalidPath, raw)
		case len(seg) > maxSegmentLength:
			return "", fmt.Errorf("%w: segment longer than %d bytes", ErrInvalidPath, maxSegmentLength)
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return RootPath, nil
	}
	return strings.Join(segments, "/"), nil
}

// PathKey returns the case-folded lookup key of a canonical path.
func PathKey(p string) string {
	return strings.ToLower(p)
}

// ParentPath returns the parent of p. The root has no parent and yields "".
func ParentPath(p string) string {
	if p == RootPath || p == "" {
		return ""
	}
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return RootPath
	}
	return p[:i]
}

// BaseName returns the last segment of p.
func BaseName(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}

// JoinPath appends name to dir.
func JoinPath(dir, name string) string {
	if dir == RootPath || dir == "" {
		return name
	}
	if name == "" || name == RootPath {
		return dir
	}
	return dir + "/" + name
}

// IsWithin reports whether p equals dir or lies beneath it, ignoring case.
func IsWithin(p, dir string) bool {
	if dir == RootPath {
		return true
	}
	pk, dk := PathKey(p), PathKey(dir)
	return pk == dk || strings.HasPrefix(pk, dk+"/")
}

// IsStrictlyWithin reports whether p lies beneath dir and is not dir itself.
func IsStrictlyWithin(p, dir string) bool {
	return IsWithin(p, dir) && PathKey(p) != PathKey(dir)
}

// ReplacePrefix rewrites p, which must lie within oldPrefix, so that it lies
// within newPrefix instead. Relative structure is preserved.
func ReplacePrefix(p, oldPrefix, newPrefix string) string {
	if oldPrefix == RootPath {
		return JoinPath(newPrefix, p)
	}
	return JoinPath(newPrefix, strings.TrimPrefix(p[len(oldPrefix):], "/"))
}

// Prefixes returns p and each of its ancestors below the root, longest first.
func Prefixes(p string) []string {
	if p == RootPath {
		return nil
	}
	prefixes := []string{p}
	for i := len(p) - 1; i > 0; i-- {
		if p[i] == '/' {
			prefixes = append(prefixes, p[:i])
		}
	}
	return prefixes
}

// SplitExt splits a file name into stem and extension. Dotfiles without a
// further dot have no extension.
func SplitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}

// WithStemSuffix appends suffix to the stem of the last segment of p,
// keeping its extension: "a/photo.jpg" + " (1)" is "a/photo (1).jpg".
func WithStemSuffix(p, suffix string) string {
	stem, ext := SplitExt(BaseName(p))
	return JoinPath(ParentPath(p), stem+suffix+ext)
}
