package shelf

import "errors"

// Errors returned by the engine. Callers match them with errors.Is; the
// wrapped message carries the offending path or entity.
var (
	// ErrNotFound means the path or entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means the destination already exists or a unique
	// constraint would be violated.
	ErrConflict = errors.New("conflict")

	// ErrInvalidPath covers malformed paths, cyclic moves, missing or
	// non-folder parents and illegal trash crossings.
	ErrInvalidPath = errors.New("invalid path")

	// ErrMountConflict means a write would cross into or out of a mount.
	ErrMountConflict = errors.New("mount conflict")

	// ErrQuotaExceeded means the owning account has no room for the write.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrPermissionDenied means the grant does not allow the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTooLarge means an upload exceeds the configured maximum size.
	ErrTooLarge = errors.New("content too large")
)
