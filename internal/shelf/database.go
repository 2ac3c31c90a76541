package shelf

import (
	"context"
	"database/sql"
	"time"

	"shelf-go/internal/model"
)

// Database is the persistence substrate. Lookups return (nil, nil) when the
// row does not exist. Mutating methods that touch more than one row run in a
// single transaction and either apply fully or not at all; structural
// failures are reported with ErrConflict, ErrInvalidPath or ErrNotFound.
type Database interface {
	// Users, accounts and namespaces

	// CreateUser inserts the user, its account, its namespace and the
	// namespace's root and trash folders.
	CreateUser(ctx context.Context, p CreateUserParams) error

	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)

	// DeleteUser removes the user and everything it owns. Stored content of
	// removed files is queued as pending deletions, which are returned.
	DeleteUser(ctx context.Context, userID string) ([]*model.FilePendingDeletion, error)

	FindNamespaceByPath(ctx context.Context, path string) (*model.Namespace, error)
	FindNamespaceByID(ctx context.Context, id string) (*model.Namespace, error)

	FindAccountByUserID(ctx context.Context, userID string) (*model.Account, error)
	SetAccountQuota(ctx context.Context, accountID string, quota sql.NullInt64) error

	// ReserveQuota adds bytes to the account's usage if the result stays
	// within its quota. The check and the update are a single statement.
	ReserveQuota(ctx context.Context, accountID string, bytes int64) (bool, error)

	// ReleaseQuota subtracts bytes from the account's usage, floored at zero.
	ReleaseQuota(ctx context.Context, accountID string, bytes int64) error

	// Files

	FindFile(ctx context.Context, namespaceID, pathKey string) (*model.File, error)
	FindFileByID(ctx context.Context, id string) (*model.File, error)

	// ListChildren returns up to limit immediate children of parentKey whose
	// path key sorts after afterKey, ordered by path key.
	ListChildren(ctx context.Context, namespaceID, parentKey, afterKey string, limit int) ([]*model.File, error)

	// CreateFile inserts f. Its parent must exist and be a folder, and
	// neither a file nor a mount point may occupy its path.
	CreateFile(ctx context.Context, f *model.File) error

	// MoveFile renames a node and rewrites the paths of all its descendants.
	MoveFile(ctx context.Context, p MoveFileParams) (*model.File, error)

	// DeleteFile removes a node and its subtree, queues their content for
	// physical deletion and releases their bytes from the account.
	DeleteFile(ctx context.Context, p DeleteFileParams) (*DeleteResult, error)

	// UpdateContentHash records a recomputed content hash.
	UpdateContentHash(ctx context.Context, fileID, contentHash string) error

	// ContentReferenced reports whether any file in the namespace still uses
	// the content hash.
	ContentReferenced(ctx context.Context, namespaceID, contentHash string) (bool, error)

	// Fingerprints

	SaveFingerprint(ctx context.Context, fp *model.Fingerprint) error
	FindFingerprint(ctx context.Context, fileID string) (*model.Fingerprint, error)

	// FindFilesByContentHash returns files in the namespace with the given
	// content hash, skipping anything at or below excludeKey.
	FindFilesByContentHash(ctx context.Context, namespaceID, contentHash, excludeKey string) ([]*model.File, error)

	// FindFingerprintCandidates returns fingerprinted files in the namespace
	// sharing at least one part with parts, skipping anything at or below
	// excludeKey.
	FindFingerprintCandidates(ctx context.Context, namespaceID string, parts [4]int16, excludeKey string) ([]*FingerprintedFile, error)

	// ListFingerprints returns every fingerprinted file at or below
	// prefixKey, skipping anything at or below excludeKey.
	ListFingerprints(ctx context.Context, namespaceID, prefixKey, excludeKey string) ([]*FingerprintedFile, error)

	// Content metadata

	SaveMetadata(ctx context.Context, m *model.ContentMetadata) error
	FindMetadata(ctx context.Context, fileID string) (*model.ContentMetadata, error)

	// Sharing

	// CreateShare inserts a grant together with its mount point.
	CreateShare(ctx context.Context, member *model.FileMember, point *model.MountPoint) error

	FindMember(ctx context.Context, fileID, userID string) (*model.FileMember, error)
	ListMembers(ctx context.Context, fileID string) ([]*model.FileMember, error)

	// FindMountsByParentKeys returns the mounts of the namespace whose parent
	// folder has one of the given path keys.
	FindMountsByParentKeys(ctx context.Context, namespaceID string, parentKeys []string) ([]*model.Mount, error)

	// FindMountsInFolder returns mounts spliced directly under a folder,
	// ordered by display key.
	FindMountsInFolder(ctx context.Context, parentID string) ([]*model.Mount, error)

	// UpdateMountPoint relocates or renames a mount point. The new parent
	// must be a folder and the new name must be free.
	UpdateMountPoint(ctx context.Context, pointID, parentID, displayName string) error

	// DeleteShare removes a grant and its mount point.
	DeleteShare(ctx context.Context, memberID string) error

	// Pending deletions

	CreatePendingDeletions(ctx context.Context, items []*model.FilePendingDeletion) error
	FindPendingDeletions(ctx context.Context, ids []string) ([]*model.FilePendingDeletion, error)
	ListPendingDeletions(ctx context.Context, limit int) ([]*model.FilePendingDeletion, error)
	DeletePendingDeletion(ctx context.Context, id string) error

	// Audit

	CreateAuditTrail(ctx context.Context, trail *model.AuditTrail) error

	// ListAuditTrails returns the user's most recent entries, newest first.
	ListAuditTrails(ctx context.Context, userID string, limit int) ([]*model.AuditTrail, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}

// CreateUserParams holds the rows created for a new user.
type CreateUserParams struct {
	User      *model.User
	Account   *model.Account
	Namespace *model.Namespace
	Root      *model.File
	Trash     *model.File
}

// TrashRecord marks a node moved into the trash.
type TrashRecord struct {
	From string
	At   time.Time
}

// MoveFileParams describes a subtree move within one namespace.
type MoveFileParams struct {
	NamespaceID string
	FromKey     string
	ToPath      string

	// Trash, when set, is recorded on the moved node.
	Trash *TrashRecord

	// ClearTrash removes any trash record from the moved node.
	ClearTrash bool
}

// DeleteFileParams describes a subtree deletion.
type DeleteFileParams struct {
	Namespace *model.Namespace
	AccountID string
	PathKey   string
	QueuedAt  time.Time

	// KeepRoot deletes only the descendants of PathKey.
	KeepRoot bool
}

// DeleteResult reports what a subtree deletion removed.
type DeleteResult struct {
	Root          *model.File
	Removed       int
	ReleasedBytes int64
	Pending       []*model.FilePendingDeletion
}

// FingerprintedFile pairs a file with its fingerprint.
type FingerprintedFile struct {
	File        *model.File
	Fingerprint *model.Fingerprint
}
