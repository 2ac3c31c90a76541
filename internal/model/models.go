package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// MediaTypeFolder is the media type recorded for directory nodes.
const MediaTypeFolder = "application/directory"

// User is an account holder. Authentication lives outside this module.
type User struct {
	ID        string // UUID
	Username  string // Unique, case-insensitive
	CreatedAt time.Time
}

// Account carries per-user storage accounting.
type Account struct {
	ID           string
	UserID       string
	StorageQuota sql.NullInt64 // NULL = unlimited
	UsedBytes    int64
	CreatedAt    time.Time
}

// Namespace is the root of one user's logical tree.
type Namespace struct {
	ID        string
	Path      string // Equal to the owner's username
	OwnerID   string
	CreatedAt time.Time
}

// File is a node (regular file or folder) in exactly one namespace.
type File struct {
	ID          string
	NamespaceID string
	Name        string
	Path        string // Display path, "." for the namespace root
	PathKey     string // Case-folded Path, unique per namespace
	ParentKey   string // Case-folded parent path, "" for the root
	Size        int64
	ContentHash string // "" for folders and empty files
	MediaType   string
	ModifiedAt  time.Time
	TrashedFrom sql.NullString // Original path, set on trash roots only
	TrashedAt   sql.NullTime
}

// IsFolder reports whether the node is a directory.
func (f *File) IsFolder() bool {
	return f.MediaType == MediaTypeFolder
}

// IsTrashed reports whether the node carries a trash record.
func (f *File) IsTrashed() bool {
	return f.TrashedFrom.Valid
}

// Fingerprint is the four-part perceptual hash of a file's content.
type Fingerprint struct {
	FileID string
	Part1  int16
	Part2  int16
	Part3  int16
	Part4  int16
}

// NewFingerprint splits a 64-bit perceptual hash into its four parts.
// Part1 holds the lowest 16 bits.
func NewFingerprint(fileID string, value uint64) *Fingerprint {
	return &Fingerprint{
		FileID: fileID,
		Part1:  int16(uint16(value)),
		Part2:  int16(uint16(value >> 16)),
		Part3:  int16(uint16(value >> 32)),
		Part4:  int16(uint16(value >> 48)),
	}
}

// Value reassembles the 64-bit hash from its parts.
func (fp *Fingerprint) Value() uint64 {
	return uint64(uint16(fp.Part1)) |
		uint64(uint16(fp.Part2))<<16 |
		uint64(uint16(fp.Part3))<<32 |
		uint64(uint16(fp.Part4))<<48
}

// Parts returns the four parts in index order.
func (fp *Fingerprint) Parts() [4]int16 {
	return [4]int16{fp.Part1, fp.Part2, fp.Part3, fp.Part4}
}

// ContentMetadata is what was read from a file's content.
type ContentMetadata struct {
	FileID    string
	Data      Exif
	UpdatedAt time.Time
}

// Exif holds the camera details tracked for photos. Missing tags are left
// at their zero value.
type Exif struct {
	Make            string     `json:"make,omitempty"`
	Model           string     `json:"model,omitempty"`
	FocalLength     int        `json:"focal_length,omitempty"`
	FocalLength35mm int        `json:"focal_length_35mm,omitempty"`
	FNumber         string     `json:"fnumber,omitempty"`
	Exposure        string     `json:"exposure,omitempty"`
	ISO             string     `json:"iso,omitempty"`
	TakenAt         *time.Time `json:"dt_original,omitempty"`
	DigitizedAt     *time.Time `json:"dt_digitized,omitempty"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
}

// Action is a bitmask of operations a FileMember may perform.
type Action int64

const (
	ActionRead Action = 1 << iota
	ActionWrite
	ActionReshare

	ActionAll = ActionRead | ActionWrite | ActionReshare
)

// Has reports whether every bit of want is granted.
func (a Action) Has(want Action) bool {
	return a&want == want
}

// String renders the mask as read/write/re-share flags, e.g. "rw-".
func (a Action) String() string {
	b := []byte("---")
	if a.Has(ActionRead) {
		b[0] = 'r'
	}
	if a.Has(ActionWrite) {
		b[1] = 'w'
	}
	if a.Has(ActionReshare) {
		b[2] = 's'
	}
	return string(b)
}

// ParseAction parses the flags written by String, e.g. "rw-" or "rs".
// Dashes are ignored.
func ParseAction(s string) (Action, error) {
	var a Action
	for _, c := range s {
		switch c {
		case 'r':
			a |= ActionRead
		case 'w':
			a |= ActionWrite
		case 's':
			a |= ActionReshare
		case '-':
		default:
			return 0, fmt.Errorf("unknown action flag %q in %q", c, s)
		}
	}
	return a, nil
}

// FileMember grants a File to another user.
type FileMember struct {
	ID        string
	FileID    string
	UserID    string
	Actions   Action
	CreatedAt time.Time
}

// MountPoint is where a FileMember appears inside the grantee's namespace.
type MountPoint struct {
	ID          string
	MemberID    string
	ParentID    string // Folder in the grantee's namespace
	DisplayName string
}

// DisplayKey is the case-folded display name.
func (mp *MountPoint) DisplayKey() string {
	return strings.ToLower(mp.DisplayName)
}

// Mount joins a MountPoint with everything needed to resolve through it.
type Mount struct {
	Point  MountPoint
	Member FileMember
	// Parent is the grantee folder holding the mount point.
	Parent File
	// Shared is the grantor's file the mount aliases.
	Shared File
	// SharedNamespace is the namespace owning Shared.
	SharedNamespace Namespace
}

// FilePendingDeletion is queued physical content awaiting purge.
type FilePendingDeletion struct {
	ID            string
	NamespacePath string
	Path          string
	ContentHash   string
	MediaType     string
	CreatedAt     time.Time
}

// AuditEntity is one entity affected by an audited action.
type AuditEntity struct {
	Type string // "file", "user", "namespace"
	ID   string
	Name string
	Path string
}

// AuditTrail is an immutable log entry.
type AuditTrail struct {
	ID        string
	Action    string
	UserID    sql.NullString
	Username  string // Filled on read when the user still exists
	Entities  []AuditEntity
	CreatedAt time.Time
}
