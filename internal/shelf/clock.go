package shelf

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so trash suffixes, audit timestamps and
// pending-deletion records are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts entity ID generation.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces time-ordered UUIDv7 identifiers, falling back to
// random v4 if the v7 generator fails.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
