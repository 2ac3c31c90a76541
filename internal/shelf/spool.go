package shelf

import (
	"context"
	"io"
)

// Spool buffers incoming content so that its hash, size and media type are
// known before any quota or storage mutation happens.
type Spool interface {
	Stage(ctx context.Context, r io.Reader) (Spooled, error)
}

// Spooled is content held by a Spool until Release.
type Spooled interface {
	ContentHash() string
	Size() int64
	MediaType() string

	// Open returns a fresh reader over the content. It may be called more
	// than once.
	Open() (io.ReadCloser, error)

	// Release frees the buffered content.
	Release() error
}
