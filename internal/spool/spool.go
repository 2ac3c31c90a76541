// Package spool buffers uploads so their content hash, size and media type
// are known before the engine reserves quota or writes storage.
package spool

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"shelf-go/internal/chash"
	"shelf-go/internal/shelf"
)

// sniffLen is how much leading content is kept for media-type detection.
const sniffLen = 3072

// defaultMediaType is recorded for empty content.
const defaultMediaType = "application/octet-stream"

// buffer holds one upload. Writes happen before Seal; Open may be called
// any number of times after it.
type buffer interface {
	io.Writer
	Seal() error
	Open() (io.ReadCloser, error)
	Remove() error
}

// bufferStore creates buffers. The memory and filesystem spools differ only
// in this.
type bufferStore interface {
	NewBuffer() (buffer, error)
}

// spool implements shelf.Spool on top of a bufferStore. All shared logic
// lives here.
type spool struct {
	store   bufferStore
	maxSize int64 // 0 means unlimited
}

var _ shelf.Spool = (*spool)(nil)

// Stage copies r into a new buffer while hashing it and sniffing its media
// type. Content beyond the maximum size fails with shelf.ErrTooLarge.
func (s *spool) Stage(ctx context.Context, r io.Reader) (shelf.Spooled, error) {
	buf, err := s.store.NewBuffer()
	if err != nil {
		return nil, fmt.Errorf("creating spool buffer: %w", err)
	}

	src := io.Reader(&contextReader{ctx: ctx, r: r})
	if s.maxSize > 0 {
		src = io.LimitReader(src, s.maxSize+1)
	}

	hasher := chash.New()
	head := &headWriter{limit: sniffLen}
	n, err := io.Copy(io.MultiWriter(buf, hasher, head), src)
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = fmt.Errorf("%w: exceeds %d bytes", shelf.ErrTooLarge, s.maxSize)
	}
	if err == nil {
		err = buf.Seal()
	}
	if err != nil {
		buf.Remove()
		return nil, err
	}

	return &spooled{
		hash:      hasher.Sum(),
		size:      n,
		mediaType: detectMediaType(head.data, n),
		buf:       buf,
	}, nil
}

func detectMediaType(head []byte, size int64) string {
	if size == 0 {
		return defaultMediaType
	}
	mt, _, _ := strings.Cut(mimetype.Detect(head).String(), ";")
	return strings.TrimSpace(mt)
}

// spooled is content held in a buffer until Release.
type spooled struct {
	hash      string
	size      int64
	mediaType string
	buf       buffer

	once sync.Once
	err  error
}

func (c *spooled) ContentHash() string { return c.hash }
func (c *spooled) Size() int64         { return c.size }
func (c *spooled) MediaType() string   { return c.mediaType }

func (c *spooled) Open() (io.ReadCloser, error) {
	return c.buf.Open()
}

// Release frees the buffer. Later calls are no-ops.
func (c *spooled) Release() error {
	c.once.Do(func() { c.err = c.buf.Remove() })
	return c.err
}

// headWriter keeps the first limit bytes written to it.
type headWriter struct {
	limit int
	data  []byte
}

func (h *headWriter) Write(p []byte) (int, error) {
	if room := h.limit - len(h.data); room > 0 {
		h.data = append(h.data, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
