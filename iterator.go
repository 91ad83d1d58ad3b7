package coltable

import (
	"context"

	"github.com/bsm/coltable/boundary"
)

// ChunkIterator iterates over the chunks of a column, decoding one chunk
// at a time.
type ChunkIterator struct {
	ctx   context.Context
	r     *Reader
	t     PType
	spans []span

	pos int    // the current span
	row uint64 // first row of the current chunk
	val []byte // decoded values of the current chunk

	err error
}

// Chunks returns an iterator over all chunks of a column.
func (r *Reader) Chunks(ctx context.Context, col int) (*ChunkIterator, error) {
	f, spans, err := r.spans(col, 0, r.NumRows(), nil)
	if err != nil {
		return nil, err
	}
	return &ChunkIterator{ctx: ctx, r: r, t: f.Type, spans: spans, pos: -1}, nil
}

// Row returns the index of the first row of the current chunk.
func (i *ChunkIterator) Row() uint64 { return i.row }

// Value returns the little-endian values of the current chunk. Values are
// temporary buffers and must be copied if used beyond the next cursor move.
func (i *ChunkIterator) Value() []byte { return i.val }

// Next decodes the next chunk and returns true if successful.
func (i *ChunkIterator) Next() bool {
	if i.err != nil || i.pos+1 >= len(i.spans) {
		return false
	}

	if i.pos >= 0 {
		prev := i.spans[i.pos]
		i.row += prev.hi - prev.lo
	}
	i.pos++

	i.release()
	if i.val, i.err = i.r.decodeSpan(i.ctx, i.spans[i.pos], i.t); i.err != nil {
		return false
	}
	return true
}

// Err exposes iterator errors, if any.
func (i *ChunkIterator) Err() error {
	if i.err == errReleased {
		return nil
	}
	return i.err
}

// Release releases the iterator and frees up resources. The iterator must
// not be used after this method is called.
func (i *ChunkIterator) Release() {
	i.release()
	if i.err == nil {
		i.err = errReleased
	}
}

func (i *ChunkIterator) release() {
	if i.val != nil {
		boundary.Free(i.val)
		i.val = nil
	}
}
