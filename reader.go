package coltable

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/kernels"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reader instances can plan and read ranges of rows from a file.
type Reader struct {
	r     io.ReaderAt
	o     *ReaderOptions
	limit uint64 // end of the data region

	ps      Postscript
	footer  *Footer
	schema  *Schema
	columns []*Layout
}

// Open reads the metadata of a file and returns a reader.
func Open(r io.ReaderAt, size int64, o *ReaderOptions) (*Reader, error) {
	return NewOpener(r, size, o).Open()
}

// Schema returns the file's schema.
func (r *Reader) Schema() *Schema { return r.schema }

// Footer returns the file's footer.
func (r *Reader) Footer() *Footer { return r.footer }

// Postscript returns the file's trailer.
func (r *Reader) Postscript() Postscript { return r.ps }

// NumRows returns the number of rows.
func (r *Reader) NumRows() uint64 { return r.footer.RowCount }

// Column returns the layout of a column.
func (r *Reader) Column(col int) (*Layout, error) {
	if _, err := r.field(col); err != nil {
		return nil, err
	}
	return r.columns[col], nil
}

// Plan returns the byte ranges that must be fetched to read rows [lo, hi)
// of a column.
func (r *Reader) Plan(col int, lo, hi uint64) ([]Buffer, error) {
	f, spans, err := r.spans(col, lo, hi, nil)
	if err != nil {
		return nil, err
	}

	size := uint64(f.Type.Size())
	var plan []Buffer
	for _, s := range spans {
		if s.node.Encoding == Plain && len(s.node.Buffers) == 1 {
			b := s.node.Buffers[0]
			plan = append(plan, Buffer{Begin: b.Begin + s.lo*size, End: b.Begin + s.hi*size})
			continue
		}

		_ = s.node.Walk(func(n *Layout, _ int) error {
			plan = append(plan, n.Buffers...)
			return nil
		})
	}
	return plan, nil
}

// ReadColumn reads rows [lo, hi) of a column and returns their values in
// little-endian order. Chunks are fetched and decoded concurrently.
func (r *Reader) ReadColumn(ctx context.Context, col int, lo, hi uint64) ([]byte, error) {
	f, err := r.field(col)
	if err != nil {
		return nil, err
	}
	if err := r.checkRange(lo, hi); err != nil {
		return nil, err
	}

	dst, err := r.alloc(hi-lo, f.Type)
	if err != nil {
		return nil, err
	}

	_, spans, err := r.spans(col, lo, hi, dst)
	if err != nil {
		return nil, err
	}

	r.o.Logger.Debug("coltable read",
		zap.String("column", f.Name),
		zap.Uint64("lo", lo),
		zap.Uint64("hi", hi),
		zap.Int("spans", len(spans)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.Concurrency)
	for _, s := range spans {
		g.Go(func() error {
			return r.decode(gctx, s, f.Type)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// ReadColumns reads rows [lo, hi) of several columns concurrently. The
// result holds one value slice per requested column.
func (r *Reader) ReadColumns(ctx context.Context, cols []int, lo, hi uint64) ([][]byte, error) {
	for _, col := range cols {
		if _, err := r.field(col); err != nil {
			return nil, err
		}
	}

	out := make([][]byte, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	for i, col := range cols {
		g.Go(func() (err error) {
			out[i], err = r.ReadColumn(gctx, col, lo, hi)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Take reads the rows at the given indices of a column and returns their
// values in the order of indices. Indices may repeat and need not be
// sorted. Only chunks that hold at least one index are fetched, and only
// the covered part of plain chunks is read.
func (r *Reader) Take(ctx context.Context, col int, indices []uint64) ([]byte, error) {
	f, spans, err := r.spans(col, 0, r.NumRows(), nil)
	if err != nil {
		return nil, err
	}
	for _, i := range indices {
		if i >= r.NumRows() {
			return nil, fmt.Errorf("coltable: index %d out of range [0, %d)", i, r.NumRows())
		}
	}

	dst, err := r.alloc(uint64(len(indices)), f.Type)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(indices))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return indices[order[a]] < indices[order[b]] })

	r.o.Logger.Debug("coltable take",
		zap.String("column", f.Name),
		zap.Int("indices", len(indices)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.Concurrency)

	var start uint64
	pos := 0
	for _, s := range spans {
		end := start + s.rows
		first := pos
		for pos < len(order) && indices[order[pos]] < end {
			pos++
		}
		if pos > first {
			picks, base := order[first:pos], start
			g.Go(func() error {
				return r.take(gctx, s, f.Type, base, indices, picks, dst)
			})
		}
		start = end
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dst, nil
}

// take copies the picked values of s into their slots of dst. Picks are
// sorted by index and base is the first row of s.
func (r *Reader) take(ctx context.Context, s span, t PType, base uint64, indices []uint64, picks []int, dst []byte) error {
	s.lo = indices[picks[0]] - base
	s.hi = indices[picks[len(picks)-1]] - base + 1

	src, err := r.decodeSpan(ctx, s, t)
	if err != nil {
		return err
	}
	defer boundary.Free(src)

	size := uint64(t.Size())
	for _, k := range picks {
		off := (indices[k] - base - s.lo) * size
		copy(dst[uint64(k)*size:], src[off:off+size])
	}
	return nil
}

// ReadValues reads rows [lo, hi) of a column as typed values. T must match
// the column's type.
func ReadValues[T Value](ctx context.Context, r *Reader, col int, lo, hi uint64) ([]T, error) {
	if _, err := typedField[T](r, col); err != nil {
		return nil, err
	}

	p, err := r.ReadColumn(ctx, col, lo, hi)
	if err != nil {
		return nil, err
	}
	return decodeValues[T](p)
}

// TakeValues reads the rows at the given indices of a column as typed
// values. T must match the column's type.
func TakeValues[T Value](ctx context.Context, r *Reader, col int, indices []uint64) ([]T, error) {
	if _, err := typedField[T](r, col); err != nil {
		return nil, err
	}

	p, err := r.Take(ctx, col, indices)
	if err != nil {
		return nil, err
	}
	return decodeValues[T](p)
}

func typedField[T Value](r *Reader, col int) (Field, error) {
	f, err := r.field(col)
	if err != nil {
		return f, err
	}
	if want := ptypeOf[T](); f.Type != want {
		return f, fmt.Errorf("coltable: column %q holds %s values, not %s", f.Name, f.Type, want)
	}
	return f, nil
}

func decodeValues[T Value](p []byte) ([]T, error) {
	var zero T
	vals := make([]T, len(p)/binary.Size(zero))
	if _, err := binary.Decode(p, binary.LittleEndian, vals); err != nil {
		return nil, err
	}
	return vals, nil
}

func (r *Reader) checkRange(lo, hi uint64) error {
	if lo > hi || hi > r.NumRows() {
		return fmt.Errorf("coltable: rows [%d, %d) out of range [0, %d)", lo, hi, r.NumRows())
	}
	return nil
}

// alloc returns memory for n values of type t.
func (r *Reader) alloc(n uint64, t PType) ([]byte, error) {
	size := uint64(t.Size())
	if n > uint64(math.MaxInt)/size {
		return nil, fmt.Errorf("coltable: %d %s values exceed the address space", n, t)
	}
	return make([]byte, n*size), nil
}

func (r *Reader) field(col int) (Field, error) {
	if col < 0 || col >= len(r.schema.Fields) {
		return Field{}, fmt.Errorf("coltable: column %d out of range [0, %d)", col, len(r.schema.Fields))
	}
	return r.schema.Fields[col], nil
}

// --------------------------------------------------------------------

// span is a run of rows [lo, hi) within a node that holds values.
type span struct {
	node   *Layout
	rows   uint64 // rows in node
	lo, hi uint64
	dst    []byte
}

func (r *Reader) spans(col int, lo, hi uint64, dst []byte) (Field, []span, error) {
	f, err := r.field(col)
	if err != nil {
		return f, nil, err
	}
	if err := r.checkRange(lo, hi); err != nil {
		return f, nil, err
	}

	var spans []span
	if err := collect(r.columns[col], r.NumRows(), lo, hi, uint64(f.Type.Size()), dst, &spans); err != nil {
		return f, nil, err
	}
	return f, spans, nil
}

// collect descends through chunks and appends the spans that overlap
// rows [lo, hi). When dst is set, each span receives its slice of dst.
func collect(node *Layout, rows, lo, hi, size uint64, dst []byte, spans *[]span) error {
	if lo == hi {
		return nil
	}
	if node.Encoding != Chunked {
		*spans = append(*spans, span{node: node, rows: rows, lo: lo, hi: hi, dst: dst})
		return nil
	}

	if n, err := numRows(node); err != nil {
		return err
	} else if n != rows {
		return formatErrorf("layout", 0, "chunks hold %d rows, expected %d", n, rows)
	}

	counts, _ := parseChunkRows(node.Metadata, len(node.Children))
	var start uint64
	for i, n := range counts {
		end := start + n
		if end > lo && start < hi {
			a, b := max(lo, start), min(hi, end)

			var sub []byte
			if dst != nil {
				sub = dst[(a-lo)*size : (b-lo)*size]
			}
			if err := collect(node.Children[i], n, a-start, b-start, size, sub, spans); err != nil {
				return err
			}
		}
		if start = end; start >= hi {
			break
		}
	}
	return nil
}

// leaf parses the metadata of a span's node and checks it against the
// column and the chunk limit.
func (r *Reader) leaf(s span, t PType) (leafMeta, error) {
	enc := s.node.Encoding
	switch enc {
	case Plain, BitPacked, ALP, Snappy, Zstd, LZ4:
	default:
		return leafMeta{}, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}

	m, err := parseLeafMeta(enc, s.node.Metadata)
	if err != nil {
		return m, err
	}
	if m.PType != t || m.Rows != s.rows {
		return m, formatErrorf("metadata", 0, "%s node holds %d %s values, expected %d %s", enc, m.Rows, m.PType, s.rows, t)
	}
	return m, checkChunkSize(enc, m, r.o.MaxChunkBytes)
}

func (r *Reader) decode(ctx context.Context, s span, t PType) error {
	m, err := r.leaf(s, t)
	if err != nil {
		return err
	}

	size := uint64(t.Size())
	if s.node.Encoding == Plain {
		b, err := r.dataBuffer(s.node, m.Rows*size)
		if err != nil {
			return err
		}
		return r.readInto(ctx, s.dst, b.Begin+s.lo*size)
	}

	out, err := r.decodeNode(ctx, s.node, m, m.Rows*size)
	if err != nil {
		return err
	}
	defer boundary.Free(out)

	copy(s.dst, out[s.lo*size:s.hi*size])
	return nil
}

// decodeSpan returns rows [s.lo, s.hi) of a span in aligned memory, which
// must be released with boundary.Free. Plain nodes are read in part, other
// nodes are decoded in full.
func (r *Reader) decodeSpan(ctx context.Context, s span, t PType) ([]byte, error) {
	m, err := r.leaf(s, t)
	if err != nil {
		return nil, err
	}

	size := uint64(t.Size())
	if s.node.Encoding == Plain {
		b, err := r.dataBuffer(s.node, m.Rows*size)
		if err != nil {
			return nil, err
		}
		return r.fetch(ctx, Buffer{Begin: b.Begin + s.lo*size, End: b.Begin + s.hi*size})
	}

	out, err := r.decodeNode(ctx, s.node, m, m.Rows*size)
	if err != nil || (s.lo == 0 && s.hi == m.Rows) {
		return out, err
	}
	defer boundary.Free(out)

	p := boundary.Alloc(int((s.hi - s.lo) * size))
	copy(p, out[s.lo*size:s.hi*size])
	return p, nil
}

// decodeNode decodes every value of a node into n bytes of aligned memory.
// Inputs are fetched and checked before the output is allocated. The
// result must be released with boundary.Free.
func (r *Reader) decodeNode(ctx context.Context, node *Layout, m leafMeta, n uint64) ([]byte, error) {
	switch node.Encoding {
	case BitPacked:
		b, err := r.dataBuffer(node, kernels.PackedSize(m.Rows, m.Width))
		if err != nil {
			return nil, err
		}
		in, err := r.fetch(ctx, b)
		if err != nil {
			return nil, err
		}
		defer boundary.Free(in)

		out := boundary.Alloc(int(n))
		res := kernels.UnpackBits(boundary.InitFromBytes(in), m.PType.Bits(), m.Width, m.Rows, boundary.InitFromBytes(out))
		return r.result(out, b, node.Encoding, res.Err(), res.Buffer.Buffer.Len)

	case Snappy, Zstd, LZ4:
		b, err := r.dataBuffer(node, 0)
		if err != nil {
			return nil, err
		}
		in, err := r.fetch(ctx, b)
		if err != nil {
			return nil, err
		}
		defer boundary.Free(in)

		if err := checkDecodedLen(node.Encoding, b, in, n); err != nil {
			return nil, err
		}

		out := boundary.Alloc(int(n))
		res := kernels.Decompress(codecOf(node.Encoding), boundary.InitFromBytes(in), boundary.InitFromBytes(out))
		return r.result(out, b, node.Encoding, res.Err(), res.Buffer.Buffer.Len)

	case ALP:
		if len(node.Children) != 2 {
			return nil, formatErrorf("layout", 0, "alp node has %d children, expected 2", len(node.Children))
		}

		vm, err := parseLeafMeta(Plain, node.Children[0].Metadata)
		if err != nil {
			return nil, err
		}
		em, err := parseLeafMeta(Plain, node.Children[1].Metadata)
		if err != nil {
			return nil, err
		}
		if vm.PType != Int64 || vm.Rows != m.Rows || em.PType != Uint64 || em.Rows%2 != 0 || em.Rows/2 > m.Rows {
			return nil, formatErrorf("metadata", 0, "malformed alp children")
		}

		vb, err := r.dataBuffer(node.Children[0], vm.Rows*8)
		if err != nil {
			return nil, err
		}
		eb, err := r.dataBuffer(node.Children[1], em.Rows*8)
		if err != nil {
			return nil, err
		}

		vals, err := r.fetch(ctx, vb)
		if err != nil {
			return nil, err
		}
		defer boundary.Free(vals)

		excs, err := r.fetch(ctx, eb)
		if err != nil {
			return nil, err
		}
		defer boundary.Free(excs)

		out := boundary.Alloc(int(n))
		res := kernels.DecodeALP(boundary.InitFromBytes(vals), boundary.InitFromBytes(excs), m.Exp, boundary.InitFromBytes(out))
		return r.result(out, vb, node.Encoding, res.Err(), res.Buffer.Buffer.Len)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, node.Encoding)
}

// result returns out when a kernel decoded all of it and releases it
// otherwise.
func (r *Reader) result(out []byte, b Buffer, enc Encoding, err error, n uint64) ([]byte, error) {
	if err := r.check(b, enc, err, n, uint64(len(out))); err != nil {
		boundary.Free(out)
		return nil, err
	}
	return out, nil
}

// check converts a failed or short kernel result into a FormatError.
func (r *Reader) check(b Buffer, enc Encoding, err error, n, want uint64) error {
	if err != nil {
		return &FormatError{Section: "data", Offset: int64(b.Begin), Detail: "cannot decode " + enc.String(), Cause: err}
	}
	if n != want {
		return formatErrorf("data", int64(b.Begin), "%s decoded to %d bytes, expected %d", enc, n, want)
	}
	return nil
}

// dataBuffer returns the single buffer of a node. When size is non-zero,
// the buffer must be exactly that long.
func (r *Reader) dataBuffer(node *Layout, size uint64) (Buffer, error) {
	if len(node.Buffers) != 1 {
		return Buffer{}, formatErrorf("layout", 0, "%s node has %d buffers, expected 1", node.Encoding, len(node.Buffers))
	}

	b := node.Buffers[0]
	if b.Begin > b.End || b.End > r.limit {
		return Buffer{}, formatErrorf("layout", 0, "buffer %s exceeds the data region of %d bytes", b, r.limit)
	}
	if size != 0 && b.Len() != size {
		return Buffer{}, formatErrorf("data", int64(b.Begin), "buffer of %d bytes, expected %d", b.Len(), size)
	}
	return b, nil
}

// fetch reads a buffer into aligned memory. The memory must be released
// with boundary.Free.
func (r *Reader) fetch(ctx context.Context, b Buffer) ([]byte, error) {
	p := boundary.Alloc(int(b.Len()))
	if err := r.readInto(ctx, p, b.Begin); err != nil {
		boundary.Free(p)
		return nil, err
	}
	return p, nil
}

func (r *Reader) readInto(ctx context.Context, p []byte, offset uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := readAt(r.r, "data", p, int64(offset)); err != nil {
		return err
	}
	ReadBytesTotal.Add(float64(len(p)))
	return nil
}

// checkDecodedLen compares the size a compressed buffer decodes to with
// the size its metadata declares, before anything is decompressed. Snappy
// and zstd frames carry their size; lz4 blocks are bounded by the maximum
// ratio of the format. Unreadable headers are left to the decode kernel.
func checkDecodedLen(enc Encoding, b Buffer, in []byte, want uint64) error {
	var n uint64
	switch enc {
	case Snappy:
		size, err := snappy.DecodedLen(in)
		if err != nil {
			return nil
		}
		n = uint64(size)

	case Zstd:
		var h zstd.Header
		if err := h.Decode(in); err != nil || !h.HasFCS {
			return nil
		}
		n = h.FrameContentSize

	case LZ4:
		if want > uint64(len(in))*lz4MaxRatio {
			return formatErrorf("data", int64(b.Begin), "lz4 data of %d bytes cannot decode to %d bytes", len(in), want)
		}
		return nil

	default:
		return nil
	}

	if n != want {
		return formatErrorf("data", int64(b.Begin), "%s data decodes to %d bytes, expected %d", enc, n, want)
	}
	return nil
}

const lz4MaxRatio = 255
