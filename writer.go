package coltable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/kernels"
	"go.uber.org/zap"
)

// WriterOptions define writer specific options.
type WriterOptions struct {
	// ChunkRows is the number of rows encoded together in a single chunk.
	// Default: 65536.
	ChunkRows int

	// Logger receives encoding fallbacks and a summary on close.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

func (o *WriterOptions) norm() *WriterOptions {
	var oo WriterOptions
	if o != nil {
		oo = *o
	}

	if oo.ChunkRows < 1 {
		oo.ChunkRows = 1 << 16
	}
	if oo.Logger == nil {
		oo.Logger = zap.NewNop()
	}
	return &oo
}

type column struct {
	field     Field
	pending   []byte    // values not yet encoded
	chunks    []*Layout // encoded chunks
	chunkRows []uint64  // rows per chunk
	rows      uint64
}

// Writer instances can write a file.
type Writer struct {
	w      io.Writer
	o      *WriterOptions
	schema *Schema
	cols   []*column

	offset uint64
	closed bool
}

// NewWriter wraps a writer and returns a Writer for the given schema.
func NewWriter(w io.Writer, schema *Schema, o *WriterOptions) (*Writer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	s := schema.norm()
	cols := make([]*column, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = &column{field: f}
	}
	return &Writer{w: w, o: o.norm(), schema: s, cols: cols}, nil
}

// Append appends little-endian encoded values to a column.
func (w *Writer) Append(col int, values []byte) error {
	c, err := w.column(col)
	if err != nil {
		return err
	}

	size := c.field.Type.Size()
	if len(values)%size != 0 {
		return fmt.Errorf("coltable: %d bytes is not a multiple of %d-byte %s values", len(values), size, c.field.Type)
	}
	c.pending = append(c.pending, values...)

	chunk, n := w.o.ChunkRows*size, 0
	for len(c.pending)-n >= chunk {
		if err = w.flush(c, c.pending[n:n+chunk]); err != nil {
			break
		}
		n += chunk
	}

	// drop flushed chunks, even on failure
	if n != 0 {
		c.pending = append(c.pending[:0], c.pending[n:]...)
	}
	return err
}

// Close flushes pending values and writes the schema, the footer and the
// postscript. Every column must hold the same number of rows.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	var rows uint64
	for i, c := range w.cols {
		if len(c.pending) != 0 {
			if err := w.flush(c, c.pending); err != nil {
				return err
			}
			c.pending = nil
		}

		if i == 0 {
			rows = c.rows
		} else if c.rows != rows {
			return fmt.Errorf("coltable: column %q has %d rows, expected %d", c.field.Name, c.rows, rows)
		}
	}

	footer := &Footer{RowCount: rows}
	if len(w.cols) != 0 {
		children := make([]*Layout, len(w.cols))
		for i, c := range w.cols {
			children[i] = NewLayout(Chunked, nil, c.chunks, appendChunkRows(nil, c.chunkRows))
		}
		footer.Layout = NewLayout(Struct, nil, children, binary.AppendUvarint(nil, rows))
	}

	var ps Postscript

	schema, err := MarshalSchema(w.schema)
	if err != nil {
		return err
	}
	ps.SchemaOffset = w.offset
	if err := w.writeRaw(schema); err != nil {
		return err
	}

	section, err := MarshalFooter(footer)
	if err != nil {
		return err
	}
	ps.FooterOffset = w.offset
	if err := w.writeRaw(section); err != nil {
		return err
	}

	if err := w.writeRaw(MarshalPostscript(ps)); err != nil {
		return err
	}

	w.o.Logger.Debug("coltable written",
		zap.Int("columns", len(w.cols)),
		zap.Uint64("rows", rows),
		zap.Uint64("bytes", w.offset),
	)
	return nil
}

func (w *Writer) column(col int) (*column, error) {
	if w.closed {
		return nil, ErrClosed
	}
	if col < 0 || col >= len(w.cols) {
		return nil, fmt.Errorf("coltable: column %d out of range [0, %d)", col, len(w.cols))
	}
	return w.cols[col], nil
}

func (w *Writer) flush(c *column, values []byte) error {
	rows := uint64(len(values) / c.field.Type.Size())

	in := boundary.Alloc(len(values))
	defer boundary.Free(in)
	copy(in, values)

	node, err := w.encode(c.field, boundary.InitFromBytes(in), rows)
	if err != nil {
		return fmt.Errorf("coltable: encode %q: %w", c.field.Name, err)
	}

	c.chunks = append(c.chunks, node)
	c.chunkRows = append(c.chunkRows, rows)
	c.rows += rows
	return nil
}

func (w *Writer) encode(f Field, in boundary.ByteBuffer, rows uint64) (*Layout, error) {
	switch f.Encoding {
	case BitPacked:
		return w.encodeBitPacked(f, in, rows)
	case ALP:
		node, err := w.encodeALP(f, in, rows)
		if errors.Is(err, boundary.ErrEncodingFailed) {
			w.o.Logger.Info("coltable alp fallback", zap.String("field", f.Name), zap.Uint64("rows", rows))
			return w.encodePlain(f, in, rows)
		}
		return node, err
	case Snappy, Zstd, LZ4:
		return w.encodeCompressed(f, in, rows)
	}
	return w.encodePlain(f, in, rows)
}

func (w *Writer) encodePlain(f Field, in boundary.ByteBuffer, rows uint64) (*Layout, error) {
	out := boundary.Alloc(int(in.Len))
	defer boundary.Free(out)

	res := kernels.Copy(in, f.Type.Bits(), boundary.InitFromBytes(out))
	if err := res.Err(); err != nil {
		return nil, err
	}

	b, err := w.writeBuffer(res.Buffer.Bytes())
	if err != nil {
		return nil, err
	}
	return NewLayout(Plain, []Buffer{b}, nil, appendLeafMeta(nil, Plain, leafMeta{PType: f.Type, Rows: rows})), nil
}

func (w *Writer) encodeBitPacked(f Field, in boundary.ByteBuffer, rows uint64) (*Layout, error) {
	elemBits := f.Type.Bits()
	width := maxWidth(in.Bytes(), f.Type)

	out := boundary.Alloc(int(kernels.PackedSize(rows, width)))
	defer boundary.Free(out)

	res := kernels.PackBits(in, elemBits, width, boundary.InitFromBytes(out))
	if err := res.Err(); err != nil {
		return nil, err
	}

	b, err := w.writeBuffer(res.Buffer.Bytes())
	if err != nil {
		return nil, err
	}
	meta := leafMeta{PType: f.Type, Rows: rows, Width: width}
	return NewLayout(BitPacked, []Buffer{b}, nil, appendLeafMeta(nil, BitPacked, meta)), nil
}

func (w *Writer) encodeALP(f Field, in boundary.ByteBuffer, rows uint64) (*Layout, error) {
	found := kernels.FindExponents(in)
	if err := found.Err(); err != nil {
		return nil, err
	}

	values := boundary.Alloc(int(in.Len))
	defer boundary.Free(values)
	exceptions := boundary.Alloc(int(rows * kernels.ExceptionSize))
	defer boundary.Free(exceptions)

	res := kernels.EncodeALP(in, found.Exponents, boundary.InitFromBytes(values), boundary.InitFromBytes(exceptions))
	if err := res.Err(); err != nil {
		return nil, err
	}

	vb, err := w.writeBuffer(res.Primary.Bytes())
	if err != nil {
		return nil, err
	}
	eb, err := w.writeBuffer(res.Secondary.Bytes())
	if err != nil {
		return nil, err
	}

	children := []*Layout{
		NewLayout(Plain, []Buffer{vb}, nil, appendLeafMeta(nil, Plain, leafMeta{PType: Int64, Rows: rows})),
		NewLayout(Plain, []Buffer{eb}, nil, appendLeafMeta(nil, Plain, leafMeta{PType: Uint64, Rows: 2 * res.Secondary.NumElements})),
	}
	meta := leafMeta{PType: f.Type, Rows: rows, Exp: found.Exponents}
	return NewLayout(ALP, nil, children, appendLeafMeta(nil, ALP, meta)), nil
}

func (w *Writer) encodeCompressed(f Field, in boundary.ByteBuffer, rows uint64) (*Layout, error) {
	res := kernels.CompressAlloc(codecOf(f.Encoding), in)
	if err := res.Err(); err != nil {
		return nil, err
	}
	defer boundary.Free(res.Buffer.Bytes())

	// incompressible chunks are stored plain
	if res.Buffer.Buffer.Len >= in.Len {
		return w.encodePlain(f, in, rows)
	}

	b, err := w.writeBuffer(res.Buffer.Bytes())
	if err != nil {
		return nil, err
	}
	return NewLayout(f.Encoding, []Buffer{b}, nil, appendLeafMeta(nil, f.Encoding, leafMeta{PType: f.Type, Rows: rows})), nil
}

var padding [boundary.Alignment]byte

// writeBuffer writes a data buffer at the next aligned offset.
func (w *Writer) writeBuffer(p []byte) (Buffer, error) {
	if pad := -w.offset & (boundary.Alignment - 1); pad != 0 {
		if err := w.writeRaw(padding[:pad]); err != nil {
			return Buffer{}, err
		}
	}

	begin := w.offset
	if err := w.writeRaw(p); err != nil {
		return Buffer{}, err
	}
	return Buffer{Begin: begin, End: w.offset}, nil
}

func (w *Writer) writeRaw(p []byte) error {
	n, err := w.w.Write(p)
	w.offset += uint64(n)
	return err
}

// --------------------------------------------------------------------

// Value is the set of Go types that map onto a PType.
type Value interface {
	uint32 | uint64 | int32 | int64 | float32 | float64
}

func ptypeOf[T Value]() PType {
	var zero T
	switch any(zero).(type) {
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	}
	return Float64
}

// AppendValues appends typed values to a column. T must match the
// column's type.
func AppendValues[T Value](w *Writer, col int, values ...T) error {
	c, err := w.column(col)
	if err != nil {
		return err
	}
	if want := ptypeOf[T](); c.field.Type != want {
		return fmt.Errorf("coltable: column %q holds %s values, not %s", c.field.Name, c.field.Type, want)
	}

	p, err := binary.Append(make([]byte, 0, len(values)*c.field.Type.Size()), binary.LittleEndian, values)
	if err != nil {
		return err
	}
	return w.Append(col, p)
}

func codecOf(enc Encoding) kernels.Codec {
	switch enc {
	case Snappy:
		return kernels.Snappy
	case Zstd:
		return kernels.Zstd
	case LZ4:
		return kernels.LZ4
	}
	return kernels.None
}

// maxWidth returns the number of bits needed by the largest value.
func maxWidth(p []byte, t PType) uint8 {
	var acc uint64
	if t.Size() == 4 {
		for i := 0; i+4 <= len(p); i += 4 {
			acc |= uint64(binary.LittleEndian.Uint32(p[i:]))
		}
	} else {
		for i := 0; i+8 <= len(p); i += 8 {
			acc |= binary.LittleEndian.Uint64(p[i:])
		}
	}
	return uint8(bits.Len64(acc))
}
