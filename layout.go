package coltable

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Buffer is the byte range [Begin, End) of a data buffer within a file.
type Buffer struct {
	Begin, End uint64
}

// Len returns the number of bytes in the range.
func (b Buffer) Len() uint64 { return b.End - b.Begin }

func (b Buffer) String() string { return fmt.Sprintf("[%d, %d)", b.Begin, b.End) }

// Layout is a node of the tree that describes how a file's data is
// arranged. A node owns its buffers, children and metadata.
type Layout struct {
	Encoding Encoding
	Buffers  []Buffer
	Children []*Layout
	Metadata []byte
}

// NewLayout creates a node. It performs no validation.
func NewLayout(enc Encoding, buffers []Buffer, children []*Layout, metadata []byte) *Layout {
	return &Layout{Encoding: enc, Buffers: buffers, Children: children, Metadata: metadata}
}

// Equal reports whether l and o describe the same tree. Nil and empty
// slices are equal.
func (l *Layout) Equal(o *Layout) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.Encoding != o.Encoding || len(l.Buffers) != len(o.Buffers) || len(l.Children) != len(o.Children) {
		return false
	}
	if !bytes.Equal(l.Metadata, o.Metadata) {
		return false
	}
	for i, b := range l.Buffers {
		if b != o.Buffers[i] {
			return false
		}
	}
	for i, c := range l.Children {
		if !c.Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Walk visits l and its descendants in pre-order. The root has depth 1.
// Walking stops at the first error returned by fn.
func (l *Layout) Walk(fn func(node *Layout, depth int) error) error {
	if l == nil {
		return nil
	}
	return l.walk(fn, 1)
}

func (l *Layout) walk(fn func(*Layout, int) error, depth int) error {
	if err := fn(l, depth); err != nil {
		return err
	}
	for _, c := range l.Children {
		if err := c.walk(fn, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// NumNodes returns the number of nodes in the tree.
func (l *Layout) NumNodes() int {
	n := 0
	_ = l.Walk(func(*Layout, int) error { n++; return nil })
	return n
}

// --------------------------------------------------------------------

// MarshalLayout serializes a tree.
func MarshalLayout(l *Layout) ([]byte, error) {
	return AppendLayout(nil, l)
}

// AppendLayout appends the serialized tree to dst. The encoding is
// canonical: equal trees always produce equal bytes.
func AppendLayout(dst []byte, l *Layout) ([]byte, error) {
	if l == nil {
		return dst, fmt.Errorf("coltable: cannot marshal a nil layout")
	}
	return appendNode(dst, l, 1)
}

func appendNode(dst []byte, l *Layout, depth int) ([]byte, error) {
	if depth > MaxLayoutDepth {
		return dst, fmt.Errorf("coltable: layout exceeds maximum depth of %d", MaxLayoutDepth)
	}

	dst = binary.AppendUvarint(dst, uint64(l.Encoding))
	dst = binary.AppendUvarint(dst, uint64(len(l.Buffers)))
	for _, b := range l.Buffers {
		if b.Begin > b.End {
			return dst, fmt.Errorf("coltable: invalid buffer %s", b)
		}
		dst = binary.AppendUvarint(dst, b.Begin)
		dst = binary.AppendUvarint(dst, b.Len())
	}

	dst = binary.AppendUvarint(dst, uint64(len(l.Children)))
	for _, c := range l.Children {
		if c == nil {
			return dst, fmt.Errorf("coltable: layout contains a nil child")
		}

		var err error
		if dst, err = appendNode(dst, c, depth+1); err != nil {
			return dst, err
		}
	}

	dst = binary.AppendUvarint(dst, uint64(len(l.Metadata)))
	return append(dst, l.Metadata...), nil
}

// UnmarshalLayout parses a serialized tree. The whole of p must be
// consumed. Malformed input returns a *FormatError and no tree.
func UnmarshalLayout(p []byte) (*Layout, error) {
	d := layoutDecoder{p: p}
	l, err := d.node(1)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.p) {
		return nil, d.errorf("%d trailing bytes", len(d.p)-d.pos)
	}
	return l, nil
}

// Minimum encoded sizes, used to bound counts before allocating.
const (
	minBufferSize = 2
	minNodeSize   = 4
)

type layoutDecoder struct {
	p   []byte
	pos int
}

func (d *layoutDecoder) remaining() int { return len(d.p) - d.pos }

func (d *layoutDecoder) errorf(format string, args ...interface{}) error {
	return formatErrorf("layout", int64(d.pos), format, args...)
}

func (d *layoutDecoder) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(d.p[d.pos:])
	switch {
	case n == 0:
		return 0, d.errorf("truncated %s", what)
	case n < 0:
		return 0, d.errorf("%s overflows 64 bits", what)
	case n != uvarintLen(v):
		return 0, d.errorf("non-canonical %s", what)
	}
	d.pos += n
	return v, nil
}

func (d *layoutDecoder) node(depth int) (*Layout, error) {
	if depth > MaxLayoutDepth {
		return nil, d.errorf("layout exceeds maximum depth of %d", MaxLayoutDepth)
	}

	enc, err := d.uvarint("encoding")
	if err != nil {
		return nil, err
	}
	if enc > 0xFFFF {
		return nil, d.errorf("encoding %d out of range", enc)
	}
	l := &Layout{Encoding: Encoding(enc)}

	nbuf, err := d.uvarint("buffer count")
	if err != nil {
		return nil, err
	}
	if nbuf > uint64(d.remaining()/minBufferSize) {
		return nil, d.errorf("%d buffers exceed remaining input", nbuf)
	}
	if nbuf != 0 {
		l.Buffers = make([]Buffer, nbuf)
	}
	for i := range l.Buffers {
		begin, err := d.uvarint("buffer begin")
		if err != nil {
			return nil, err
		}
		size, err := d.uvarint("buffer size")
		if err != nil {
			return nil, err
		}
		if begin+size < begin {
			return nil, d.errorf("buffer begin %d exceeds end", begin)
		}
		l.Buffers[i] = Buffer{Begin: begin, End: begin + size}
	}

	nchild, err := d.uvarint("child count")
	if err != nil {
		return nil, err
	}
	if nchild > uint64(d.remaining()/minNodeSize) {
		return nil, d.errorf("%d children exceed remaining input", nchild)
	}
	if nchild != 0 {
		l.Children = make([]*Layout, nchild)
	}
	for i := range l.Children {
		if l.Children[i], err = d.node(depth + 1); err != nil {
			return nil, err
		}
	}

	mlen, err := d.uvarint("metadata length")
	if err != nil {
		return nil, err
	}
	if mlen > uint64(d.remaining()) {
		return nil, d.errorf("%d metadata bytes exceed remaining input", mlen)
	}
	if mlen != 0 {
		l.Metadata = append([]byte(nil), d.p[d.pos:d.pos+int(mlen)]...)
		d.pos += int(mlen)
	}
	return l, nil
}

func uvarintLen(v uint64) int {
	n := 1
	for ; v >= 0x80; v >>= 7 {
		n++
	}
	return n
}
