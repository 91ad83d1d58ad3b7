package coltable

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// State is the state of an Opener.
type State uint8

// Opener states. Every read step either advances to the next state or
// ends in Corrupt.
const (
	Unopened State = iota
	PostscriptRead
	FooterRead
	SchemaRead
	Ready
	Corrupt
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case PostscriptRead:
		return "postscript-read"
	case FooterRead:
		return "footer-read"
	case SchemaRead:
		return "schema-read"
	case Ready:
		return "ready"
	case Corrupt:
		return "corrupt"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// ReaderOptions define reader specific options.
type ReaderOptions struct {
	// The maximum number of buffers fetched concurrently by ReadColumn.
	// Default: 4
	Concurrency int

	// The maximum decoded size of a single chunk. Files with larger leaf
	// nodes are rejected as corrupt.
	// Default: 1 << 28
	MaxChunkBytes int

	// Logger receives state transitions and corruption reports.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

func (o *ReaderOptions) norm() *ReaderOptions {
	var oo ReaderOptions
	if o != nil {
		oo = *o
	}

	if oo.Concurrency < 1 {
		oo.Concurrency = 4
	}
	if oo.MaxChunkBytes < 1 {
		oo.MaxChunkBytes = 1 << 28
	}
	if oo.Logger == nil {
		oo.Logger = zap.NewNop()
	}
	return &oo
}

// Opener reads the metadata of a file one step at a time. Data buffers are
// only accessible through the Reader of a Ready opener.
type Opener struct {
	r    io.ReaderAt
	size int64
	o    *ReaderOptions

	state  State
	err    error
	ps     Postscript
	footer *Footer
	schema *Schema
}

// NewOpener creates an opener for a file of the given size.
func NewOpener(r io.ReaderAt, size int64, o *ReaderOptions) *Opener {
	return &Opener{r: r, size: size, o: o.norm()}
}

// State returns the current state.
func (p *Opener) State() State { return p.state }

// Err returns the error that moved the opener into Corrupt.
func (p *Opener) Err() error { return p.err }

// Step performs the next read. It is a no-op once Ready and returns the
// original error once Corrupt.
func (p *Opener) Step() error {
	var err error
	next := p.state + 1

	switch p.state {
	case Unopened:
		p.ps, err = ReadPostscript(p.r, p.size)
	case PostscriptRead:
		p.footer, err = ReadFooter(p.r, p.size, p.ps)
	case FooterRead:
		p.schema, err = ReadSchema(p.r, p.size, p.ps)
	case SchemaRead:
		err = checkLayout(p.footer, p.schema, p.size-PostscriptSize, p.o.MaxChunkBytes)
	case Ready:
		return nil
	default:
		return p.err
	}

	if err != nil {
		p.fail(err)
		return err
	}

	p.o.Logger.Debug("coltable open",
		zap.Stringer("from", p.state),
		zap.Stringer("to", next),
	)
	p.state = next
	if next == Ready {
		OpensTotal.WithLabelValues("ready").Inc()
	}
	return nil
}

func (p *Opener) fail(err error) {
	fields := []zap.Field{zap.Stringer("state", p.state), zap.Error(err)}
	if fe, ok := err.(*FormatError); ok {
		fields = append(fields, zap.String("section", fe.Section), zap.Int64("offset", fe.Offset))
	}
	p.o.Logger.Warn("coltable corrupt", fields...)

	p.state = Corrupt
	p.err = err
	OpensTotal.WithLabelValues("corrupt").Inc()
}

// Open steps until the opener is Ready or Corrupt and returns the reader.
func (p *Opener) Open() (*Reader, error) {
	for p.state != Ready {
		if err := p.Step(); err != nil {
			return nil, err
		}
	}
	return p.Reader()
}

// Reader returns a reader for a Ready opener.
func (p *Opener) Reader() (*Reader, error) {
	switch p.state {
	case Ready:
	case Corrupt:
		return nil, p.err
	default:
		return nil, ErrNotReady
	}

	r := &Reader{
		r:      p.r,
		o:      p.o,
		limit:  uint64(p.size - PostscriptSize),
		ps:     p.ps,
		footer: p.footer,
		schema: p.schema,
	}
	if root := p.footer.Layout; root != nil && root.Encoding == Struct {
		r.columns = root.Children
	}
	return r, nil
}

// --------------------------------------------------------------------

// ReadPostscript reads the trailer of a file.
func ReadPostscript(r io.ReaderAt, size int64) (Postscript, error) {
	if size < PostscriptSize {
		return Postscript{}, formatErrorf("postscript", 0, "file of %d bytes is shorter than the %d byte trailer", size, PostscriptSize)
	}

	p := make([]byte, PostscriptSize)
	if err := readAt(r, "postscript", p, size-PostscriptSize); err != nil {
		return Postscript{}, err
	}
	return parsePostscript(p, size)
}

// ReadFooter reads the footer section located by ps.
func ReadFooter(r io.ReaderAt, size int64, ps Postscript) (*Footer, error) {
	body, at, err := readSection(r, "footer", int64(ps.FooterOffset), size-PostscriptSize)
	if err != nil {
		return nil, err
	}
	return unmarshalFooter(body, at)
}

// ReadSchema reads the schema section located by ps.
func ReadSchema(r io.ReaderAt, size int64, ps Postscript) (*Schema, error) {
	body, at, err := readSection(r, "schema", int64(ps.SchemaOffset), size-PostscriptSize)
	if err != nil {
		return nil, err
	}
	return unmarshalSchema(body, at)
}

// checkLayout verifies that every buffer lies before limit, that no value
// node decodes to more than maxChunk bytes and, when the schema has fields,
// that the tree holds one column per field with the footer's row count.
func checkLayout(f *Footer, s *Schema, limit int64, maxChunk int) error {
	err := f.Layout.Walk(func(n *Layout, depth int) error {
		for _, b := range n.Buffers {
			if b.Begin > b.End || b.End > uint64(limit) {
				return formatErrorf("layout", 0, "buffer %s at depth %d exceeds the data region of %d bytes", b, depth, limit)
			}
		}

		// malformed metadata is reported by the row checks or on decode
		if n.Encoding.isLeaf() || n.Encoding == ALP {
			if m, err := parseLeafMeta(n.Encoding, n.Metadata); err == nil {
				return checkChunkSize(n.Encoding, m, maxChunk)
			}
		}
		return nil
	})
	if err != nil || len(s.Fields) == 0 {
		return err
	}

	root := f.Layout
	if root == nil || root.Encoding != Struct || len(root.Children) != len(s.Fields) {
		return formatErrorf("footer", 0, "layout does not hold %d columns", len(s.Fields))
	}
	if err := checkRows(root, "root", f.RowCount); err != nil {
		return err
	}
	for i, c := range root.Children {
		if err := checkRows(c, s.Fields[i].Name, f.RowCount); err != nil {
			return err
		}
	}
	return nil
}

func checkRows(l *Layout, name string, want uint64) error {
	n, err := numRows(l)
	if err != nil {
		return &FormatError{Section: "layout", Detail: fmt.Sprintf("cannot count rows of %s", name), Cause: err}
	}
	if n != want {
		return formatErrorf("layout", 0, "%s has %d rows, expected %d", name, n, want)
	}
	return nil
}
