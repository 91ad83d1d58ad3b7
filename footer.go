package coltable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/zeebo/blake3"
)

// Footer describes the data of a file.
type Footer struct {
	Layout   *Layout
	RowCount uint64
}

// MarshalFooter serializes a footer into a framed section.
func MarshalFooter(f *Footer) ([]byte, error) {
	body := []byte{footerVersion}
	body = binary.AppendUvarint(body, f.RowCount)
	if f.Layout != nil {
		var err error
		if body, err = AppendLayout(body, f.Layout); err != nil {
			return nil, err
		}
	}
	return appendSection(nil, body), nil
}

func unmarshalFooter(p []byte, offset int64) (*Footer, error) {
	f := new(Footer)
	if len(p) == 0 {
		return f, nil
	}

	if p[0] != footerVersion {
		return nil, formatErrorf("footer", offset, "unsupported version %d", p[0])
	}
	rows, n := binary.Uvarint(p[1:])
	if n <= 0 {
		return nil, formatErrorf("footer", offset+1, "bad row count")
	}
	if n != uvarintLen(rows) {
		return nil, formatErrorf("footer", offset+1, "non-canonical row count")
	}
	f.RowCount = rows

	if rest := p[1+n:]; len(rest) != 0 {
		layout, err := UnmarshalLayout(rest)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Offset += offset + 1 + int64(n)
			}
			return nil, err
		}
		f.Layout = layout
	}
	return f, nil
}

// --------------------------------------------------------------------

// Postscript is the fixed-size trailer of a file. It locates the schema
// and footer sections.
type Postscript struct {
	SchemaOffset uint64
	FooterOffset uint64
}

// MarshalPostscript serializes the trailer.
func MarshalPostscript(ps Postscript) []byte {
	p := make([]byte, 0, PostscriptSize)
	p = binary.LittleEndian.AppendUint64(p, ps.SchemaOffset)
	p = binary.LittleEndian.AppendUint64(p, ps.FooterOffset)
	return append(p, magic...)
}

func parsePostscript(p []byte, size int64) (Postscript, error) {
	offset := size - PostscriptSize
	if !bytes.Equal(p[16:], magic) {
		return Postscript{}, formatErrorf("postscript", offset+16, "bad magic")
	}

	ps := Postscript{
		SchemaOffset: binary.LittleEndian.Uint64(p[0:]),
		FooterOffset: binary.LittleEndian.Uint64(p[8:]),
	}
	if ps.SchemaOffset > uint64(offset) {
		return Postscript{}, formatErrorf("postscript", offset, "schema offset %d points past the trailer", ps.SchemaOffset)
	}
	if ps.FooterOffset > uint64(offset) {
		return Postscript{}, formatErrorf("postscript", offset+8, "footer offset %d points past the trailer", ps.FooterOffset)
	}
	return ps, nil
}

// --------------------------------------------------------------------

func appendSection(dst, body []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(body)))
	dst = append(dst, body...)
	sum := blake3.Sum256(body)
	return append(dst, sum[:checksumSize]...)
}

// readSection reads a framed section that starts at offset and must end
// before limit. A section that starts at limit is empty. It returns the body
// and the body's offset within the file.
func readSection(r io.ReaderAt, name string, offset, limit int64) ([]byte, int64, error) {
	if offset == limit {
		return nil, offset, nil
	}

	head := make([]byte, binary.MaxVarintLen64)
	if avail := limit - offset; avail < int64(len(head)) {
		head = head[:avail]
	}
	if err := readAt(r, name, head, offset); err != nil {
		return nil, 0, err
	}

	size, n := binary.Uvarint(head)
	if n <= 0 {
		return nil, 0, formatErrorf(name, offset, "bad section length")
	}
	if avail := limit - offset - int64(n) - checksumSize; avail < 0 || size > uint64(avail) {
		return nil, 0, formatErrorf(name, offset, "section of %d bytes overruns the trailer", size)
	}

	at := offset + int64(n)
	p := make([]byte, int(size)+checksumSize)
	if err := readAt(r, name, p, at); err != nil {
		return nil, 0, err
	}

	body := p[:size]
	if sum := blake3.Sum256(body); !bytes.Equal(sum[:checksumSize], p[size:]) {
		return nil, 0, formatErrorf(name, offset, "checksum mismatch")
	}
	return body, at, nil
}

// readAt reads exactly len(p) bytes. Short reads are reported as
// corruption, other I/O errors are returned as they are.
func readAt(r io.ReaderAt, name string, p []byte, offset int64) error {
	n, err := r.ReadAt(p, offset)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return &FormatError{Section: name, Offset: offset, Detail: "truncated", Cause: io.ErrUnexpectedEOF}
	}
	return err
}
