package coltable

import (
	"errors"
	"fmt"
	"strings"
)

var magic = []byte{0x43, 0x54, 0x42, 0x4c, 0x9e, 0x21, 0x5a, 0x0d}

const (
	// PostscriptSize is the size of the fixed trailer at the end of every file.
	PostscriptSize = 24

	// MaxLayoutDepth limits the nesting of layout nodes.
	MaxLayoutDepth = 64

	footerVersion = 1
	checksumSize  = 8
)

var (
	// ErrCorrupt is matched by every FormatError.
	ErrCorrupt = errors.New("coltable: corrupt file")
	// ErrClosed is returned when a closed writer is used.
	ErrClosed = errors.New("coltable: writer is closed")
	// ErrNotReady is returned when a reader is requested before the opener
	// reached the Ready state.
	ErrNotReady = errors.New("coltable: file is not open")
	// ErrUnsupportedEncoding is returned when a layout node cannot be decoded.
	ErrUnsupportedEncoding = errors.New("coltable: unsupported encoding")

	errReleased = errors.New("coltable: iterator was released")
)

// FormatError reports malformed bytes in a named section of a file.
type FormatError struct {
	Section string
	Offset  int64
	Detail  string
	Cause   error
}

func formatErrorf(section string, offset int64, format string, args ...interface{}) *FormatError {
	return &FormatError{Section: section, Offset: offset, Detail: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "coltable: corrupt %s at offset %d: %s", e.Section, e.Offset, e.Detail)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *FormatError) Unwrap() error { return e.Cause }

// Is matches ErrCorrupt.
func (e *FormatError) Is(target error) bool { return target == ErrCorrupt }

// --------------------------------------------------------------------

// PType is the physical type of a column's values.
type PType uint8

// Supported physical types.
const (
	Uint32 PType = iota + 1
	Uint64
	Int32
	Int64
	Float32
	Float64
)

var ptypeNames = map[PType]string{
	Uint32:  "uint32",
	Uint64:  "uint64",
	Int32:   "int32",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
}

// Valid reports whether t is a known physical type.
func (t PType) Valid() bool { return t >= Uint32 && t <= Float64 }

// Size returns the width of a single value in bytes.
func (t PType) Size() int {
	switch t {
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	}
	return 0
}

// Bits returns the width of a single value in bits.
func (t PType) Bits() uint8 { return uint8(t.Size() * 8) }

// Unsigned reports whether t is an unsigned integer type.
func (t PType) Unsigned() bool { return t == Uint32 || t == Uint64 }

func (t PType) String() string {
	if s, ok := ptypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ptype(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t PType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("coltable: invalid type %s", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PType) UnmarshalText(p []byte) error {
	for k, s := range ptypeNames {
		if s == string(p) {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("coltable: unknown type %q", p)
}

// --------------------------------------------------------------------

// Encoding identifies how a layout node stores its data.
type Encoding uint16

// Known encodings. Other identifiers are preserved by the layout codec but
// cannot be decoded.
const (
	Plain     Encoding = 1
	BitPacked Encoding = 2
	ALP       Encoding = 3
	Snappy    Encoding = 4
	Zstd      Encoding = 5
	LZ4       Encoding = 6
	Chunked   Encoding = 8
	Struct    Encoding = 9
)

var encodingNames = map[Encoding]string{
	Plain:     "plain",
	BitPacked: "bitpacked",
	ALP:       "alp",
	Snappy:    "snappy",
	Zstd:      "zstd",
	LZ4:       "lz4",
	Chunked:   "chunked",
	Struct:    "struct",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return fmt.Sprintf("encoding(%d)", uint16(e))
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	if _, ok := encodingNames[e]; !ok {
		return nil, fmt.Errorf("coltable: invalid encoding %s", e)
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(p []byte) error {
	for k, s := range encodingNames {
		if s == string(p) {
			*e = k
			return nil
		}
	}
	return fmt.Errorf("coltable: unknown encoding %q", p)
}

// isLeaf reports whether values are stored directly in the node's buffers.
func (e Encoding) isLeaf() bool {
	switch e {
	case Plain, BitPacked, Snappy, Zstd, LZ4:
		return true
	}
	return false
}
