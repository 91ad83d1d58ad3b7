package coltable

import (
	"encoding/binary"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/kernels"
)

// leafMeta is the metadata of a node that holds values.
type leafMeta struct {
	PType PType
	Rows  uint64
	Width uint8              // BitPacked only
	Exp   boundary.Exponents // ALP only
}

func appendLeafMeta(dst []byte, enc Encoding, m leafMeta) []byte {
	dst = append(dst, byte(m.PType))
	dst = binary.AppendUvarint(dst, m.Rows)
	switch enc {
	case BitPacked:
		dst = append(dst, m.Width)
	case ALP:
		dst = append(dst, m.Exp.E, m.Exp.F)
	}
	return dst
}

func parseLeafMeta(enc Encoding, p []byte) (leafMeta, error) {
	var m leafMeta
	if len(p) == 0 {
		return m, formatErrorf("metadata", 0, "missing %s metadata", enc)
	}

	m.PType = PType(p[0])
	if !m.PType.Valid() {
		return m, formatErrorf("metadata", 0, "invalid type %s", m.PType)
	}

	rows, n := binary.Uvarint(p[1:])
	if n <= 0 {
		return m, formatErrorf("metadata", 1, "bad row count")
	}
	m.Rows = rows
	rest := p[1+n:]

	switch enc {
	case BitPacked:
		if len(rest) != 1 {
			return m, formatErrorf("metadata", int64(1+n), "bad bit width")
		}
		if m.Width = rest[0]; m.Width > m.PType.Bits() || !m.PType.Unsigned() {
			return m, formatErrorf("metadata", int64(1+n), "bit width %d invalid for %s", m.Width, m.PType)
		}
	case ALP:
		if len(rest) != 2 {
			return m, formatErrorf("metadata", int64(1+n), "bad exponents")
		}
		if m.Exp = (boundary.Exponents{E: rest[0], F: rest[1]}); m.Exp.E > kernels.MaxExponent || m.Exp.F > m.Exp.E {
			return m, formatErrorf("metadata", int64(1+n), "invalid exponents %s", m.Exp)
		}
	default:
		if len(rest) != 0 {
			return m, formatErrorf("metadata", int64(1+n), "%d trailing bytes", len(rest))
		}
	}
	return m, nil
}

func appendChunkRows(dst []byte, rows []uint64) []byte {
	for _, n := range rows {
		dst = binary.AppendUvarint(dst, n)
	}
	return dst
}

func parseChunkRows(p []byte, nchunks int) ([]uint64, error) {
	rows := make([]uint64, 0, nchunks)
	pos := 0
	for i := 0; i < nchunks; i++ {
		n, k := binary.Uvarint(p[pos:])
		if k <= 0 {
			return nil, formatErrorf("metadata", int64(pos), "bad row count of chunk %d", i)
		}
		rows = append(rows, n)
		pos += k
	}
	if pos != len(p) {
		return nil, formatErrorf("metadata", int64(pos), "%d trailing bytes", len(p)-pos)
	}
	return rows, nil
}

// numRows returns the number of rows stored under a node.
func numRows(l *Layout) (uint64, error) {
	switch l.Encoding {
	case Chunked:
		rows, err := parseChunkRows(l.Metadata, len(l.Children))
		if err != nil {
			return 0, err
		}
		var sum uint64
		for _, n := range rows {
			if sum+n < sum {
				return 0, formatErrorf("metadata", 0, "row count overflows")
			}
			sum += n
		}
		return sum, nil

	case Struct:
		n, k := binary.Uvarint(l.Metadata)
		if k <= 0 || k != len(l.Metadata) {
			return 0, formatErrorf("metadata", 0, "bad struct row count")
		}
		return n, nil

	case ALP, Plain, BitPacked, Snappy, Zstd, LZ4:
		m, err := parseLeafMeta(l.Encoding, l.Metadata)
		return m.Rows, err
	}
	return 0, ErrUnsupportedEncoding
}

// checkChunkSize rejects leaves that decode to more than max bytes.
func checkChunkSize(enc Encoding, m leafMeta, max int) error {
	if size := uint64(m.PType.Size()); m.Rows > uint64(max)/size {
		return formatErrorf("metadata", 0, "%s node of %d %s values exceeds the chunk limit of %d bytes", enc, m.Rows, m.PType, max)
	}
	return nil
}
