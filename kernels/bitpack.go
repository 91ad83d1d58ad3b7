package kernels

import (
	"encoding/binary"

	"github.com/bsm/coltable/boundary"
)

// PackedSize returns the number of bytes needed to bit-pack n values of the
// given width. Packed data is always a whole number of 64-bit words.
func PackedSize(n uint64, width uint8) uint64 {
	return (n*uint64(width) + 63) / 64 * 8
}

// PackBits packs unsigned elements of elemBits (32 or 64) bits into width
// bits each, least significant bit first, in little-endian 64-bit words.
// Values that do not fit into width bits fail with EncodingFailed.
func PackBits(in boundary.ByteBuffer, elemBits, width uint8, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "pack_bits"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if err := checkAligned(kernel, "out", out); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	size, err := packedElem(kernel, elemBits, width)
	if err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if in.Len%size != 0 {
		err := fail(kernel, boundary.InvalidInput, "in", "%d bytes is not a multiple of %d-bit elements", in.Len, elemBits)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	n := in.Len / size
	need := PackedSize(n, width)
	if out.Len < need {
		err := fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", need, out.Len)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{Buffer: out.Slice(0)})
	}

	src, dst := in.Bytes(), out.Bytes()[:need]
	limit := widthMask(width)

	var acc uint64
	var nbits uint
	var pos int
	for i := uint64(0); i < n; i++ {
		v := readElem(src, i, size)
		if v&^limit != 0 {
			err := fail(kernel, boundary.EncodingFailed, "in", "value %d at index %d exceeds %d bits", v, i, width)
			return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
		}

		acc |= v << nbits
		if nbits+uint(width) < 64 {
			nbits += uint(width)
			continue
		}

		binary.LittleEndian.PutUint64(dst[pos:], acc)
		pos += 8

		spill := nbits + uint(width) - 64
		acc = 0
		if spill > 0 {
			acc = v >> (64 - nbits)
		}
		nbits = spill
	}
	if nbits > 0 {
		binary.LittleEndian.PutUint64(dst[pos:], acc)
	}

	return boundary.OneBufferOK(boundary.Written(out.Slice(need), width, n, in.Len))
}

// UnpackBits reverses PackBits, expanding n packed values into elements of
// elemBits bits.
func UnpackBits(in boundary.ByteBuffer, elemBits, width uint8, n uint64, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "unpack_bits"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if err := checkAligned(kernel, "out", out); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	size, err := packedElem(kernel, elemBits, width)
	if err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if width != 0 && (n > in.Len*8/uint64(width) || PackedSize(n, width) > in.Len) {
		err := fail(kernel, boundary.InvalidInput, "num_elements", "%d values of %d bits exceed input of %d bytes", n, width, in.Len)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if need := n * size; n > out.Len/size {
		err := fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", need, out.Len)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{Buffer: out.Slice(0)})
	}

	src, dst := in.Bytes(), out.Bytes()
	mask := widthMask(width)
	w := uint64(width)

	for i := uint64(0); i < n; i++ {
		var v uint64
		if width != 0 {
			bit := i * w
			word, off := bit/64, bit%64
			v = binary.LittleEndian.Uint64(src[word*8:]) >> off
			if off+w > 64 {
				v |= binary.LittleEndian.Uint64(src[word*8+8:]) << (64 - off)
			}
			v &= mask
		}
		writeElem(dst, i, size, v)
	}

	return boundary.OneBufferOK(boundary.Written(out.Slice(n*size), elemBits, n, PackedSize(n, width)))
}

func packedElem(kernel string, elemBits, width uint8) (uint64, error) {
	if elemBits != 32 && elemBits != 64 {
		return 0, fail(kernel, boundary.InvalidInput, "elem_bits", "unsupported element width %d", elemBits)
	}
	if width > elemBits {
		return 0, fail(kernel, boundary.InvalidInput, "width", "width %d exceeds element width %d", width, elemBits)
	}
	return uint64(elemBits) / 8, nil
}

func widthMask(width uint8) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return 1<<width - 1
}

func readElem(p []byte, i, size uint64) uint64 {
	if size == 4 {
		return uint64(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return binary.LittleEndian.Uint64(p[i*8:])
}

func writeElem(p []byte, i, size, v uint64) {
	if size == 4 {
		binary.LittleEndian.PutUint32(p[i*4:], uint32(v))
		return
	}
	binary.LittleEndian.PutUint64(p[i*8:], v)
}
