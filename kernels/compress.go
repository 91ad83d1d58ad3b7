package kernels

import (
	"errors"
	"sync"

	"github.com/bsm/coltable/boundary"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// maxAlloc caps callee allocations.
const maxAlloc = 1 << 34

var (
	zstdEncoders = sync.Pool{New: func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		return enc
	}}
	zstdDecoders = sync.Pool{New: func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}}
)

// CompressBound returns the largest possible compressed size of n input
// bytes, or 0 when the codec is unknown or n is too large to compress.
func CompressBound(codec Codec, n uint64) uint64 {
	if n > maxAlloc {
		return 0
	}

	switch codec {
	case None:
		return n
	case Snappy:
		if m := snappy.MaxEncodedLen(int(n)); m > 0 {
			return uint64(m)
		}
	case Zstd:
		return n + n>>8 + 64
	case LZ4:
		return uint64(lz4.CompressBlockBound(int(n)))
	}
	return 0
}

// Compress compresses in into out. out must hold at least CompressBound
// bytes.
func Compress(codec Codec, in, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "compress"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if err := checkAligned(kernel, "out", out); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	n, err := compress(kernel, codec, in.Bytes(), out.Bytes())
	if err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{Buffer: out.Slice(0)})
	}
	return boundary.OneBufferOK(boundary.Written(out.Slice(n), 8, n, in.Len))
}

// CompressAlloc compresses in into memory allocated by the callee. The
// result is CalleeAllocated and must be released with boundary.Free.
func CompressAlloc(codec Codec, in boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "compress_alloc"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	bound := CompressBound(codec, in.Len)
	switch {
	case codec > LZ4:
		return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "codec", "unknown codec %s", codec), boundary.WrittenBuffer{})
	case bound == 0 && in.Len != 0:
		return boundary.OneBufferErr(fail(kernel, boundary.OutOfMemory, "in", "cannot allocate for %d input bytes", in.Len), boundary.WrittenBuffer{})
	}

	p := boundary.Alloc(int(bound))
	n, err := compress(kernel, codec, in.Bytes(), p)
	if err != nil {
		boundary.Free(p)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	w := boundary.Written(boundary.InitFromBytes(p[:n]), 8, n, in.Len)
	w.Ownership = boundary.CalleeAllocated
	return boundary.OneBufferOK(w)
}

func compress(kernel string, codec Codec, src, dst []byte) (uint64, error) {
	if bound := CompressBound(codec, uint64(len(src))); codec <= LZ4 && uint64(len(dst)) < bound {
		return 0, fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", bound, len(dst))
	}

	switch codec {
	case None:
		return uint64(copy(dst, src)), nil

	case Snappy:
		return uint64(len(snappy.Encode(dst, src))), nil

	case Zstd:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		defer zstdEncoders.Put(enc)

		buf := enc.EncodeAll(src, dst[:0])
		if len(buf) > len(dst) {
			return 0, fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", len(buf), len(dst))
		}
		return uint64(copy(dst, buf)), nil

	case LZ4:
		if len(src) == 0 {
			return 0, nil
		}
		n, err := lz4.CompressBlock(src, dst, nil)
		if err != nil {
			return 0, fail(kernel, boundary.EncodingFailed, "in", "lz4: %v", err)
		}
		return uint64(n), nil
	}
	return 0, fail(kernel, boundary.InvalidInput, "codec", "unknown codec %s", codec)
}

// Decompress decompresses in into out. out must hold the complete
// decompressed data.
func Decompress(codec Codec, in, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "decompress"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if err := checkAligned(kernel, "out", out); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	src, dst := in.Bytes(), out.Bytes()

	var n int
	switch codec {
	case None:
		if len(dst) < len(src) {
			return boundary.OneBufferErr(fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", len(src), len(dst)), boundary.WrittenBuffer{Buffer: out.Slice(0)})
		}
		n = copy(dst, src)

	case Snappy:
		size, err := snappy.DecodedLen(src)
		if err != nil {
			return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "in", "snappy: %v", err), boundary.WrittenBuffer{})
		}
		if size > len(dst) {
			return boundary.OneBufferErr(fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", size, len(dst)), boundary.WrittenBuffer{Buffer: out.Slice(0)})
		}
		buf, err := snappy.Decode(dst, src)
		if err != nil {
			return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "in", "snappy: %v", err), boundary.WrittenBuffer{})
		}
		n = len(buf)

	case Zstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)

		buf, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "in", "zstd: %v", err), boundary.WrittenBuffer{})
		}
		if len(buf) > len(dst) {
			return boundary.OneBufferErr(fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", len(buf), len(dst)), boundary.WrittenBuffer{Buffer: out.Slice(0)})
		}
		n = copy(dst, buf)

	case LZ4:
		if len(src) == 0 {
			break
		}
		size, err := lz4.UncompressBlock(src, dst)
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) && lz4Decodes(src) {
			return boundary.OneBufferErr(fail(kernel, boundary.OutputBufferTooSmall, "out", "lz4: %v", err), boundary.WrittenBuffer{Buffer: out.Slice(0)})
		} else if err != nil {
			return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "in", "lz4: %v", err), boundary.WrittenBuffer{})
		}
		n = size

	default:
		return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "codec", "unknown codec %s", codec), boundary.WrittenBuffer{})
	}

	return boundary.OneBufferOK(boundary.Written(out.Slice(uint64(n)), 8, uint64(n), in.Len))
}

// lz4Decodes reports whether src decodes when given the largest output an
// lz4 block can expand to. UncompressBlock reports a short output buffer
// and corrupt input with the same error.
func lz4Decodes(src []byte) bool {
	n := len(src) * 255
	if n > maxAlloc {
		return false
	}
	_, err := lz4.UncompressBlock(src, make([]byte, n))
	return err == nil
}
