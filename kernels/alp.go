package kernels

import (
	"encoding/binary"
	"math"

	"github.com/bsm/coltable/boundary"
)

// MaxExponent is the largest decimal exponent an ALP pair may use.
const MaxExponent = 18

// ExceptionSize is the encoded size of one ALP exception: the element
// index and the original float bits, both u64.
const ExceptionSize = 16

const (
	alpSampleSize = 1024
	alpMaxInt     = 1 << 62
)

var (
	pow10  [MaxExponent + 1]float64
	ipow10 = [MaxExponent + 1]float64{
		1, 1e-1, 1e-2, 1e-3, 1e-4, 1e-5, 1e-6, 1e-7, 1e-8, 1e-9,
		1e-10, 1e-11, 1e-12, 1e-13, 1e-14, 1e-15, 1e-16, 1e-17, 1e-18,
	}
)

func init() {
	p := 1.0
	for i := range pow10 {
		pow10[i] = p
		p *= 10
	}
}

func alpEncode(v float64, exp boundary.Exponents) (int64, bool) {
	scaled := v * pow10[exp.E] * ipow10[exp.F]
	if math.IsNaN(scaled) || math.Abs(scaled) > alpMaxInt {
		return 0, false
	}

	d := int64(math.Round(scaled))
	if math.Float64bits(alpDecode(d, exp)) != math.Float64bits(v) {
		return 0, false
	}
	return d, true
}

func alpDecode(d int64, exp boundary.Exponents) float64 {
	return float64(d) * pow10[exp.F] * ipow10[exp.E]
}

func validExponents(exp boundary.Exponents) bool {
	return exp.E <= MaxExponent && exp.F <= exp.E
}

// FindExponents picks the exponent pair that leaves the fewest exceptions
// over a sample of the float64 input. It fails with EncodingFailed when no
// pair encodes any sampled value.
func FindExponents(in boundary.ByteBuffer) (res boundary.ExponentsResult) {
	const kernel = "alp_find_exponents"
	defer guardExponents(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.ExponentsErr(err)
	}
	if in.Len%8 != 0 {
		return boundary.ExponentsErr(fail(kernel, boundary.InvalidInput, "in", "%d bytes is not a multiple of 64-bit elements", in.Len))
	}

	n := in.Len / 8
	if n == 0 {
		return boundary.ExponentsErr(fail(kernel, boundary.EncodingFailed, "in", "no values"))
	}

	src := in.Bytes()
	step := max(n/alpSampleSize, 1)
	sample := make([]float64, 0, min(n, alpSampleSize))
	for i := uint64(0); i < n && len(sample) < alpSampleSize; i += step {
		sample = append(sample, math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:])))
	}

	best, bestMisses := boundary.InvalidExponents, len(sample)
	for e := uint8(0); e <= MaxExponent; e++ {
		for f := uint8(0); f <= e; f++ {
			exp := boundary.Exponents{E: e, F: f}

			misses := 0
			for _, v := range sample {
				if _, ok := alpEncode(v, exp); !ok {
					if misses++; misses >= bestMisses {
						break
					}
				}
			}
			if misses < bestMisses {
				best, bestMisses = exp, misses
			}
		}
	}

	if best == boundary.InvalidExponents {
		return boundary.ExponentsErr(fail(kernel, boundary.EncodingFailed, "in", "no exponent pair encodes any of %d sampled values", len(sample)))
	}
	return boundary.ExponentsOK(best)
}

// EncodeALP encodes float64 input with the given exponents. The primary
// output receives one int64 per input value, the secondary output one
// (index, bits) exception per value that does not survive the round trip.
// Exception slots in the primary output hold zero.
func EncodeALP(in boundary.ByteBuffer, exp boundary.Exponents, values, exceptions boundary.ByteBuffer) (res boundary.TwoBufferResult) {
	const kernel = "alp_encode"
	defer guardTwo(kernel, &res)

	none := boundary.WrittenBuffer{}
	for _, b := range []struct {
		field string
		buf   boundary.ByteBuffer
	}{{"in", in}, {"values", values}, {"exceptions", exceptions}} {
		if err := checkAligned(kernel, b.field, b.buf); err != nil {
			return boundary.TwoBufferErr(err, none, none)
		}
	}

	if !validExponents(exp) {
		return boundary.TwoBufferErr(fail(kernel, boundary.InvalidInput, "exponents", "invalid exponents %s", exp), none, none)
	}
	if in.Len%8 != 0 {
		return boundary.TwoBufferErr(fail(kernel, boundary.InvalidInput, "in", "%d bytes is not a multiple of 64-bit elements", in.Len), none, none)
	}
	if values.Len < in.Len {
		err := fail(kernel, boundary.OutputBufferTooSmall, "values", "need %d bytes, have %d", in.Len, values.Len)
		return boundary.TwoBufferErr(err, boundary.WrittenBuffer{Buffer: values.Slice(0)}, none)
	}

	n := in.Len / 8
	src, vals, excs := in.Bytes(), values.Bytes(), exceptions.Bytes()
	capacity := exceptions.Len / ExceptionSize

	var k uint64
	for i := uint64(0); i < n; i++ {
		bits := binary.LittleEndian.Uint64(src[i*8:])

		d, ok := alpEncode(math.Float64frombits(bits), exp)
		binary.LittleEndian.PutUint64(vals[i*8:], uint64(d))
		if ok {
			continue
		}

		if k < capacity {
			binary.LittleEndian.PutUint64(excs[k*ExceptionSize:], i)
			binary.LittleEndian.PutUint64(excs[k*ExceptionSize+8:], bits)
		}
		k++
	}

	primary := boundary.Written(values.Slice(in.Len), 64, n, in.Len)
	if k > capacity {
		err := fail(kernel, boundary.OutputBufferTooSmall, "exceptions", "need %d bytes, have %d", k*ExceptionSize, exceptions.Len)
		return boundary.TwoBufferErr(err, primary, boundary.Written(exceptions.Slice(capacity*ExceptionSize), 8*ExceptionSize, capacity, 0))
	}
	return boundary.TwoBufferOK(primary, boundary.Written(exceptions.Slice(k*ExceptionSize), 8*ExceptionSize, k, 0))
}

// DecodeALP reverses EncodeALP, writing float64 output.
func DecodeALP(values, exceptions boundary.ByteBuffer, exp boundary.Exponents, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "alp_decode"
	defer guardOne(kernel, &res)

	for _, b := range []struct {
		field string
		buf   boundary.ByteBuffer
	}{{"values", values}, {"exceptions", exceptions}, {"out", out}} {
		if err := checkAligned(kernel, b.field, b.buf); err != nil {
			return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
		}
	}

	if !validExponents(exp) {
		return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "exponents", "invalid exponents %s", exp), boundary.WrittenBuffer{})
	}
	if values.Len%8 != 0 {
		return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "values", "%d bytes is not a multiple of 64-bit elements", values.Len), boundary.WrittenBuffer{})
	}
	if exceptions.Len%ExceptionSize != 0 {
		return boundary.OneBufferErr(fail(kernel, boundary.InvalidInput, "exceptions", "%d bytes is not a multiple of %d-byte exceptions", exceptions.Len, ExceptionSize), boundary.WrittenBuffer{})
	}
	if out.Len < values.Len {
		err := fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", values.Len, out.Len)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{Buffer: out.Slice(0)})
	}

	n := values.Len / 8
	vals, excs, dst := values.Bytes(), exceptions.Bytes(), out.Bytes()
	for i := uint64(0); i < n; i++ {
		d := int64(binary.LittleEndian.Uint64(vals[i*8:]))
		binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(alpDecode(d, exp)))
	}

	for k := uint64(0); k < exceptions.Len/ExceptionSize; k++ {
		idx := binary.LittleEndian.Uint64(excs[k*ExceptionSize:])
		if idx >= n {
			err := fail(kernel, boundary.InvalidInput, "exceptions", "exception %d points at index %d of %d", k, idx, n)
			return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
		}
		copy(dst[idx*8:idx*8+8], excs[k*ExceptionSize+8:k*ExceptionSize+16])
	}

	return boundary.OneBufferOK(boundary.Written(out.Slice(values.Len), 64, n, values.Len+exceptions.Len))
}
