package kernels

import "github.com/bsm/coltable/boundary"

// Copy copies fixed-width elements of the given bit width from in to out.
//
// When out is too small, as many whole elements as fit are copied and the
// result carries OutputBufferTooSmall together with that partial output.
func Copy(in boundary.ByteBuffer, bits uint8, out boundary.ByteBuffer) (res boundary.OneBufferResult) {
	const kernel = "copy"
	defer guardOne(kernel, &res)

	if err := checkAligned(kernel, "in", in); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if err := checkAligned(kernel, "out", out); err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	size, err := elemBytes(kernel, "bits", bits)
	if err != nil {
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}
	if in.Len%size != 0 {
		err := fail(kernel, boundary.InvalidInput, "in", "%d bytes is not a multiple of %d-bit elements", in.Len, bits)
		return boundary.OneBufferErr(err, boundary.WrittenBuffer{})
	}

	if out.Len < in.Len {
		fit := out.Len / size * size
		copy(out.Bytes(), in.Bytes()[:fit])

		err := fail(kernel, boundary.OutputBufferTooSmall, "out", "need %d bytes, have %d", in.Len, out.Len)
		return boundary.OneBufferErr(err, boundary.Written(out.Slice(fit), bits, fit/size, fit))
	}

	copy(out.Bytes(), in.Bytes())
	return boundary.OneBufferOK(boundary.Written(out.Slice(in.Len), bits, in.Len/size, in.Len))
}
