package boundary_test

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/bsm/coltable/boundary"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Envelopes", func() {
	var mem []byte
	var buf boundary.ByteBuffer

	BeforeEach(func() {
		mem = boundary.Alloc(128)
		buf = boundary.InitFromBytes(mem)
	})

	AfterEach(func() {
		boundary.Free(mem)
	})

	It("should map errors onto the closed status set", func() {
		Expect(boundary.StatusOf(nil)).To(Equal(boundary.Ok))
		Expect(boundary.StatusOf(boundary.ErrEncodingFailed)).To(Equal(boundary.EncodingFailed))
		Expect(boundary.StatusOf(fmt.Errorf("wrapped: %w", boundary.ErrOutOfMemory))).To(Equal(boundary.OutOfMemory))
		Expect(boundary.StatusOf(errors.New("boom"))).To(Equal(boundary.UnknownError))
		Expect(boundary.StatusOf(&boundary.Error{Status: 99})).To(Equal(boundary.UnknownError))
		Expect(boundary.StatusOf(&boundary.Error{Status: boundary.Ok})).To(Equal(boundary.UnknownError))
	})

	It("should format errors", func() {
		err := &boundary.Error{
			Status: boundary.OutputBufferTooSmall,
			Op:     "copy",
			Field:  "out",
			Detail: "need 32 bytes, have 10",
			Cause:  errors.New("short"),
		}
		Expect(err).To(MatchError(`boundary: copy: output_buffer_too_small at out: need 32 bytes, have 10 (caused by: short)`))
		Expect(errors.Is(err, boundary.ErrOutputBufferTooSmall)).To(BeTrue())
		Expect(errors.Is(err, boundary.ErrInvalidInput)).To(BeFalse())
		Expect(boundary.Status(42).String()).To(Equal("status(42)"))
	})

	It("should build single-buffer results", func() {
		res := boundary.OneBufferOK(boundary.Written(buf.Slice(16), 64, 2, 16))
		Expect(res.Err()).NotTo(HaveOccurred())
		Expect(res.Buffer.Validate(16)).To(Succeed())

		res = boundary.OneBufferErr(errors.New("boom"), boundary.WrittenBuffer{})
		Expect(res.Status).To(Equal(boundary.UnknownError))
		Expect(res.Err()).To(MatchError(boundary.ErrUnknown))

		res = boundary.OneBufferErr(nil, boundary.WrittenBuffer{})
		Expect(res.Status).To(Equal(boundary.UnknownError))
	})

	It("should validate written buffers", func() {
		w := boundary.Written(buf.Slice(16), 64, 3, 16)
		Expect(w.Validate(16)).To(MatchError(`boundary: validate: invalid_input at num_elements: 3 elements of 64 bits exceed buffer of 16 bytes`))

		w = boundary.Written(buf.Slice(16), 64, 2, 24)
		Expect(w.Validate(16)).To(MatchError(boundary.ErrInvalidInput))

		w = boundary.Written(buf.Slice(16), 64, 2, 16)
		w.Ownership = 7
		Expect(w.Validate(16)).To(MatchError(ContainSubstring("unknown ownership 7")))
	})

	It("should accept foreign single-buffer results", func() {
		raw := boundary.OneBufferOK(boundary.Written(buf, 8, 128, 128)).Into()
		res, err := boundary.OneBufferFromForeign(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal(boundary.Ok))
		Expect(res.Buffer.Bytes()).To(HaveLen(128))

		raw.Status = 1234
		res, err = boundary.OneBufferFromForeign(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal(boundary.UnknownError))
	})

	It("should reject foreign envelopes as a whole", func() {
		base := uintptr(unsafe.Pointer(&mem[0]))

		raw := boundary.TwoBufferOK(boundary.Written(buf.Slice(64), 64, 8, 64), boundary.WrittenBuffer{}).Into()
		_, err := boundary.TwoBufferFromForeign(raw)
		Expect(err).NotTo(HaveOccurred())

		raw.Secondary.Buffer = boundary.RawBuffer{Ptr: base + 8, Len: 16}
		res, err := boundary.TwoBufferFromForeign(raw)
		Expect(err).To(MatchError(ContainSubstring("incorrect_alignment at secondary.buffer")))
		Expect(res).To(Equal(boundary.TwoBufferResult{}))

		one := boundary.RawOneBufferResult{Status: boundary.Ok}
		one.Buffer.Buffer = boundary.RawBuffer{Ptr: base + 1, Len: 16}
		_, err = boundary.OneBufferFromForeign(one)
		Expect(err).To(MatchError(boundary.ErrIncorrectAlignment))

		one.Buffer.Buffer = boundary.RawBuffer{Ptr: base, Len: 16}
		one.Buffer.Ownership = 3
		_, err = boundary.OneBufferFromForeign(one)
		Expect(err).To(MatchError(`boundary: from_foreign: invalid_input at buffer.ownership: unknown ownership 3`))
	})

	It("should carry sentinel exponents on failure", func() {
		res := boundary.ExponentsOK(boundary.Exponents{E: 14, F: 12})
		Expect(res.Err()).NotTo(HaveOccurred())
		Expect(res.Exponents.String()).To(Equal("(e=14, f=12)"))

		res = boundary.ExponentsErr(boundary.ErrEncodingFailed)
		Expect(res.Status).To(Equal(boundary.EncodingFailed))
		Expect(res.Exponents).To(Equal(boundary.InvalidExponents))

		res = boundary.ExponentsFromForeign(boundary.ExponentsResult{Status: -3, Exponents: boundary.Exponents{E: 1}})
		Expect(res.Status).To(Equal(boundary.UnknownError))
		Expect(res.Exponents).To(Equal(boundary.InvalidExponents))
	})
})
