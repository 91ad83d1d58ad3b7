package wasmmem_test

import (
	"errors"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/kernels"
	"github.com/bsm/coltable/wasmmem"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tetratelabs/wazero"
)

var _ = Describe("Memory", func() {
	var runtime wazero.Runtime
	var subject *wasmmem.Memory

	BeforeEach(func() {
		runtime = wazero.NewRuntime(ctx)

		mod, err := runtime.Instantiate(ctx, memoryModule)
		Expect(err).NotTo(HaveOccurred())

		subject, err = wasmmem.FromModule(mod)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(runtime.Close(ctx)).To(Succeed())
	})

	It("should require exported memory", func() {
		mod, err := runtime.InstantiateWithConfig(ctx, emptyModule, wazero.NewModuleConfig().WithName("empty"))
		Expect(err).NotTo(HaveOccurred())

		_, err = wasmmem.FromModule(mod)
		Expect(err).To(MatchError(`wasmmem: module "empty" exports no memory`))
	})

	It("should expose guest buffers", func() {
		Expect(subject.Size()).To(Equal(uint32(65536)))

		raw, err := subject.WriteBuffer(128, []byte("guest data"))
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(Equal(boundary.RawBuffer{Ptr: 128, Len: 10}))

		buf, err := subject.Buffer(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.Aligned()).To(BeTrue())
		Expect(string(buf.Bytes())).To(Equal("guest data"))
	})

	It("should reject misaligned guest offsets before reading", func() {
		_, err := subject.Buffer(boundary.RawBuffer{Ptr: 127, Len: 8})
		Expect(err).To(MatchError(boundary.ErrIncorrectAlignment))
		Expect(err.Error()).To(ContainSubstring("address 0x7f is not a multiple of 64 (off by 63)"))

		_, err = subject.Buffer(boundary.RawBuffer{Ptr: 1 << 40, Len: 8})
		Expect(err).To(MatchError(boundary.ErrInvalidInput))

		_, err = subject.Buffer(boundary.RawBuffer{Ptr: 65536 - 64, Len: 128})
		Expect(err).To(MatchError(boundary.ErrInvalidInput))

		_, err = subject.WriteBuffer(100, []byte("x"))
		Expect(err).To(MatchError(boundary.ErrIncorrectAlignment))
	})

	It("should decode guest envelopes", func() {
		data, err := subject.WriteBuffer(256, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		Expect(err).NotTo(HaveOccurred())

		Expect(subject.WriteOneBufferResult(64, boundary.RawOneBufferResult{
			Status: boundary.Ok,
			Buffer: boundary.RawWrittenBuffer{Buffer: data, BitSizePerElement: 64, NumElements: 1, InputBytesUsed: 8},
		})).To(Succeed())

		res, err := subject.ReadOneBufferResult(64)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Err()).NotTo(HaveOccurred())
		Expect(res.Buffer.Bytes()).To(Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
		Expect(res.Buffer.Validate(8)).To(Succeed())

		out := boundary.Alloc(8)
		copied := kernels.Copy(res.Buffer.Buffer, 64, boundary.InitFromBytes(out))
		Expect(copied.Err()).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
	})

	It("should reject guest envelopes as a whole", func() {
		data, err := subject.WriteBuffer(256, make([]byte, 32))
		Expect(err).NotTo(HaveOccurred())

		Expect(subject.WriteTwoBufferResult(512, boundary.RawTwoBufferResult{
			Status:    boundary.Ok,
			Primary:   boundary.RawWrittenBuffer{Buffer: data},
			Secondary: boundary.RawWrittenBuffer{Buffer: boundary.RawBuffer{Ptr: 264, Len: 8}},
		})).To(Succeed())

		res, err := subject.ReadTwoBufferResult(512)
		Expect(err).To(MatchError(ContainSubstring("incorrect_alignment at secondary.buffer")))
		Expect(res).To(Equal(boundary.TwoBufferResult{}))

		var ae *boundary.AlignmentError
		Expect(errors.As(err, &ae)).To(BeTrue())
		Expect(ae.Addr).To(Equal(uintptr(264)))

		_, err = subject.ReadOneBufferResult(4)
		Expect(err).To(MatchError(boundary.ErrIncorrectAlignment))

		_, err = subject.ReadOneBufferResult(65536 - 16)
		Expect(err).To(MatchError(boundary.ErrInvalidInput))
	})

	It("should normalize unknown guest statuses", func() {
		Expect(subject.WriteOneBufferResult(0, boundary.RawOneBufferResult{Status: 77})).To(Succeed())

		res, err := subject.ReadOneBufferResult(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Status).To(Equal(boundary.UnknownError))
		Expect(res.Err()).To(MatchError(boundary.ErrUnknown))
	})
})
