package kernels_test

import (
	"bytes"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/kernels"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Compress", func() {
	input := bytes.Repeat([]byte("coltable compresses columns. "), 200)

	table.DescribeTable("round trip",
		func(codec kernels.Codec) {
			bound := kernels.CompressBound(codec, uint64(len(input)))
			Expect(bound).To(BeNumerically(">=", len(input)))

			res := kernels.Compress(codec, aligned(input), alloc(int(bound)))
			Expect(res.Err()).NotTo(HaveOccurred())
			Expect(res.Buffer.Ownership).To(Equal(boundary.Borrowed))
			Expect(res.Buffer.InputBytesUsed).To(Equal(uint64(len(input))))
			if codec != kernels.None {
				Expect(res.Buffer.Buffer.Len).To(BeNumerically("<", len(input)))
			}

			dec := kernels.Decompress(codec, aligned(res.Buffer.Bytes()), alloc(len(input)))
			Expect(dec.Err()).NotTo(HaveOccurred())
			Expect(dec.Buffer.Bytes()).To(Equal(input))
		},
		table.Entry("none", kernels.None),
		table.Entry("snappy", kernels.Snappy),
		table.Entry("zstd", kernels.Zstd),
		table.Entry("lz4", kernels.LZ4),
	)

	table.DescribeTable("empty input",
		func(codec kernels.Codec) {
			res := kernels.CompressAlloc(codec, aligned(nil))
			Expect(res.Err()).NotTo(HaveOccurred())

			dec := kernels.Decompress(codec, aligned(res.Buffer.Bytes()), alloc(0))
			Expect(dec.Err()).NotTo(HaveOccurred())
			Expect(dec.Buffer.Buffer.Len).To(BeZero())
		},
		table.Entry("none", kernels.None),
		table.Entry("snappy", kernels.Snappy),
		table.Entry("zstd", kernels.Zstd),
		table.Entry("lz4", kernels.LZ4),
	)

	It("should allocate on behalf of the caller", func() {
		res := kernels.CompressAlloc(kernels.Zstd, aligned(input))
		Expect(res.Err()).NotTo(HaveOccurred())
		Expect(res.Buffer.Ownership).To(Equal(boundary.CalleeAllocated))
		Expect(res.Buffer.Buffer.Aligned()).To(BeTrue())

		dec := kernels.Decompress(kernels.Zstd, res.Buffer.Buffer, alloc(len(input)))
		Expect(dec.Buffer.Bytes()).To(Equal(input))
		boundary.Free(res.Buffer.Bytes())
	})

	It("should reject short output buffers", func() {
		for _, codec := range []kernels.Codec{kernels.None, kernels.Snappy, kernels.Zstd, kernels.LZ4} {
			res := kernels.Compress(codec, aligned(input), alloc(len(input)/2))
			Expect(res.Status).To(Equal(boundary.OutputBufferTooSmall), "for %s", codec)
			Expect(res.Buffer.Buffer.Len).To(BeZero())
		}

		packed := kernels.CompressAlloc(kernels.Snappy, aligned(input))
		Expect(kernels.Decompress(kernels.Snappy, packed.Buffer.Buffer, alloc(len(input)-1)).Status).To(Equal(boundary.OutputBufferTooSmall))

		packed = kernels.CompressAlloc(kernels.Zstd, aligned(input))
		Expect(kernels.Decompress(kernels.Zstd, packed.Buffer.Buffer, alloc(len(input)-1)).Status).To(Equal(boundary.OutputBufferTooSmall))

		packed = kernels.CompressAlloc(kernels.LZ4, aligned(input))
		Expect(kernels.Decompress(kernels.LZ4, packed.Buffer.Buffer, alloc(len(input)-1)).Status).To(Equal(boundary.OutputBufferTooSmall))
	})

	It("should reject corrupt input", func() {
		garbage := aligned([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01, 0x02})
		Expect(kernels.Decompress(kernels.Snappy, garbage, alloc(64)).Status).To(Equal(boundary.InvalidInput))
		Expect(kernels.Decompress(kernels.Zstd, garbage, alloc(64)).Status).To(Equal(boundary.InvalidInput))
		Expect(kernels.Decompress(kernels.LZ4, garbage, alloc(64)).Status).To(Equal(boundary.InvalidInput))
	})

	It("should reject unknown codecs", func() {
		Expect(kernels.CompressBound(9, 100)).To(BeZero())
		Expect(kernels.Compress(9, aligned(input), alloc(len(input))).Status).To(Equal(boundary.InvalidInput))
		Expect(kernels.CompressAlloc(9, aligned(input)).Status).To(Equal(boundary.InvalidInput))
		Expect(kernels.Decompress(9, aligned(input), alloc(len(input))).Status).To(Equal(boundary.InvalidInput))
		Expect(kernels.Codec(9).String()).To(Equal("codec(9)"))
	})
})
