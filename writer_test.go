package coltable_test

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"

	"github.com/bsm/coltable"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer
	var subject *coltable.Writer

	BeforeEach(func() {
		var err error
		buf = new(bytes.Buffer)
		subject, err = coltable.NewWriter(buf, testSchema, nil)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = subject.Close()
	})

	openBuffer := func() *coltable.Reader {
		r, err := coltable.Open(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return r
	}

	It("should write empty", func() {
		w, err := coltable.NewWriter(buf, &coltable.Schema{}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		Expect(buf.Len()).To(Equal(44))
		Expect(buf.String()[buf.Len()-8:]).To(Equal("\x43\x54\x42\x4c\x9e\x21\x5a\x0d"))

		r := openBuffer()
		Expect(r.NumRows()).To(BeZero())
		Expect(r.Footer().Layout).To(BeNil())
	})

	It("should write columns without rows", func() {
		Expect(subject.Close()).To(Succeed())

		r := openBuffer()
		Expect(r.NumRows()).To(BeZero())
		Expect(r.Footer().Layout.Encoding).To(Equal(coltable.Struct))
		Expect(r.Footer().Layout.Children).To(HaveLen(6))
	})

	It("should validate schemas", func() {
		for _, tc := range []struct {
			field coltable.Field
			msg   string
		}{
			{coltable.Field{Type: coltable.Uint64}, `coltable: field 1 has no name`},
			{coltable.Field{Name: "a", Type: coltable.Uint64}, `coltable: duplicate field "a"`},
			{coltable.Field{Name: "b"}, `coltable: field "b" has invalid type ptype(0)`},
			{coltable.Field{Name: "b", Type: coltable.Int32, Encoding: coltable.BitPacked}, `coltable: field "b" cannot bit-pack int32 values`},
			{coltable.Field{Name: "b", Type: coltable.Float32, Encoding: coltable.ALP}, `coltable: field "b" cannot ALP-encode float32 values`},
			{coltable.Field{Name: "b", Type: coltable.Uint64, Encoding: coltable.Chunked}, `coltable: field "b" has unsupported encoding chunked`},
			{coltable.Field{Name: "b", Type: coltable.Uint64, Encoding: 7}, `coltable: field "b" has unsupported encoding encoding(7)`},
		} {
			schema := &coltable.Schema{Fields: []coltable.Field{{Name: "a", Type: coltable.Uint64}, tc.field}}
			_, err := coltable.NewWriter(buf, schema, nil)
			Expect(err).To(MatchError(tc.msg))
		}
	})

	It("should validate appends", func() {
		Expect(subject.Append(9, nil)).To(MatchError(`coltable: column 9 out of range [0, 6)`))
		Expect(subject.Append(-1, nil)).To(MatchError(`coltable: column -1 out of range [0, 6)`))
		Expect(subject.Append(0, []byte{1, 2, 3})).To(MatchError(`coltable: 3 bytes is not a multiple of 8-byte uint64 values`))
		Expect(coltable.AppendValues(subject, 0, int32(1))).To(MatchError(`coltable: column "id" holds uint64 values, not int32`))
		Expect(coltable.AppendValues(subject, 6, int32(1))).To(MatchError(`coltable: column 6 out of range [0, 6)`))
	})

	It("should require equal column lengths", func() {
		Expect(coltable.AppendValues(subject, 0, uint64(1), uint64(2))).To(Succeed())
		Expect(subject.Close()).To(MatchError(`coltable: column "price" has 0 rows, expected 2`))
	})

	It("should prevent use after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Close()).To(MatchError(coltable.ErrClosed))
		Expect(subject.Append(0, nil)).To(MatchError(coltable.ErrClosed))
		Expect(coltable.AppendValues[uint64](subject, 0)).To(MatchError(coltable.ErrClosed))
	})

	It("should write chunks", func() {
		data, err := seedFile(300, &coltable.WriterOptions{ChunkRows: 128})
		Expect(err).NotTo(HaveOccurred())
		_, _ = buf.Write(data)

		r := openBuffer()
		Expect(r.NumRows()).To(Equal(uint64(300)))

		expected := []coltable.Encoding{
			coltable.BitPacked,
			coltable.ALP,
			coltable.Snappy,
			coltable.Zstd,
		}
		for col, enc := range expected {
			layout, err := r.Column(col)
			Expect(err).NotTo(HaveOccurred())
			Expect(layout.Encoding).To(Equal(coltable.Chunked))
			Expect(layout.Children).To(HaveLen(3))
			Expect(layout.Metadata).To(Equal([]byte{0x80, 0x01, 0x80, 0x01, 44}))
			Expect(layout.Children[0].Encoding).To(Equal(enc), "column %d", col)
		}

		ids, err := r.Column(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids.Children[0].Metadata).To(Equal([]byte{byte(coltable.Uint64), 0x80, 0x01, 9}))
		Expect(ids.Children[0].Buffers[0].Len()).To(Equal(uint64(144)))

		flags, err := r.Column(5)
		Expect(err).NotTo(HaveOccurred())
		for _, c := range flags.Children {
			Expect(c.Encoding).To(Equal(coltable.Plain))
		}
		Expect(flags.Children[2].Buffers[0].Len()).To(Equal(uint64(44 * 4)))

		alp, err := r.Column(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(alp.Children[0].Children).To(HaveLen(2))
	})

	It("should align data buffers", func() {
		data, err := seedFile(1000, &coltable.WriterOptions{ChunkRows: 100})
		Expect(err).NotTo(HaveOccurred())
		_, _ = buf.Write(data)

		r := openBuffer()
		n := 0
		Expect(r.Footer().Layout.Walk(func(l *coltable.Layout, _ int) error {
			for _, b := range l.Buffers {
				Expect(b.Begin % 64).To(BeZero(), "buffer %s", b)
				n++
			}
			return nil
		})).To(Succeed())
		Expect(n).To(BeNumerically(">=", 60))
	})

	It("should fall back to plain when ALP cannot encode", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		schema := &coltable.Schema{Fields: []coltable.Field{{Name: "x", Type: coltable.Float64, Encoding: coltable.ALP}}}
		w, err := coltable.NewWriter(buf, schema, &coltable.WriterOptions{Logger: zap.New(core)})
		Expect(err).NotTo(HaveOccurred())
		Expect(coltable.AppendValues(w, 0, math.NaN(), math.NaN(), math.Inf(1))).To(Succeed())
		Expect(w.Close()).To(Succeed())
		Expect(logs.FilterMessage("coltable alp fallback").Len()).To(Equal(1))

		r := openBuffer()
		layout, err := r.Column(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(layout.Children[0].Encoding).To(Equal(coltable.Plain))

		vals, err := coltable.ReadValues[float64](context.Background(), r, 0, 0, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsNaN(vals[0])).To(BeTrue())
		Expect(math.IsNaN(vals[1])).To(BeTrue())
		Expect(math.IsInf(vals[2], 1)).To(BeTrue())
	})

	It("should store incompressible chunks plain", func() {
		rnd := rand.New(rand.NewSource(1))
		vals := make([]uint64, 100)
		for i := range vals {
			vals[i] = rnd.Uint64()
		}

		schema := &coltable.Schema{Fields: []coltable.Field{{Name: "x", Type: coltable.Uint64, Encoding: coltable.Snappy}}}
		w, err := coltable.NewWriter(buf, schema, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(coltable.AppendValues(w, 0, vals...)).To(Succeed())
		Expect(w.Close()).To(Succeed())

		r := openBuffer()
		layout, err := r.Column(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(layout.Children[0].Encoding).To(Equal(coltable.Plain))

		got, err := coltable.ReadValues[uint64](context.Background(), r, 0, 0, 100)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vals))
	})

	It("should not re-flush chunks after a failed write", func() {
		fw := &flakyWriter{failAt: 2}
		schema := &coltable.Schema{Fields: []coltable.Field{{Name: "x", Type: coltable.Uint32}}}
		w, err := coltable.NewWriter(fw, schema, &coltable.WriterOptions{ChunkRows: 2})
		Expect(err).NotTo(HaveOccurred())

		err = coltable.AppendValues(w, 0, uint32(0), 1, 2, 3, 4, 5)
		Expect(err).To(MatchError(`coltable: encode "x": disk full`))
		Expect(w.Close()).To(Succeed())

		r, err := coltable.Open(bytes.NewReader(fw.Bytes()), int64(fw.Len()), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.NumRows()).To(Equal(uint64(6)))

		layout, err := r.Column(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(layout.Children).To(HaveLen(2))

		got, err := coltable.ReadValues[uint32](context.Background(), r, 0, 0, 6)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]uint32{0, 1, 2, 3, 4, 5}))
	})
})

// flakyWriter fails its failAt-th write without consuming any bytes.
type flakyWriter struct {
	bytes.Buffer
	writes, failAt int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.writes++; w.writes == w.failAt {
		return 0, errors.New("disk full")
	}
	return w.Buffer.Write(p)
}
