package coltable_test

import (
	"bytes"
	"errors"

	"github.com/bsm/coltable"
	json "github.com/goccy/go-json"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Schema", func() {
	It("should encode as JSON", func() {
		p, err := json.Marshal(testSchema.Fields[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(p)).To(Equal(`{"name":"id","type":"uint64","encoding":"bitpacked"}`))

		var f coltable.Field
		Expect(json.Unmarshal([]byte(`{"name":"x","type":"float64","encoding":"alp"}`), &f)).To(Succeed())
		Expect(f).To(Equal(coltable.Field{Name: "x", Type: coltable.Float64, Encoding: coltable.ALP}))

		Expect(json.Unmarshal([]byte(`{"name":"x","type":"int8"}`), &f)).To(MatchError(ContainSubstring(`coltable: unknown type "int8"`)))
		Expect(json.Unmarshal([]byte(`{"name":"x","type":"int64","encoding":"rle"}`), &f)).To(MatchError(ContainSubstring(`coltable: unknown encoding "rle"`)))
	})

	It("should find fields", func() {
		Expect(testSchema.Index("qty")).To(Equal(2))
		Expect(testSchema.Index("missing")).To(Equal(-1))
	})

	It("should describe types", func() {
		Expect(coltable.Uint32.Size()).To(Equal(4))
		Expect(coltable.Float64.Size()).To(Equal(8))
		Expect(coltable.Int32.Bits()).To(Equal(uint8(32)))
		Expect(coltable.Uint64.Unsigned()).To(BeTrue())
		Expect(coltable.Int64.Unsigned()).To(BeFalse())
		Expect(coltable.PType(0).Valid()).To(BeFalse())
		Expect(coltable.PType(9).String()).To(Equal("ptype(9)"))
	})

	It("should store the normalized schema", func() {
		schema := &coltable.Schema{Fields: []coltable.Field{{Name: "a", Type: coltable.Int64}}}

		buf := new(bytes.Buffer)
		w, err := coltable.NewWriter(buf, schema, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Close()).To(Succeed())
		Expect(schema.Fields[0].Encoding).To(BeZero())

		r := bytes.NewReader(buf.Bytes())
		ps, err := coltable.ReadPostscript(r, r.Size())
		Expect(err).NotTo(HaveOccurred())

		stored, err := coltable.ReadSchema(r, r.Size(), ps)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Fields).To(Equal([]coltable.Field{{Name: "a", Type: coltable.Int64, Encoding: coltable.Plain}}))
	})

	It("should marshal default encodings as plain", func() {
		schema := &coltable.Schema{Fields: []coltable.Field{{Name: "a", Type: coltable.Uint64}}}
		Expect(schema.Validate()).To(Succeed())

		section, err := coltable.MarshalSchema(schema)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(section)).To(ContainSubstring(`{"fields":[{"name":"a","type":"uint64","encoding":"plain"}]}`))
		Expect(schema.Fields[0].Encoding).To(BeZero())

		data := append(section, coltable.MarshalPostscript(coltable.Postscript{FooterOffset: uint64(len(section))})...)
		r := bytes.NewReader(data)
		stored, err := coltable.ReadSchema(r, r.Size(), coltable.Postscript{FooterOffset: uint64(len(section))})
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Fields).To(Equal([]coltable.Field{{Name: "a", Type: coltable.Uint64, Encoding: coltable.Plain}}))

		_, err = coltable.MarshalSchema(&coltable.Schema{Fields: []coltable.Field{{Name: "a"}}})
		Expect(err).To(MatchError(`coltable: field "a" has invalid type ptype(0)`))
	})

	It("should reject malformed schemas", func() {
		for _, body := range []string{
			`{"fields":[{"name":"a","type":"int8"}]}`,
			`{"fields":[{"name":"a","type":"int32"},{"name":"a","type":"int32"}]}`,
			`not json`,
		} {
			section := append([]byte{byte(len(body))}, body...)
			section = append(section, blake3Sum([]byte(body))...)
			data := append(section, coltable.MarshalPostscript(coltable.Postscript{FooterOffset: uint64(len(section))})...)

			_, err := coltable.Open(bytes.NewReader(data), int64(len(data)), nil)
			Expect(err).To(MatchError(ContainSubstring(`coltable: corrupt schema at offset 1`)), "for %s", body)
			Expect(errors.Is(err, coltable.ErrCorrupt)).To(BeTrue())
		}
	})
})
