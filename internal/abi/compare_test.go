package abi_test

import (
	"reflect"
	"strings"

	"github.com/bsm/coltable/internal/abi"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/multierr"
)

type testStatus int32

func (testStatus) ABIEnum() {}

type narrowStatus int16

func (narrowStatus) ABIEnum() {}

type testBuf struct {
	Ptr uintptr `abi:"ptr,ptr=many,elem=u8,align=64"`
	Len uint64
}

type testResult struct {
	Status testStatus
	Buf    testBuf
	Bits   uint8
}

type narrowResult struct {
	Status narrowStatus `abi:"status"`
	Buf    testBuf      `abi:"buf"`
	Bits   uint8        `abi:"bits"`
}

type swappedResult struct {
	Buf    testBuf
	Status testStatus
	Bits   uint8
}

type looseBuf struct {
	Ptr uintptr `abi:"ptr,ptr=many,elem=u8,align=32"`
	Len uint64  `abi:"len"`
}

type halfAsInt struct {
	Value int16
	Scale uint16
}

type halfAsUint struct {
	Value uint16
	Scale uint16
}

var _ = Describe("Compare", func() {
	var schema *abi.Schema

	native := func(name string) *abi.Type {
		t, ok := schema.Struct(name)
		Expect(ok).To(BeTrue())
		return t
	}

	host := func(v interface{}) *abi.Type {
		t, err := abi.Reflect(reflect.TypeOf(v))
		Expect(err).NotTo(HaveOccurred())
		return t
	}

	BeforeEach(func() {
		var err error
		schema, err = abi.ParseSchema([]byte(testSchema))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reflect host structs", func() {
		t := host(testResult{})
		Expect(t.Size()).To(Equal(32))
		Expect(t.Fields).To(HaveLen(3))
		Expect(t.Fields[0].Name).To(Equal("status"))
		Expect(t.Fields[0].Type.String()).To(Equal("enum testStatus(i32)"))
		Expect(t.Fields[1].Type.Fields[0].Type.String()).To(Equal("[*]align(64) u8"))
		Expect(t.Fields[2].GoName).To(Equal("Bits"))
		Expect(t.Fields[2].Offset).To(Equal(24))
	})

	It("should reject types that cannot cross", func() {
		_, err := abi.Reflect(reflect.TypeOf(struct{ Name string }{}))
		Expect(err).To(MatchError(ContainSubstring("string cannot cross the boundary")))
	})

	It("should accept matching structs", func() {
		Expect(abi.CompareStruct("Buf", host(testBuf{}), native("Buf"))).To(Succeed())
		Expect(abi.CompareStruct("Result", host(testResult{}), native("Result"))).To(Succeed())
	})

	It("should reject enum width changes", func() {
		err := abi.CompareStruct("Result", host(narrowResult{}), native("Result"))
		Expect(err).To(MatchError(ContainSubstring("Result.status: enum tag width differs (host enum narrowStatus(i16), native enum Status(i32))")))
	})

	It("should reject reordered fields", func() {
		err := abi.CompareStruct("Result", host(swappedResult{}), native("Result"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Result[0]: field name or order differs (host buf, native status)"))
		Expect(err.Error()).To(ContainSubstring("Result[1]: field name or order differs (host status, native buf)"))
	})

	It("should reject pointer alignment changes in struct fields", func() {
		err := abi.CompareStruct("Buf", host(looseBuf{}), native("Buf"))
		Expect(err).To(MatchError(ContainSubstring("Buf.ptr: pointer alignment differs (host [*]align(32) u8, native [*]align(64) u8)")))
	})

	It("should reject field alignment changes", func() {
		s, err := abi.ParseSchema([]byte(strings.Replace(testSchema, "{name: len, type: u64}", "{name: len, type: u64, align: 16}", 1)))
		Expect(err).NotTo(HaveOccurred())

		buf, _ := s.Struct("Buf")
		err = abi.CompareStruct("Buf", host(testBuf{}), buf)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("Buf: size differs"))
		Expect(err.Error()).To(ContainSubstring("Buf.len: field alignment differs (host u64 (align 8), native u64 (align 16))"))
		Expect(multierr.Errors(err)).To(HaveLen(2))
	})

	It("should reject comptime fields", func() {
		s, err := abi.ParseSchema([]byte(strings.Replace(testSchema, "{name: bits, type: u8}", "{name: bits, type: u8, comptime: true}", 1)))
		Expect(err).NotTo(HaveOccurred())

		res, _ := s.Struct("Result")
		err = abi.CompareStruct("Result", host(testResult{}), res)
		Expect(err).To(MatchError(ContainSubstring("Result.bits: comptime status differs")))
	})

	It("should accept i16 for f16", func() {
		Expect(abi.CompareStruct("Half", host(halfAsInt{}), native("Half"))).To(Succeed())

		err := abi.CompareStruct("Half", host(halfAsUint{}), native("Half"))
		Expect(err).To(MatchError(ContainSubstring("Half.value: kind differs (host u16, native f16)")))
	})

	Describe("functions", func() {
		It("should accept matching signatures", func() {
			fn, err := abi.ReflectFunc("encode", "c", reflect.TypeOf(func(testBuf, uint8) testResult { return testResult{} }))
			Expect(err).NotTo(HaveOccurred())

			nfn, _ := schema.Func("encode")
			Expect(abi.CompareFunc(fn, nfn)).To(Succeed())
		})

		It("should exempt pointer params from alignment checks", func() {
			fn, err := abi.ReflectFunc("fill", "c", reflect.TypeOf(func(*[2]uint32, uint64) {}))
			Expect(err).NotTo(HaveOccurred())
			Expect(fn.Params[0].PtrAlign).To(Equal(4))

			nfn, _ := schema.Func("fill")
			err = abi.CompareFunc(fn, nfn)
			Expect(err).To(MatchError(ContainSubstring("fill.param[0].*: kind differs")))
			Expect(err.Error()).NotTo(ContainSubstring("alignment"))

			fn, err = abi.ReflectFunc("fill", "c", reflect.TypeOf(func(*uint64, uint64) {}))
			Expect(err).NotTo(HaveOccurred())
			Expect(abi.CompareFunc(fn, nfn)).To(Succeed())
		})

		It("should reject convention and arity changes", func() {
			fn, err := abi.ReflectFunc("encode", "go", reflect.TypeOf(func(testBuf) testResult { return testResult{} }))
			Expect(err).NotTo(HaveOccurred())
			fn.Variadic = true

			nfn, _ := schema.Func("encode")
			err = abi.CompareFunc(fn, nfn)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("encode: calling convention differs (host go, native c)"))
			Expect(err.Error()).To(ContainSubstring("encode: variadic differs"))
			Expect(err.Error()).To(ContainSubstring("encode: parameter count differs"))
			Expect(multierr.Errors(err)).To(HaveLen(3))
		})

		It("should reject multiple returns", func() {
			_, err := abi.ReflectFunc("encode", "c", reflect.TypeOf(func() (uint8, error) { return 0, nil }))
			Expect(err).To(MatchError(`abi: encode: multiple return values cannot cross the boundary`))
		})
	})

	Describe("Verify", func() {
		It("should aggregate all mismatches", func() {
			err := schema.Verify([]abi.StructDecl{
				{Native: "Buf", Host: reflect.TypeOf(testBuf{})},
				{Native: "Buf", Host: reflect.TypeOf(looseBuf{})},
				{Native: "Result", Host: reflect.TypeOf(narrowResult{})},
				{Native: "Missing", Host: reflect.TypeOf(testBuf{})},
			}, nil)
			Expect(multierr.Errors(err)).To(HaveLen(4))
			Expect(err.Error()).To(ContainSubstring("Buf<looseBuf>.ptr: pointer alignment differs"))
			Expect(err.Error()).To(ContainSubstring("Result<narrowResult>.status: enum tag width differs"))
			Expect(err.Error()).To(ContainSubstring("abi: Missing: no such struct in interface definition"))
		})
	})
})
