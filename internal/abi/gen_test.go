package abi_test

import (
	"reflect"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/internal/abi"
	"github.com/bsm/coltable/kernels"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("GenerateAssertions", func() {
	var schema *abi.Schema
	var structs abi.Target
	var funcs abi.Target

	BeforeEach(func() {
		var err error
		schema, err = abi.ParseSchema(boundary.InterfaceDefinition)
		Expect(err).NotTo(HaveOccurred())

		structs = abi.Target{
			Package:   "boundary",
			Path:      "github.com/bsm/coltable/boundary",
			Alignment: boundary.Alignment,
		}
		for _, d := range boundary.Declarations() {
			structs.Structs = append(structs.Structs, abi.StructDecl{Native: d.Native, Host: d.Host})
		}

		funcs = abi.Target{
			Package: "kernels",
			Path:    "github.com/bsm/coltable/kernels",
		}
		for _, e := range kernels.Exports {
			funcs.Funcs = append(funcs.Funcs, abi.FuncDecl{Native: e.Name, GoName: e.GoName(), CallConv: e.CallConv, Host: reflect.TypeOf(e.Func)})
		}
	})

	It("should generate struct assertions", func() {
		src, err := abi.GenerateAssertions(schema, structs)
		Expect(err).NotTo(HaveOccurred())

		out := string(src)
		Expect(out).To(HavePrefix("// Code generated by \"coltable abi gen\"; DO NOT EDIT.\n"))
		Expect(out).To(ContainSubstring("//go:build amd64 || arm64"))
		Expect(out).To(ContainSubstring("package boundary\n"))
		Expect(out).To(ContainSubstring("import (\n\t\"unsafe\"\n)\n"))
		Expect(out).To(ContainSubstring("\t_ = x[Alignment-64]\n\t_ = x[64-Alignment]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Sizeof(ByteBuffer{})-16]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Offsetof(WrittenBuffer{}.Ownership)-17]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Offsetof(RawTwoBufferResult{}.Secondary)-48]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Alignof(ExponentsResult{})-4]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Sizeof(Status(0))-4]\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Sizeof(Ownership(0))-1]\n"))
		Expect(out).To(ContainSubstring("\tvar _ unsafe.Pointer = ByteBuffer{}.Ptr\n"))
		Expect(out).To(ContainSubstring("\tvar _ uint8 = WrittenBuffer{}.BitSizePerElement\n"))
		Expect(out).To(ContainSubstring("\tvar _ Ownership = WrittenBuffer{}.Ownership\n"))
		Expect(out).To(ContainSubstring("\t_ = Status(-2147483648)\n"))
		Expect(out).To(ContainSubstring("\t_ = Ownership(255)\n"))
	})

	It("should generate signature assertions", func() {
		src, err := abi.GenerateAssertions(schema, funcs)
		Expect(err).NotTo(HaveOccurred())

		out := string(src)
		Expect(out).To(ContainSubstring("package kernels\n"))
		Expect(out).To(ContainSubstring("\t\"github.com/bsm/coltable/boundary\"\n"))
		Expect(out).To(ContainSubstring("\t_ = x[unsafe.Sizeof(Codec(0))-1]\n"))
		Expect(out).To(ContainSubstring("\t_ = Codec(255)\n"))
		Expect(out).To(ContainSubstring("\tvar _ func(Codec, uint64) uint64 = CompressBound\n"))
		Expect(out).To(ContainSubstring("\tvar _ func(boundary.ByteBuffer, boundary.Exponents, boundary.ByteBuffer, boundary.ByteBuffer) boundary.TwoBufferResult = EncodeALP\n"))
		Expect(out).NotTo(ContainSubstring("Alignment"))
	})

	It("should refuse to generate for drifted structs", func() {
		type ByteBuffer struct {
			Ptr uintptr `abi:"ptr,ptr=many,elem=u8,align=64"`
			Len uint32  `abi:"len"`
		}
		structs.Structs = append(structs.Structs, abi.StructDecl{Native: "ByteBuffer", Host: reflect.TypeOf(ByteBuffer{})})

		src, err := abi.GenerateAssertions(schema, structs)
		Expect(err).To(MatchError(ContainSubstring("ByteBuffer<ByteBuffer>.len: integer width or signedness differs (host u32, native u64)")))
		Expect(src).To(BeNil())
	})

	It("should refuse to generate for drifted alignment", func() {
		structs.Alignment = 128

		src, err := abi.GenerateAssertions(schema, structs)
		Expect(err).To(MatchError(`abi: buffer alignment differs (host 128, native 64)`))
		Expect(src).To(BeNil())
	})

	It("should refuse to generate for drifted signatures", func() {
		funcs.Funcs = append(funcs.Funcs, abi.FuncDecl{
			Native:   "coltable_compress_bound",
			GoName:   "compressBound",
			CallConv: "c",
			Host:     reflect.TypeOf(func(uint32, uint64) uint64 { return 0 }),
		})

		src, err := abi.GenerateAssertions(schema, funcs)
		Expect(err).To(HaveOccurred())
		Expect(src).To(BeNil())
	})

	It("should require Go function names", func() {
		funcs.Funcs[0].GoName = ""

		_, err := abi.GenerateAssertions(schema, funcs)
		Expect(err).To(MatchError(ContainSubstring("missing Go function name")))
	})
})
