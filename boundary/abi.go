package boundary

import (
	_ "embed"
	"reflect"
)

// InterfaceDefinition is the shared interface-definition file (abi.yaml).
//
//go:embed abi.yaml
var InterfaceDefinition []byte

// Declaration pairs a host-side Go type with the struct it mirrors in the
// interface definition.
type Declaration struct {
	Native string
	Host   reflect.Type
}

// Declarations lists every struct shared across the boundary.
func Declarations() []Declaration {
	return []Declaration{
		{Native: "ByteBuffer", Host: reflect.TypeOf(ByteBuffer{})},
		{Native: "ByteBuffer", Host: reflect.TypeOf(RawBuffer{})},
		{Native: "WrittenBuffer", Host: reflect.TypeOf(WrittenBuffer{})},
		{Native: "WrittenBuffer", Host: reflect.TypeOf(RawWrittenBuffer{})},
		{Native: "OneBufferResult", Host: reflect.TypeOf(OneBufferResult{})},
		{Native: "OneBufferResult", Host: reflect.TypeOf(RawOneBufferResult{})},
		{Native: "TwoBufferResult", Host: reflect.TypeOf(TwoBufferResult{})},
		{Native: "TwoBufferResult", Host: reflect.TypeOf(RawTwoBufferResult{})},
		{Native: "Exponents", Host: reflect.TypeOf(Exponents{})},
		{Native: "ExponentsResult", Host: reflect.TypeOf(ExponentsResult{})},
	}
}
