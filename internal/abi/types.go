package abi

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the category of a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindEnum
	KindPointer
	KindArray
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// PtrSize is the indirection kind of a pointer.
type PtrSize uint8

const (
	PtrOne   PtrSize = iota // single item
	PtrMany                 // unknown number of items
	PtrC                    // C pointer, may be null
	PtrSlice                // pointer + length
)

func (s PtrSize) String() string {
	switch s {
	case PtrOne:
		return "one"
	case PtrMany:
		return "many"
	case PtrC:
		return "c"
	case PtrSlice:
		return "slice"
	}
	return fmt.Sprintf("ptrsize(%d)", s)
}

func parsePtrSize(s string) (PtrSize, error) {
	switch s {
	case "one":
		return PtrOne, nil
	case "many":
		return PtrMany, nil
	case "c":
		return PtrC, nil
	case "slice":
		return PtrSlice, nil
	}
	return 0, fmt.Errorf("abi: unknown pointer size %q", s)
}

// DefaultAddrSpace is the address space of ordinary pointers.
const DefaultAddrSpace = "generic"

// Type describes the memory shape of a value.
type Type struct {
	Kind   Kind
	Name   string // enum and struct names
	Bits   int    // total size in bits
	Align  int    // storage alignment in bytes
	Signed bool   // ints and enums

	// pointers and arrays
	Elem      *Type
	PtrSize   PtrSize
	PtrAlign  int // alignment of the pointee
	AddrSpace string
	Len       int

	Fields []Field
}

// Field is a struct member.
type Field struct {
	Name     string
	GoName   string // host side only
	Type     *Type
	Offset   int
	Align    int
	Comptime bool
}

// Size returns the size in bytes.
func (t *Type) Size() int { return t.Bits / 8 }

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind {
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindInt:
		return intName(t.Bits, t.Signed)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case KindEnum:
		return fmt.Sprintf("enum %s(%s)", t.Name, intName(t.Bits, t.Signed))
	case KindPointer:
		var b strings.Builder
		switch t.PtrSize {
		case PtrOne:
			b.WriteString("*")
		case PtrMany:
			b.WriteString("[*]")
		case PtrC:
			b.WriteString("[*c]")
		case PtrSlice:
			b.WriteString("[]")
		}
		if t.AddrSpace != "" && t.AddrSpace != DefaultAddrSpace {
			fmt.Fprintf(&b, "addrspace(%s) ", t.AddrSpace)
		}
		if t.Elem == nil || t.PtrAlign != t.Elem.Align {
			fmt.Fprintf(&b, "align(%d) ", t.PtrAlign)
		}
		b.WriteString(t.Elem.String())
		return b.String()
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, t.Elem)
	case KindStruct:
		name := t.Name
		if name == "" {
			name = "struct"
		}
		return fmt.Sprintf("%s{%d fields, %d bits, align %d}", name, len(t.Fields), t.Bits, t.Align)
	}
	return t.Kind.String()
}

func intName(bits int, signed bool) string {
	if signed {
		return fmt.Sprintf("i%d", bits)
	}
	return fmt.Sprintf("u%d", bits)
}

// primitive returns the named scalar type, sized for the given pointer width.
func primitive(name string, pointerBits int) (*Type, bool) {
	switch name {
	case "void":
		return &Type{Kind: KindVoid, Align: 1}, true
	case "bool":
		return &Type{Kind: KindBool, Bits: 8, Align: 1}, true
	case "usize":
		return &Type{Kind: KindInt, Bits: pointerBits, Align: pointerBits / 8}, true
	case "isize":
		return &Type{Kind: KindInt, Bits: pointerBits, Align: pointerBits / 8, Signed: true}, true
	}

	if len(name) < 2 {
		return nil, false
	}

	bits, err := strconv.Atoi(name[1:])
	if err != nil {
		return nil, false
	}
	switch bits {
	case 8, 16, 32, 64:
	default:
		return nil, false
	}

	switch name[0] {
	case 'u':
		return &Type{Kind: KindInt, Bits: bits, Align: bits / 8}, true
	case 'i':
		return &Type{Kind: KindInt, Bits: bits, Align: bits / 8, Signed: true}, true
	case 'f':
		if bits == 8 {
			return nil, false
		}
		return &Type{Kind: KindFloat, Bits: bits, Align: bits / 8}, true
	}
	return nil, false
}

// Func describes a function signature.
type Func struct {
	Name     string
	CallConv string
	Variadic bool
	Generic  bool
	Params   []*Type
	Return   *Type
}

func (f *Func) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s(%s) callconv(%s) %s", f.Name, strings.Join(params, ", "), f.CallConv, f.Return)
}
