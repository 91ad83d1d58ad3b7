package abi

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// Mismatch is a single difference between a host and a native declaration.
type Mismatch struct {
	Path   string
	Reason string
	Host   string
	Native string
}

// Error implements the error interface.
func (m *Mismatch) Error() string {
	return fmt.Sprintf("abi: %s: %s (host %s, native %s)", m.Path, m.Reason, m.Host, m.Native)
}

func mismatch(path, reason string, host, native fmt.Stringer) error {
	return &Mismatch{Path: path, Reason: reason, Host: host.String(), Native: native.String()}
}

type text string

func (s text) String() string { return string(s) }

// CompareStruct checks that host and native describe the same struct. All
// differences are returned, combined with multierr.
func CompareStruct(path string, host, native *Type) error {
	if host.Kind != KindStruct || native.Kind != KindStruct {
		return mismatch(path, "not a struct", host, native)
	}

	var err error
	if host.Bits != native.Bits {
		err = multierr.Append(err, mismatch(path, "size differs", host, native))
	}
	if len(host.Fields) != len(native.Fields) {
		err = multierr.Append(err, mismatch(path, "field count differs", host, native))
	}

	n := min(len(host.Fields), len(native.Fields))
	for i := 0; i < n; i++ {
		hf, nf := host.Fields[i], native.Fields[i]
		fpath := path + "." + nf.Name

		if hf.Name != nf.Name {
			err = multierr.Append(err, mismatch(fmt.Sprintf("%s[%d]", path, i), "field name or order differs", text(hf.Name), text(nf.Name)))
			continue
		}
		if hf.Align != nf.Align {
			err = multierr.Append(err, mismatch(fpath, "field alignment differs",
				text(fmt.Sprintf("%s (align %d)", hf.Type, hf.Align)),
				text(fmt.Sprintf("%s (align %d)", nf.Type, nf.Align))))
		}
		if hf.Comptime != nf.Comptime {
			err = multierr.Append(err, mismatch(fpath, "comptime status differs",
				text(fmt.Sprintf("comptime=%t", hf.Comptime)),
				text(fmt.Sprintf("comptime=%t", nf.Comptime))))
		}
		err = multierr.Append(err, compareType(fpath, hf.Type, nf.Type, false))
	}
	return err
}

// CompareFunc checks that host and native describe the same signature.
// Pointer parameters and pointer return types are exempt from the pointee
// alignment check.
func CompareFunc(host, native *Func) error {
	path := native.Name

	var err error
	if host.CallConv != native.CallConv {
		err = multierr.Append(err, mismatch(path, "calling convention differs", text(host.CallConv), text(native.CallConv)))
	}
	if host.Variadic != native.Variadic {
		err = multierr.Append(err, mismatch(path, "variadic differs",
			text(fmt.Sprintf("variadic=%t", host.Variadic)), text(fmt.Sprintf("variadic=%t", native.Variadic))))
	}
	if host.Generic != native.Generic {
		err = multierr.Append(err, mismatch(path, "generic differs",
			text(fmt.Sprintf("generic=%t", host.Generic)), text(fmt.Sprintf("generic=%t", native.Generic))))
	}

	err = multierr.Append(err, compareType(path+".return", host.Return, native.Return, true))

	if len(host.Params) != len(native.Params) {
		err = multierr.Append(err, mismatch(path, "parameter count differs", host, native))
	}
	n := min(len(host.Params), len(native.Params))
	for i := 0; i < n; i++ {
		err = multierr.Append(err, compareType(fmt.Sprintf("%s.param[%d]", path, i), host.Params[i], native.Params[i], true))
	}
	return err
}

func compareType(path string, host, native *Type, pointerExempt bool) error {
	if isHalfFloatPair(host, native) {
		return nil
	}
	if host.Kind != native.Kind {
		return mismatch(path, "kind differs", host, native)
	}

	switch host.Kind {
	case KindInt:
		if host.Bits != native.Bits || host.Signed != native.Signed {
			return mismatch(path, "integer width or signedness differs", host, native)
		}
	case KindFloat:
		if host.Bits != native.Bits {
			return mismatch(path, "float width differs", host, native)
		}
	case KindEnum:
		if host.Bits != native.Bits {
			return mismatch(path, "enum tag width differs", host, native)
		}
	case KindPointer:
		var err error
		if host.PtrSize != native.PtrSize {
			err = multierr.Append(err, mismatch(path, "pointer size differs", host, native))
		}
		if host.AddrSpace != native.AddrSpace {
			err = multierr.Append(err, mismatch(path, "address space differs", host, native))
		}
		if !pointerExempt && host.PtrAlign != native.PtrAlign {
			err = multierr.Append(err, mismatch(path, "pointer alignment differs", host, native))
		}
		return multierr.Append(err, compareType(path+".*", host.Elem, native.Elem, false))
	case KindArray:
		if host.Len != native.Len {
			return mismatch(path, "array length differs", host, native)
		}
		return compareType(path+"[]", host.Elem, native.Elem, false)
	case KindStruct:
		return CompareStruct(path, host, native)
	}
	return nil
}

// isHalfFloatPair reports the one sanctioned reinterpretation: a 16-bit
// float on one side carried as a 16-bit signed integer on the other.
func isHalfFloatPair(a, b *Type) bool {
	half := func(t *Type) bool { return t.Kind == KindFloat && t.Bits == 16 }
	i16 := func(t *Type) bool { return t.Kind == KindInt && t.Bits == 16 && t.Signed }
	return (half(a) && i16(b)) || (i16(a) && half(b))
}

// --------------------------------------------------------------------

// StructDecl pairs a host type with a native struct name.
type StructDecl struct {
	Native string
	Host   reflect.Type
}

// FuncDecl pairs a host function with a native function name. GoName is
// the host function's identifier, required for generated assertions.
type FuncDecl struct {
	Native   string
	GoName   string
	CallConv string
	Host     reflect.Type
}

// Verify checks every declaration against the schema.
func (s *Schema) Verify(structs []StructDecl, funcs []FuncDecl) error {
	var err error
	for _, d := range structs {
		err = multierr.Append(err, s.verifyStruct(d))
	}
	for _, d := range funcs {
		err = multierr.Append(err, s.verifyFunc(d))
	}
	return err
}

func (s *Schema) verifyStruct(d StructDecl) error {
	native, ok := s.structs[d.Native]
	if !ok {
		return fmt.Errorf("abi: %s: no such struct in interface definition", d.Native)
	}
	host, err := Reflect(d.Host)
	if err != nil {
		return err
	}
	return CompareStruct(d.Native+"<"+d.Host.Name()+">", host, native)
}

func (s *Schema) verifyFunc(d FuncDecl) error {
	native, ok := s.funcs[d.Native]
	if !ok {
		return fmt.Errorf("abi: %s: no such function in interface definition", d.Native)
	}
	host, err := ReflectFunc(d.Native, d.CallConv, d.Host)
	if err != nil {
		return err
	}
	return CompareFunc(host, native)
}
