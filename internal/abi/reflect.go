package abi

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Enum is implemented by named Go integer types that mirror a C enum.
type Enum interface {
	ABIEnum()
}

var enumType = reflect.TypeOf((*Enum)(nil)).Elem()

// Reflect describes a host-side Go type.
//
// Struct fields are named by their `abi` tag, or by the snake_case form of
// the Go field name. Fields holding addresses (uintptr, unsafe.Pointer) are
// described as pointers through tag options:
//
//	Ptr uintptr `abi:"ptr,ptr=many,elem=u8,align=64,space=generic"`
//
// Blank (_) fields are padding and are skipped.
func Reflect(t reflect.Type) (*Type, error) {
	return reflectType(t, t.String())
}

func reflectType(t reflect.Type, path string) (*Type, error) {
	bits := int(t.Size()) * 8
	align := t.Align()

	if t.Implements(enumType) {
		switch t.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return &Type{Kind: KindEnum, Name: t.Name(), Bits: bits, Align: align, Signed: true}, nil
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return &Type{Kind: KindEnum, Name: t.Name(), Bits: bits, Align: align}, nil
		}
		return nil, fmt.Errorf("abi: %s: enum %s is not an integer", path, t)
	}

	switch t.Kind() {
	case reflect.Bool:
		return &Type{Kind: KindBool, Bits: bits, Align: align}, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return &Type{Kind: KindInt, Bits: bits, Align: align, Signed: true}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return &Type{Kind: KindInt, Bits: bits, Align: align}, nil
	case reflect.Float32, reflect.Float64:
		return &Type{Kind: KindFloat, Bits: bits, Align: align}, nil
	case reflect.Array:
		elem, err := reflectType(t.Elem(), path+"[]")
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Bits: bits, Align: align, Elem: elem, Len: t.Len()}, nil
	case reflect.Pointer:
		elem, err := reflectType(t.Elem(), path+".*")
		if err != nil {
			return nil, err
		}
		return &Type{
			Kind:      KindPointer,
			Bits:      bits,
			Align:     align,
			Elem:      elem,
			PtrSize:   PtrOne,
			PtrAlign:  elem.Align,
			AddrSpace: DefaultAddrSpace,
		}, nil
	case reflect.UnsafePointer:
		return &Type{
			Kind:      KindPointer,
			Bits:      bits,
			Align:     align,
			Elem:      &Type{Kind: KindInt, Bits: 8, Align: 1},
			PtrSize:   PtrC,
			PtrAlign:  1,
			AddrSpace: DefaultAddrSpace,
		}, nil
	case reflect.Struct:
		return reflectStruct(t, path)
	}
	return nil, fmt.Errorf("abi: %s: %s cannot cross the boundary", path, t)
}

func reflectStruct(t reflect.Type, path string) (*Type, error) {
	st := &Type{
		Kind:   KindStruct,
		Name:   t.Name(),
		Bits:   int(t.Size()) * 8,
		Align:  t.Align(),
		Fields: make([]Field, 0, t.NumField()),
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}

		tag := parseTag(sf)
		fpath := path + "." + tag.name

		var ft *Type
		var err error
		if tag.ptr != "" {
			ft, err = tag.pointer(sf.Type, fpath)
		} else {
			ft, err = reflectType(sf.Type, fpath)
		}
		if err != nil {
			return nil, err
		}

		st.Fields = append(st.Fields, Field{
			Name:   tag.name,
			GoName: sf.Name,
			Type:   ft,
			Offset: int(sf.Offset),
			Align:  sf.Type.FieldAlign(),
		})
	}
	return st, nil
}

// ReflectFunc describes a host-side function. Go has no generic function
// values, so Generic is always false.
func ReflectFunc(name, callConv string, t reflect.Type) (*Func, error) {
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("abi: %s: %s is not a function", name, t)
	}
	if t.NumOut() > 1 {
		return nil, fmt.Errorf("abi: %s: multiple return values cannot cross the boundary", name)
	}

	fn := &Func{
		Name:     name,
		CallConv: callConv,
		Variadic: t.IsVariadic(),
		Params:   make([]*Type, 0, t.NumIn()),
		Return:   &Type{Kind: KindVoid, Align: 1},
	}
	for i := 0; i < t.NumIn(); i++ {
		pt, err := reflectType(t.In(i), fmt.Sprintf("%s param %d", name, i))
		if err != nil {
			return nil, err
		}
		fn.Params = append(fn.Params, pt)
	}
	if t.NumOut() == 1 {
		rt, err := reflectType(t.Out(0), name+" return")
		if err != nil {
			return nil, err
		}
		fn.Return = rt
	}
	return fn, nil
}

// --------------------------------------------------------------------

type fieldTag struct {
	name  string
	ptr   string
	elem  string
	align int
	space string
}

func parseTag(sf reflect.StructField) fieldTag {
	tag := fieldTag{name: snakeCase(sf.Name)}

	parts := strings.Split(sf.Tag.Get("abi"), ",")
	if parts[0] != "" {
		tag.name = parts[0]
	}
	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "ptr":
			tag.ptr = val
		case "elem":
			tag.elem = val
		case "align":
			tag.align, _ = strconv.Atoi(val)
		case "space":
			tag.space = val
		}
	}
	return tag
}

func (tag fieldTag) pointer(t reflect.Type, path string) (*Type, error) {
	switch t.Kind() {
	case reflect.Uintptr, reflect.UnsafePointer, reflect.Pointer:
	default:
		return nil, fmt.Errorf("abi: %s: pointer tag on %s", path, t)
	}

	size, err := parsePtrSize(tag.ptr)
	if err != nil {
		return nil, fmt.Errorf("abi: %s: %w", path, trimPrefix(err))
	}

	var elem *Type
	switch {
	case tag.elem != "":
		var ok bool
		if elem, ok = primitive(tag.elem, int(t.Size())*8); !ok {
			return nil, fmt.Errorf("abi: %s: unknown pointer elem %q", path, tag.elem)
		}
	case t.Kind() == reflect.Pointer:
		if elem, err = reflectType(t.Elem(), path+".*"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("abi: %s: untyped pointer needs an elem option", path)
	}

	pt := &Type{
		Kind:      KindPointer,
		Bits:      int(t.Size()) * 8,
		Align:     t.Align(),
		Elem:      elem,
		PtrSize:   size,
		PtrAlign:  elem.Align,
		AddrSpace: DefaultAddrSpace,
	}
	if tag.align != 0 {
		pt.PtrAlign = tag.align
	}
	if tag.space != "" {
		pt.AddrSpace = tag.space
	}
	return pt, nil
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
