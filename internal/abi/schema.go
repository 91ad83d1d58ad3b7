package abi

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema is the native side of the boundary, as declared by the
// interface-definition file.
type Schema struct {
	Alignment   int
	PointerBits int

	structs map[string]*Type
	funcs   map[string]*Func
}

// Struct returns the named struct.
func (s *Schema) Struct(name string) (*Type, bool) {
	t, ok := s.structs[name]
	return t, ok
}

// Func returns the named function.
func (s *Schema) Func(name string) (*Func, bool) {
	f, ok := s.funcs[name]
	return f, ok
}

// StructNames returns the declared struct names in sorted order.
func (s *Schema) StructNames() []string { return sortedKeys(s.structs) }

// FuncNames returns the declared function names in sorted order.
func (s *Schema) FuncNames() []string { return sortedKeys(s.funcs) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --------------------------------------------------------------------

type rawType struct {
	Name  string
	Ptr   string   `yaml:"ptr"`
	Elem  *rawType `yaml:"elem"`
	Align int      `yaml:"align"`
	Space string   `yaml:"space"`
	Array int      `yaml:"array"`
}

// UnmarshalYAML accepts either a type name or a pointer/array mapping.
func (t *rawType) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		t.Name = n.Value
		return nil
	}

	type plain rawType
	return n.Decode((*plain)(t))
}

type rawField struct {
	Name     string  `yaml:"name"`
	Type     rawType `yaml:"type"`
	Align    int     `yaml:"align"`
	Comptime bool    `yaml:"comptime"`
}

type rawEnum struct {
	Bits   int      `yaml:"bits"`
	Signed bool     `yaml:"signed"`
	Values []string `yaml:"values"`
}

type rawFunc struct {
	CallConv string    `yaml:"callconv"`
	Variadic bool      `yaml:"variadic"`
	Generic  bool      `yaml:"generic"`
	Params   []rawType `yaml:"params"`
	Return   *rawType  `yaml:"return"`
}

type rawSchema struct {
	Alignment   int                   `yaml:"alignment"`
	PointerBits int                   `yaml:"pointer_bits"`
	Enums       map[string]rawEnum    `yaml:"enums"`
	Structs     map[string][]rawField `yaml:"structs"`
	Functions   map[string]rawFunc    `yaml:"functions"`
}

// ParseSchema parses an interface-definition file and computes the C layout
// of every declared struct.
func ParseSchema(data []byte) (*Schema, error) {
	var raw rawSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("abi: parse interface definition: %w", err)
	}

	if raw.PointerBits == 0 {
		raw.PointerBits = 64
	}
	if raw.PointerBits != 32 && raw.PointerBits != 64 {
		return nil, fmt.Errorf("abi: unsupported pointer width %d", raw.PointerBits)
	}
	if raw.Alignment <= 0 || raw.Alignment&(raw.Alignment-1) != 0 {
		return nil, fmt.Errorf("abi: alignment %d is not a power of two", raw.Alignment)
	}

	r := &resolver{
		raw:      &raw,
		structs:  make(map[string]*Type, len(raw.Structs)),
		visiting: make(map[string]bool),
	}
	for _, name := range sortedKeys(raw.Structs) {
		if _, err := r.resolveStruct(name); err != nil {
			return nil, err
		}
	}

	funcs := make(map[string]*Func, len(raw.Functions))
	for _, name := range sortedKeys(raw.Functions) {
		fn, err := r.resolveFunc(name, raw.Functions[name])
		if err != nil {
			return nil, err
		}
		funcs[name] = fn
	}

	return &Schema{
		Alignment:   raw.Alignment,
		PointerBits: raw.PointerBits,
		structs:     r.structs,
		funcs:       funcs,
	}, nil
}

type resolver struct {
	raw      *rawSchema
	structs  map[string]*Type
	visiting map[string]bool
}

func (r *resolver) resolve(rt *rawType) (*Type, error) {
	switch {
	case rt.Ptr != "":
		size, err := parsePtrSize(rt.Ptr)
		if err != nil {
			return nil, err
		}
		if rt.Elem == nil {
			return nil, fmt.Errorf("abi: pointer without elem")
		}
		elem, err := r.resolve(rt.Elem)
		if err != nil {
			return nil, err
		}

		t := &Type{
			Kind:      KindPointer,
			Bits:      r.raw.PointerBits,
			Align:     r.raw.PointerBits / 8,
			Elem:      elem,
			PtrSize:   size,
			PtrAlign:  elem.Align,
			AddrSpace: DefaultAddrSpace,
		}
		if size == PtrSlice {
			t.Bits *= 2
		}
		if rt.Align != 0 {
			t.PtrAlign = rt.Align
		}
		if rt.Space != "" {
			t.AddrSpace = rt.Space
		}
		return t, nil

	case rt.Array != 0:
		if rt.Elem == nil {
			return nil, fmt.Errorf("abi: array without elem")
		}
		elem, err := r.resolve(rt.Elem)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Bits: rt.Array * elem.Bits, Align: elem.Align, Elem: elem, Len: rt.Array}, nil
	}

	if t, ok := primitive(rt.Name, r.raw.PointerBits); ok {
		return t, nil
	}
	if e, ok := r.raw.Enums[rt.Name]; ok {
		if _, ok := primitive(intName(e.Bits, false), r.raw.PointerBits); !ok {
			return nil, fmt.Errorf("abi: enum %s has invalid width %d", rt.Name, e.Bits)
		}
		return &Type{Kind: KindEnum, Name: rt.Name, Bits: e.Bits, Align: e.Bits / 8, Signed: e.Signed}, nil
	}
	if _, ok := r.raw.Structs[rt.Name]; ok {
		return r.resolveStruct(rt.Name)
	}
	return nil, fmt.Errorf("abi: unknown type %q", rt.Name)
}

func (r *resolver) resolveStruct(name string) (*Type, error) {
	if t, ok := r.structs[name]; ok {
		return t, nil
	}
	if r.visiting[name] {
		return nil, fmt.Errorf("abi: struct %s contains itself", name)
	}
	r.visiting[name] = true
	defer delete(r.visiting, name)

	raw := r.raw.Structs[name]
	t := &Type{Kind: KindStruct, Name: name, Align: 1, Fields: make([]Field, 0, len(raw))}

	offset := 0
	for i := range raw {
		rf := &raw[i]
		ft, err := r.resolve(&rf.Type)
		if err != nil {
			return nil, fmt.Errorf("abi: %s.%s: %w", name, rf.Name, trimPrefix(err))
		}
		if ft.Kind == KindVoid {
			return nil, fmt.Errorf("abi: %s.%s: void field", name, rf.Name)
		}

		align := ft.Align
		if rf.Align != 0 {
			align = rf.Align
		}

		offset = alignTo(offset, align)
		t.Fields = append(t.Fields, Field{
			Name:     rf.Name,
			Type:     ft,
			Offset:   offset,
			Align:    align,
			Comptime: rf.Comptime,
		})
		offset += ft.Size()
		if align > t.Align {
			t.Align = align
		}
	}
	t.Bits = alignTo(offset, t.Align) * 8

	r.structs[name] = t
	return t, nil
}

func (r *resolver) resolveFunc(name string, raw rawFunc) (*Func, error) {
	fn := &Func{
		Name:     name,
		CallConv: raw.CallConv,
		Variadic: raw.Variadic,
		Generic:  raw.Generic,
		Params:   make([]*Type, 0, len(raw.Params)),
	}
	if fn.CallConv == "" {
		fn.CallConv = "c"
	}

	for i := range raw.Params {
		pt, err := r.resolve(&raw.Params[i])
		if err != nil {
			return nil, fmt.Errorf("abi: %s param %d: %w", name, i, trimPrefix(err))
		}
		fn.Params = append(fn.Params, pt)
	}

	ret := raw.Return
	if ret == nil {
		ret = &rawType{Name: "void"}
	}
	rt, err := r.resolve(ret)
	if err != nil {
		return nil, fmt.Errorf("abi: %s return: %w", name, trimPrefix(err))
	}
	fn.Return = rt
	return fn, nil
}

func alignTo(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

type plainError string

func (e plainError) Error() string { return string(e) }

func trimPrefix(err error) error {
	return plainError(strings.TrimPrefix(err.Error(), "abi: "))
}
