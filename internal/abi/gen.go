package abi

import (
	"bytes"
	"fmt"
	"go/format"
	"math"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// buildTags restricts generated assertions to targets with 64-bit pointers.
const buildTags = "amd64 || arm64 || loong64 || mips64 || mips64le || ppc64 || ppc64le || riscv64 || s390x"

// Target is a Go package that receives an assertion file.
type Target struct {
	Package string // package name
	Path    string // import path

	// Alignment is the value of the package's Alignment constant. Zero
	// means the package declares none.
	Alignment int

	Structs []StructDecl
	Funcs   []FuncDecl
}

// VerifyAlignment checks the host buffer alignment against the schema.
func (s *Schema) VerifyAlignment(host int) error {
	if host != s.Alignment {
		return fmt.Errorf("abi: buffer alignment differs (host %d, native %d)", host, s.Alignment)
	}
	return nil
}

// GenerateAssertions verifies the target's declarations and emits Go source
// that fails to compile when any of them drifts from the schema:
//
//   - the Alignment constant
//   - size, alignment and field offsets of every struct
//   - the Go type of every struct field
//   - width and signedness of every enum declared in the target package
//   - the Go signature of every function
//
// Nothing is emitted when verification fails.
func GenerateAssertions(s *Schema, t Target) ([]byte, error) {
	err := s.Verify(t.Structs, t.Funcs)
	if t.Alignment != 0 {
		err = multierr.Append(err, s.VerifyAlignment(t.Alignment))
	}
	if err != nil {
		return nil, err
	}
	if s.PointerBits != 64 {
		return nil, fmt.Errorf("abi: assertions require 64-bit pointers, schema declares %d", s.PointerBits)
	}

	g := &generator{target: t, imports: make(map[string]struct{}), seen: make(map[reflect.Type]struct{})}
	if err := g.run(s); err != nil {
		return nil, err
	}
	return g.source()
}

type generator struct {
	target  Target
	imports map[string]struct{}
	seen    map[reflect.Type]struct{} // enums already asserted

	index bytes.Buffer // constant-index assertions
	types bytes.Buffer // typed assignments
}

func (g *generator) run(s *Schema) error {
	if g.target.Alignment != 0 {
		g.imports["unsafe"] = struct{}{}
		fmt.Fprintf(&g.index, "\t// Alignment\n")
		fmt.Fprintf(&g.index, "\t_ = x[Alignment-%d]\n", s.Alignment)
		fmt.Fprintf(&g.index, "\t_ = x[%d-Alignment]\n", s.Alignment)
	}

	for _, d := range g.target.Structs {
		native := s.structs[d.Native]
		host, err := Reflect(d.Host)
		if err != nil {
			return err
		}

		name := g.typeExpr(d.Host)
		g.imports["unsafe"] = struct{}{}
		fmt.Fprintf(&g.index, "\t// %s\n", name)
		fmt.Fprintf(&g.index, "\t_ = x[unsafe.Sizeof(%s{})-%d]\n", name, native.Size())
		fmt.Fprintf(&g.index, "\t_ = x[unsafe.Alignof(%s{})-%d]\n", name, native.Align)
		for i, nf := range native.Fields {
			fmt.Fprintf(&g.index, "\t_ = x[unsafe.Offsetof(%s{}.%s)-%d]\n", name, host.Fields[i].GoName, nf.Offset)
		}

		for _, hf := range host.Fields {
			sf, _ := d.Host.FieldByName(hf.GoName)
			fmt.Fprintf(&g.types, "\tvar _ %s = %s{}.%s\n", g.typeExpr(sf.Type), name, sf.Name)
			g.enum(sf.Type)
		}
	}

	for _, d := range g.target.Funcs {
		if d.GoName == "" {
			return fmt.Errorf("abi: %s: missing Go function name", d.Native)
		}
		fmt.Fprintf(&g.types, "\tvar _ %s = %s\n", g.typeExpr(d.Host), d.GoName)
		for i := 0; i < d.Host.NumIn(); i++ {
			g.enum(d.Host.In(i))
		}
		for i := 0; i < d.Host.NumOut(); i++ {
			g.enum(d.Host.Out(i))
		}
	}
	return nil
}

// enum asserts the width and signedness of t when it is an enum declared
// in the target package.
func (g *generator) enum(t reflect.Type) {
	if !t.Implements(enumType) || t.PkgPath() != g.target.Path {
		return
	}
	if _, ok := g.seen[t]; ok {
		return
	}
	g.seen[t] = struct{}{}

	bits := t.Bits()
	g.imports["unsafe"] = struct{}{}
	fmt.Fprintf(&g.index, "\t// %s\n", t.Name())
	fmt.Fprintf(&g.index, "\t_ = x[unsafe.Sizeof(%s(0))-%d]\n", t.Name(), bits/8)
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(&g.types, "\t_ = %s(-%d)\n", t.Name(), uint64(1)<<(bits-1))
	default:
		fmt.Fprintf(&g.types, "\t_ = %s(%d)\n", t.Name(), uint64(math.MaxUint64)>>(64-bits))
	}
}

// typeExpr returns the Go expression of t as seen from the target package.
func (g *generator) typeExpr(t reflect.Type) string {
	if t.Kind() == reflect.UnsafePointer {
		g.imports["unsafe"] = struct{}{}
		return "unsafe.Pointer"
	}
	if t.Name() != "" {
		switch t.PkgPath() {
		case "", g.target.Path:
			return t.Name()
		}
		g.imports[t.PkgPath()] = struct{}{}
		return t.String()
	}

	switch t.Kind() {
	case reflect.Pointer:
		return "*" + g.typeExpr(t.Elem())
	case reflect.Slice:
		return "[]" + g.typeExpr(t.Elem())
	case reflect.Array:
		return fmt.Sprintf("[%d]%s", t.Len(), g.typeExpr(t.Elem()))
	case reflect.Func:
		params := make([]string, 0, t.NumIn())
		for i := 0; i < t.NumIn(); i++ {
			params = append(params, g.typeExpr(t.In(i)))
		}
		results := make([]string, 0, t.NumOut())
		for i := 0; i < t.NumOut(); i++ {
			results = append(results, g.typeExpr(t.Out(i)))
		}

		expr := "func(" + strings.Join(params, ", ") + ")"
		switch len(results) {
		case 0:
		case 1:
			expr += " " + results[0]
		default:
			expr += " (" + strings.Join(results, ", ") + ")"
		}
		return expr
	}
	return t.String()
}

func (g *generator) source() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("// Code generated by \"coltable abi gen\"; DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "//go:build %s\n\n", buildTags)
	fmt.Fprintf(&b, "package %s\n\n", g.target.Package)

	if len(g.imports) != 0 {
		paths := make([]string, 0, len(g.imports))
		for p := range g.imports {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		b.WriteString("import (\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "\t%q\n", p)
		}
		b.WriteString(")\n\n")
	}

	b.WriteString("func _() {\n")
	if g.index.Len() != 0 {
		b.WriteString("\t// An \"invalid array index\" compiler error signifies that a shared\n")
		b.WriteString("\t// declaration has drifted from abi.yaml. Fix it and re-run go generate.\n")
		b.WriteString("\tvar x [1]struct{}\n")
		b.Write(g.index.Bytes())
	}
	if g.types.Len() != 0 {
		b.WriteString("\n\t// A type or overflow error signifies a changed Go declaration.\n")
		b.Write(g.types.Bytes())
	}
	b.WriteString("}\n")

	return format.Source(b.Bytes())
}
