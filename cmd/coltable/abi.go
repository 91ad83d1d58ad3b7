package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"

	"github.com/bsm/coltable/boundary"
	"github.com/bsm/coltable/internal/abi"
	"github.com/bsm/coltable/kernels"
	"github.com/spf13/cobra"
)

func newABICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abi",
		Short: "Check the codec interface against its definition",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Verify host declarations and kernel signatures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := abi.ParseSchema(boundary.InterfaceDefinition)
			if err != nil {
				return err
			}

			var nstructs, nfuncs int
			for _, name := range targetNames() {
				t := targets()[name]
				if err := schema.Verify(t.Structs, t.Funcs); err != nil {
					return err
				}
				if t.Alignment != 0 {
					if err := schema.VerifyAlignment(t.Alignment); err != nil {
						return err
					}
				}
				nstructs += len(t.Structs)
				nfuncs += len(t.Funcs)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d structs, %d functions\n", nstructs, nfuncs)
			return nil
		},
	})

	var pkg, output string
	gen := &cobra.Command{
		Use:   "gen",
		Short: "Generate static layout and signature assertions for a package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := targets()[pkg]
			if !ok {
				return fmt.Errorf("unknown package %q, expected one of %v", pkg, targetNames())
			}

			schema, err := abi.ParseSchema(boundary.InterfaceDefinition)
			if err != nil {
				return err
			}

			src, err := abi.GenerateAssertions(schema, t)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			return os.WriteFile(output, src, 0o644)
		},
	}
	gen.Flags().StringVarP(&pkg, "package", "p", "", "Target package (required)")
	gen.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	_ = gen.MarkFlagRequired("package")
	cmd.AddCommand(gen)

	return cmd
}

// targets returns the packages that share declarations with abi.yaml.
func targets() map[string]abi.Target {
	var structs []abi.StructDecl
	for _, d := range boundary.Declarations() {
		structs = append(structs, abi.StructDecl{Native: d.Native, Host: d.Host})
	}

	var funcs []abi.FuncDecl
	for _, e := range kernels.Exports {
		funcs = append(funcs, abi.FuncDecl{
			Native:   e.Name,
			GoName:   e.GoName(),
			CallConv: e.CallConv,
			Host:     reflect.TypeOf(e.Func),
		})
	}

	return map[string]abi.Target{
		"boundary": {
			Package:   "boundary",
			Path:      reflect.TypeOf(boundary.ByteBuffer{}).PkgPath(),
			Alignment: boundary.Alignment,
			Structs:   structs,
		},
		"kernels": {
			Package: "kernels",
			Path:    reflect.TypeOf(kernels.Codec(0)).PkgPath(),
			Funcs:   funcs,
		},
	}
}

func targetNames() []string {
	names := make([]string, 0, 2)
	for name := range targets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
