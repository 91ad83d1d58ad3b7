package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bsm/coltable"
	"github.com/spf13/cobra"
)

func newInspectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the postscript, schema and layout of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(args[0], g, func(r *coltable.Reader) error {
				return inspect(cmd.OutOrStdout(), r)
			})
		},
	}
}

func withReader(fname string, g *globals, cb func(*coltable.Reader) error) error {
	f, err := os.Open(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return err
	}

	r, err := coltable.Open(f, stat.Size(), &coltable.ReaderOptions{Logger: g.logger})
	if err != nil {
		return err
	}
	return cb(r)
}

func inspect(w io.Writer, r *coltable.Reader) error {
	ps := r.Postscript()
	fmt.Fprintf(w, "schema offset: %d\n", ps.SchemaOffset)
	fmt.Fprintf(w, "footer offset: %d\n", ps.FooterOffset)
	fmt.Fprintf(w, "rows:          %d\n", r.NumRows())

	fmt.Fprintln(w, "\nschema:")
	for i, f := range r.Schema().Fields {
		fmt.Fprintf(w, "  %d: %s %s (%s)\n", i, f.Name, f.Type, f.Encoding)
	}

	layout := r.Footer().Layout
	if layout == nil {
		return nil
	}

	fmt.Fprintf(w, "\nlayout (%d nodes):\n", layout.NumNodes())
	return layout.Walk(func(n *coltable.Layout, depth int) error {
		fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), n.Encoding)
		for _, b := range n.Buffers {
			fmt.Fprintf(w, " %s", b)
		}
		if len(n.Metadata) != 0 {
			fmt.Fprintf(w, " meta=%x", n.Metadata)
		}
		fmt.Fprintln(w)
		return nil
	})
}
