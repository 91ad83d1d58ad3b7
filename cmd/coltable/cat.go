package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/bsm/coltable"
	"github.com/spf13/cobra"
)

func newCatCmd(g *globals) *cobra.Command {
	var column string
	var from, to uint64

	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "Print the values of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(args[0], g, func(r *coltable.Reader) error {
				col, err := columnIndex(r.Schema(), column)
				if err != nil {
					return err
				}

				hi := to
				if !cmd.Flags().Changed("to") || hi > r.NumRows() {
					hi = r.NumRows()
				}
				return printColumn(cmd.Context(), cmd.OutOrStdout(), r, col, min(from, hi), hi)
			})
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "Column name or index (required)")
	cmd.Flags().Uint64Var(&from, "from", 0, "First row")
	cmd.Flags().Uint64Var(&to, "to", 0, "End row, exclusive (default: all rows)")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

func columnIndex(s *coltable.Schema, column string) (int, error) {
	if i := s.Index(column); i >= 0 {
		return i, nil
	}
	if i, err := strconv.Atoi(column); err == nil && i >= 0 && i < len(s.Fields) {
		return i, nil
	}
	return 0, fmt.Errorf("unknown column %q", column)
}

func printColumn(ctx context.Context, w io.Writer, r *coltable.Reader, col int, lo, hi uint64) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch r.Schema().Fields[col].Type {
	case coltable.Uint32:
		return printValues[uint32](ctx, w, r, col, lo, hi)
	case coltable.Uint64:
		return printValues[uint64](ctx, w, r, col, lo, hi)
	case coltable.Int32:
		return printValues[int32](ctx, w, r, col, lo, hi)
	case coltable.Int64:
		return printValues[int64](ctx, w, r, col, lo, hi)
	case coltable.Float32:
		return printValues[float32](ctx, w, r, col, lo, hi)
	}
	return printValues[float64](ctx, w, r, col, lo, hi)
}

func printValues[T coltable.Value](ctx context.Context, w io.Writer, r *coltable.Reader, col int, lo, hi uint64) error {
	vals, err := coltable.ReadValues[T](ctx, r, col, lo, hi)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if _, err := fmt.Fprintf(w, "%d\t%v\n", lo+uint64(i), v); err != nil {
			return err
		}
	}
	return nil
}
