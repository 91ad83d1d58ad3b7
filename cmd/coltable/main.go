package main

import (
	"fmt"
	"os"

	"github.com/bsm/coltable/kernels"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globals struct {
	verbose bool
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := new(globals)

	root := &cobra.Command{
		Use:           "coltable",
		Short:         "Inspect columnar table files and the codec interface",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if g.verbose {
				g.logger, err = zap.NewDevelopment()
			} else {
				g.logger, err = zap.NewProduction()
			}
			if err != nil {
				return err
			}
			kernels.SetLogger(g.logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = g.logger.Sync()
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newInspectCmd(g))
	root.AddCommand(newCatCmd(g))
	root.AddCommand(newABICmd())
	return root
}
