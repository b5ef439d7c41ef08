// Package cli provides the command-line interface adapter for mathdoc.
// This package handles argument parsing and delegates to package runner
// for execution, the same separation of concerns the teacher's
// lang/in/cli keeps over lang/runner — generalized from a hand-rolled
// os.Args loop to github.com/spf13/cobra's declarative subcommand tree
// (SPEC_FULL.md §2.2).
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shadowCow/mathdoc/runner"
)

// Config holds the configuration a Command writes its resolved flags
// into before delegating to package runner, the Config struct the
// teacher's cli.Run(Config) takes generalized into cobra's flag/arg
// binding style.
type Config struct {
	Output io.Writer
}

// NewRootCommand builds the `mathdoc` command tree: `run <file>
// [--debug]` and `check <file>` (SPEC_FULL.md §4.12).
func NewRootCommand(cfg Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "mathdoc",
		Short:         "Compile and run mathdoc documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand(cfg), newCheckCommand(cfg))
	return root
}

func newRunCommand(cfg Config) *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a mathdoc document's interpreter to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Run(args[0], cfg.Output, debug)
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log each pipeline stage as it runs")
	return cmd
}

func newCheckCommand(cfg Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Run the static pass only and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			errs, err := runner.Check(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cfg.Output, errs.Dump())
			if !errs.NoErrors() {
				return fmt.Errorf("%d error(s)", len(errs.Errors()))
			}
			return nil
		},
	}
}
