package main

import (
	"io"

	"github.com/bissquit/incident-dispatch/internal/cli"
	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/spf13/cobra"
)

func newOperatorsCmd(opts *rootOptions) *cobra.Command {
	list := func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, opts, func(d *dispatch.Dispatcher, out io.Writer) error {
			cli.PrintOperators(out, d)
			return nil
		})
	}

	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Show the operator roster",
		Long: `Show the operator roster loaded from operators.seed_file or the built-in list.
The roster is not persisted between runs; add operators or change their availability
from the interactive menu, where the change lasts for the whole session.`,
		Args: cobra.NoArgs,
		RunE: list,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List operators",
		Args:  cobra.NoArgs,
		RunE:  list,
	})

	return cmd
}
