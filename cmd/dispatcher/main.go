// Command dispatcher runs the incident dispatch simulator, either as an interactive menu
// or as one-shot subcommands.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bissquit/incident-dispatch/internal/app"
	"github.com/bissquit/incident-dispatch/internal/cli"
	"github.com/bissquit/incident-dispatch/internal/config"
	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/version"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", cli.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags and the configuration they resolve to.
type rootOptions struct {
	cfgFile string
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "dispatcher",
		Short: "Incident dispatch and escalation simulator",
		Long: `Register incidents, assign them to operators and escalate the ones left waiting.
Without a subcommand an interactive menu is started.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetVersionTemplate("{{ .Version }}\n")

	rootCmd.AddCommand(
		newRegisterCmd(opts),
		newPendingCmd(opts),
		newAssignCmd(opts),
		newResolveCmd(opts),
		newEscalateCmd(opts),
		newSearchCmd(opts),
		newOperatorsCmd(opts),
		newStatsCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// openApp builds the application with logs going to the command's stderr.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	return app.New(cmd.Context(), opts.cfg, cmd.ErrOrStderr())
}

// withSession runs fn against a restored dispatcher inside one session, so its changes
// are saved before the command returns.
func withSession(cmd *cobra.Command, opts *rootOptions, fn func(d *dispatch.Dispatcher, out io.Writer) error) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	out := cmd.OutOrStdout()
	return a.Dispatcher().Session(cmd.Context(), func(d *dispatch.Dispatcher) error {
		return fn(d, out)
	})
}

func runInteractive(cmd *cobra.Command, opts *rootOptions) (err error) {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	interactive := term.IsTerminal(int(os.Stdin.Fd())) && cmd.InOrStdin() == os.Stdin
	menu := cli.NewMenu(a.Dispatcher(), cmd.InOrStdin(), cmd.OutOrStdout(),
		cli.WithInteractive(interactive),
		cli.WithSearchDays(opts.cfg.Search.DaysBack),
		cli.WithLogger(a.Logger()),
	)
	return menu.Run(cmd.Context())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// configuration is not needed to print the version
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String())
		},
	}
}
