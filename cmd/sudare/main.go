package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sudare/internal/app"
	"sudare/internal/config"
)

var (
	configPath string
	plainMode  bool
	noState    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (toml, yaml or json)")
	rootCmd.Flags().BoolVar(&plainMode, "plain", false, "Stream prefixed output instead of the interactive UI")
	rootCmd.Flags().BoolVar(&noState, "no-state", false, "Do not restore or save the selected group and members")
}

var rootCmd = &cobra.Command{
	Use:   "sudare [flags] <Procfile>",
	Short: "sudare: run a Procfile and browse each process's output",
	Long: `sudare starts every command declared in a Procfile and shows their output
in a terminal UI grouped by name. Switch groups with n/p, pick a member with
0-9, scroll with j/k and quit with esc.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		plain := plainMode || !term.IsTerminal(int(os.Stdout.Fd()))
		a := app.New(cfg, app.Options{
			Plain:    plain,
			NoState:  noState,
			Stdout:   cmd.OutOrStdout(),
			Stderr:   cmd.ErrOrStderr(),
			Stopping: stoppingSpinner,
		})
		return a.Run(ctx, args[0])
	},
}

// stoppingSpinner shows progress on stderr while children are shut down.
func stoppingSpinner() func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[21], 120*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " Stopping processes..."
	s.Start()
	return s.Stop
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "sudare:", err)
		os.Exit(1)
	}
}
