package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/contextaction/pkg/contextaction/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the ctxaction CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ctxaction",
		Short: "Inspect and exercise a contextaction runtime",
		Long: `ctxaction drives the contextaction core: stores, action pipelines,
the event bus and ref operation queues.

Use "demo" to watch a runtime built from a config file at work and
"config check" to validate a config file before deploying it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "runtime config file (yaml or json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig reads the --config file, or returns an empty config when none
// was given.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.ConfigPath == "" {
		return config.New(nil), nil
	}
	return config.FromFile(o.ConfigPath)
}

// logger writes text logs to w: debug level when verbose, warnings otherwise.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
