package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/contextaction/pkg/contextaction"
	"github.com/randalmurphal/contextaction/pkg/contextaction/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with runtime config files",
	}
	cmd.AddCommand(newConfigCheckCommand(rootOpts))
	return cmd
}

func newConfigCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a config file and print the effective settings",
		Long: `Load a YAML or JSON runtime config, validate every recognized key and
print the settings a runtime built from it would use. Without a file
argument the --config file is checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.ConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no config file given")
			}
			return runConfigCheck(cmd.OutOrStdout(), path)
		},
	}
}

func runConfigCheck(w io.Writer, path string) error {
	cfg, err := config.FromFile(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	settings, err := contextaction.ParseSettings(cfg)
	if err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	fmt.Fprintf(w, "%s: ok\n", path)
	printSettings(w, settings)
	return nil
}

func printSettings(w io.Writer, s contextaction.Settings) {
	ignore := "-"
	if len(s.Comparison.IgnoreKeys) > 0 {
		ignore = strings.Join(s.Comparison.IgnoreKeys, ",")
	}
	archive := "-"
	if s.ArchivePath != "" {
		archive = s.ArchivePath
	}
	timeout := "none"
	if s.RefTimeout > 0 {
		timeout = s.RefTimeout.String()
	}

	rows := [][2]string{
		{"name", s.Name},
		{"comparison.strategy", s.Comparison.Strategy.String()},
		{"comparison.max_depth", fmt.Sprint(s.Comparison.MaxDepth)},
		{"comparison.ignore_keys", ignore},
		{"store.notification_mode", s.NotificationMode.String()},
		{"events.max_history", fmt.Sprint(s.MaxHistory)},
		{"events.archive", archive},
		{"actions.mode", s.ActionMode.String()},
		{"actions.halt_on_error", fmt.Sprint(s.HaltOnError)},
		{"refs.default_timeout", timeout},
		{"refs.retry_delay", s.RetryDelay.String()},
		{"telemetry.metrics", s.Metrics},
		{"telemetry.tracing", fmt.Sprint(s.Tracing)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-24s %s\n", r[0], r[1])
	}
}
