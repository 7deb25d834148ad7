// Package cli contains the commands of the moodlog command line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rbaliyan/moodlog/internal/config"
	"github.com/rbaliyan/moodlog/internal/output"
)

var (
	cfgFile  string
	verbose  bool
	userFlag string
	noColor  bool
	cfg      *config.Config
	logger   *slog.Logger
	version  = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "moodlog",
	Short: "OCD mood journal",
	Long: `moodlog records how you feel, one entry at a time, and tracks the
weighted OCD index of each day.

Example usage:
  moodlog add anxious "checked the stove twice"
  moodlog list --notes            # Entries that carry a note
  moodlog window --days 7         # Daily counts and index for a week
  moodlog trend                   # Direction of the index over the window
  moodlog backup                  # Upload a snapshot to the archive`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.ErrOrStderr())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .moodlog.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "journal owner (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// initConfig loads the configuration and builds the logger.
func initConfig(stderr io.Writer) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if userFlag != "" {
		cfg.User = userFlag
	}

	level := parseLevel(cfg.Logging.Level)
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		logger = slog.New(slog.NewJSONHandler(stderr, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
	}

	logger.Debug("configuration loaded",
		"user", cfg.User,
		"store", cfg.Store.Driver,
		"archive", cfg.Archive.Driver,
		"location", cfg.Location,
	)
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// newPrinter returns a printer writing to the command's streams.
func newPrinter(cmd *cobra.Command) *output.Printer {
	colors := cfg != nil && cfg.Output.Colors && !noColor
	return output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ResolveColors(colors))
}
