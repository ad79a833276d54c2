// Package cmd provides the kfe CLI commands: register a directory, run a
// query against it, find files similar to one already indexed (or to an
// uploaded image), edit a file's metadata, and report registration
// status. It is the thin process boundary around internal/directory,
// internal/search, and internal/metaedit — SPEC_FULL.md's core packages
// hold all of the engine's logic; this package only wires them together.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Fl0k3n/kfe/internal/logging"
)

var (
	debugMode bool
	logCancel func()
)

// Execute runs the kfe CLI and returns its exit error, if any.
func Execute() error {
	root := NewRootCmd()
	return root.Execute()
}

// NewRootCmd builds the root kfe command and attaches every subcommand.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kfe",
		Short:         "Local per-directory multi-modal file search engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.DefaultConfig()
			logCfg.WriteToStderr = debugMode
			if debugMode {
				logCfg.Level = "debug"
			} else {
				logCfg.Level = "warn"
			}
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				logger = slog.Default()
				cleanup = func() {}
			}
			logCancel = cleanup
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCancel != nil {
				logCancel()
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "write debug logs to the kfe log file")

	root.AddCommand(newRegisterCmd())
	root.AddCommand(newUnregisterCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newSimilarCmd())
	root.AddCommand(newEditCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newLogsCmd())

	return root
}
