package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docresearch/internal/config"
	"github.com/dgallion1/docresearch/internal/logging"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docresearch",
		Short:         "Iterative research over local documents",
		Long:          "Index documents into a multi-granularity lexical index and answer questions with a plan, search, refine and report loop.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAskCmd(),
		newInspectCmd(),
	)
	return root
}

// loadConfig reads the config file named by --config, then the environment.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newLogger writes charm text logs to stderr so reports stay clean on stdout.
func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}
	return logging.New(cmd.ErrOrStderr(), "text", level)
}
