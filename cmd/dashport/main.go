// Command dashport imports dashboard export bundles into the metadata store,
// either as a one-shot CLI or as an HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/dashport/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

var (
	flagFmt      string
	flagLogLevel string
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("dashport version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}

	return fmt.Sprintf("dashport version %s", config.Version)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dashport",
		Short:        "Import dashboard export bundles into the metadata database",
		Version:      versionString(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&flagFmt, "format", "yaml", "Output format: yaml|json")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (default: LOG_LEVEL or warn)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. The flag wins over the configured level.
func newLogger(configured string, json bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if json {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	level := flagLogLevel
	if level == "" {
		level = configured
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}

	log.SetLevel(lvl)

	return log
}
