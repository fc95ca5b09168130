package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	modelPath       string
	overrides       []string
	tempDir         string
	journalDB       string
	metricsTextfile string
	logFile         string
	logFormat       string
	traceExporter   string
	traceEndpoint   string
	jsonOutput      bool

	installerVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// LogLevelFromEnv returns ESINSTALL_LOG_LEVEL, falling back to LOG_LEVEL.
func LogLevelFromEnv() string {
	if v := os.Getenv("ESINSTALL_LOG_LEVEL"); v != "" {
		return strings.ToLower(v)
	}
	return strings.ToLower(os.Getenv("LOG_LEVEL"))
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	installerVersion = version

	rootCmd := &cobra.Command{
		Use:   "esinstall",
		Short: "esinstall - phased installer for a search node service",
		Long: `esinstall runs one phase of a search node installation per invocation.

The host installer calls it for each phase in turn:
  - validate   checks the installation model and the Java runtime
  - install    stores state, generates certificates, starts the service and
               provisions the license and passwords; rolls back on failure
  - rollback   undoes a failed install using the persisted state
  - commit     publishes environment variables and removes the state
  - uninstall  removes plugins and installation directories

State survives between invocations in <temp-dir>/<product>_Installation.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&modelPath, "model", "m", "", "installation model file (YAML)")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override a model field, e.g. --set node.http_port=9201 (repeatable)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "base directory for persisted installation state (default: system temp)")
	rootCmd.PersistentFlags().StringVar(&journalDB, "journal-db", "", "record phase runs in this SQLite database")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write phase metrics to this file in textfile exposition format")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write structured logs to this file with rotation (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&traceExporter, "trace-exporter", "none", "trace exporter (none, stdout, otlp)")
	rootCmd.PersistentFlags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newCommitCommand())
	rootCmd.AddCommand(newUninstallCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(newJournalCommand())

	return rootCmd
}
