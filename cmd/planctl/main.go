// Package main is the entry point for the planctl CLI, which generates
// reading schedules offline and manages the chapter table.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	envFile    string
	input      string
	resultDir  string
	lang       string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "planctl",
		Short:         "Reading schedule planner",
		Long:          `planctl divides the chapter list into daily reading portions and writes the schedule as CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to YAML config file (default: built-in defaults)")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.PersistentFlags().StringVar(&g.input, "input", "", "Read chapters from this CSV file instead of PostgreSQL")
	cmd.PersistentFlags().StringVar(&g.resultDir, "result-dir", "", "Directory for generated schedules (overrides config)")
	cmd.PersistentFlags().StringVar(&g.lang, "lang", "", "CSV header language: ko or en (overrides config)")

	cmd.AddCommand(generateCmd(g))
	cmd.AddCommand(batchCmd(g))
	cmd.AddCommand(migrateCmd(g))
	cmd.AddCommand(importCmd(g))
	cmd.AddCommand(versionCmd())

	return cmd
}
