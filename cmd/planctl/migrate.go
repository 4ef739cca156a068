package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/pkg/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the chapter table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s ready\n", cfg.Postgres.ChapterTable)
			return nil
		},
	}
}

func importCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load chapters from --input into the chapter table",
		Long: `Replace the chapter table contents with the CSV given by --input
(columns index,label,chapter,size). The table is created if missing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.input == "" {
				return fmt.Errorf("--input is required")
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			units, err := source.NewCSV(g.input).FetchUnits(cmd.Context())
			if err != nil {
				return err
			}
			db, err := postgres.New(cfg.Postgres)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			if err := source.NewPostgres(db).Import(cmd.Context(), units); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d chapters into %s\n", len(units), cfg.Postgres.ChapterTable)
			return nil
		},
	}
}
