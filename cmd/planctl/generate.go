package main

import (
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/export"
	"github.com/Adithya-Monish-Kumar-K/Reading-Schedule-Planner/internal/planner"
	"github.com/spf13/cobra"
)

func generateCmd(g *globalFlags) *cobra.Command {
	var (
		days   int
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one reading schedule",
		Long: `Generate the schedule for --days and write it to the result directory as
<result-dir>/<file name pattern>. With --stdout the CSV is printed instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(g)
			if err != nil {
				return err
			}
			defer e.close()

			p, err := e.service.Generate(cmd.Context(), days)
			if err != nil {
				return err
			}
			if stdout {
				return export.WriteCSV(cmd.OutOrStdout(), p.Partition, e.cfg.Export.HeaderLanguage)
			}
			art, err := e.service.Export(cmd.Context(), e.sink, p)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), p, art.Path)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Number of reading days")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the CSV instead of writing a file")
	cmd.MarkFlagRequired("days")

	return cmd
}

func printSummary(w io.Writer, p *planner.Plan, path string) {
	status := "exact"
	if !p.Converged {
		status = fmt.Sprintf("closest (off by %d)", p.Diff)
	}
	fmt.Fprintf(w, "%d days: %d portions, %s, %d iterations -> %s\n", p.Days, p.Groups, status, p.Iterations, path)
}
