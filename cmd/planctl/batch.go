package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func batchCmd(g *globalFlags) *cobra.Command {
	var days []int

	cmd := &cobra.Command{
		Use:     "batch",
		Short:   "Generate several schedules in parallel",
		Example: "  planctl batch --days 30,90,365 --input chapters.csv",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(days) == 0 {
				return fmt.Errorf("--days needs at least one value")
			}
			e, err := setup(g)
			if err != nil {
				return err
			}
			defer e.close()

			plans, err := e.service.GenerateMany(cmd.Context(), days)
			if err != nil {
				return err
			}
			for _, p := range plans {
				art, err := e.service.Export(cmd.Context(), e.sink, p)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), p, art.Path)
			}
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&days, "days", nil, "Comma-separated day counts")
	cmd.MarkFlagRequired("days")

	return cmd
}
