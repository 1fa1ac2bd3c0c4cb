package commands

import (
	"context"
	"fmt"

	"cohort-retention/pkg/cohort"
	"cohort-retention/pkg/export"

	"github.com/spf13/cobra"
)

func newRepeatCmd(opts *rootOptions) *cobra.Command {
	var (
		year   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "repeat",
		Short: "Show the monthly share of returning purchasers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepeat(cmd, opts, year, asJSON)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "order year (default analysis.scopeYear)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runRepeat(cmd *cobra.Command, opts *rootOptions, year int, asJSON bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), analysisTimeout)
	defer cancel()

	a, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer a.cleanup()

	if !cmd.Flags().Changed("year") {
		year = a.cfg.Analysis.ScopeYear
	}
	table, err := loadTable(ctx, a.cfg.Source, a.log)
	if err != nil {
		return err
	}
	months, err := a.engine.RepeatPurchasers(ctx, table, year)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}
	split := cohort.Seasonal(months)

	if asJSON {
		return export.WriteJSON(cmd.OutOrStdout(), export.NewRepeatDoc(year, months, split))
	}
	printRepeat(cmd.OutOrStdout(), year, months, split)
	return nil
}
