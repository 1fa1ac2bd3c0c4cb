package commands

import (
	"context"
	"fmt"

	"cohort-retention/pkg/export"

	"github.com/spf13/cobra"
)

func newDistributionCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Count users by number of distinct orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDistribution(cmd, opts, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runDistribution(cmd *cobra.Command, opts *rootOptions, asJSON bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), analysisTimeout)
	defer cancel()

	a, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer a.cleanup()

	table, err := loadTable(ctx, a.cfg.Source, a.log)
	if err != nil {
		return err
	}
	dist, err := a.engine.PurchaseDistribution(ctx, table)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	if asJSON {
		return export.WriteJSON(cmd.OutOrStdout(), export.NewDistributionDoc(dist))
	}
	printDistribution(cmd.OutOrStdout(), dist)
	return nil
}
