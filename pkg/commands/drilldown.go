package commands

import (
	"context"
	"fmt"

	"cohort-retention/pkg/export"
	"cohort-retention/pkg/models"

	"github.com/spf13/cobra"
)

func newDrilldownCmd(opts *rootOptions) *cobra.Command {
	var (
		af         analysisFlags
		startMonth string
		endMonth   string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "drilldown",
		Short: "Compute one weekly (or daily) matrix per cohort month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrilldown(cmd, opts, &af, startMonth, endMonth, asJSON)
		},
	}
	af.bind(cmd)
	cmd.Flags().StringVar(&startMonth, "start_month", "", "first cohort month (MMYYYY)")
	cmd.Flags().StringVar(&endMonth, "end_month", "", "last cohort month (MMYYYY)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("start_month")
	_ = cmd.MarkFlagRequired("end_month")
	return cmd
}

func runDrilldown(cmd *cobra.Command, opts *rootOptions, af *analysisFlags, startMonth, endMonth string, asJSON bool) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), analysisTimeout)
	defer cancel()

	progress := cmd.ErrOrStderr()
	if asJSON {
		progress = nil
	}
	a, err := setup(ctx, opts, progress)
	if err != nil {
		return err
	}
	defer a.cleanup()

	table, err := loadTable(ctx, a.cfg.Source, a.log)
	if err != nil {
		return err
	}
	p := a.cfg.Params()
	p.Granularity = models.Week
	p = af.apply(cmd, p)
	// a bucket filter would fight the per-month scope
	p.Scope.Bucket = ""

	results, err := a.engine.Drilldown(ctx, table, p, startMonth, endMonth)
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		return export.WriteJSON(w, export.NewDrilldownDocs(results))
	}
	fmt.Fprintln(w)
	for _, r := range results {
		if r.Skipped {
			_, _ = yellow.Fprintf(w, "%s: no cohorts\n\n", r.Month)
			continue
		}
		_, _ = bold.Fprintf(w, "%s\n", r.Month)
		printMatrix(w, r.Report.Matrix)
		fmt.Fprintln(w)
	}
	return nil
}
