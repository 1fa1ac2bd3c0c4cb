package commands

import (
	"context"
	"fmt"

	"cohort-retention/pkg/export"

	"github.com/spf13/cobra"
)

func newWeekdayCmd(opts *rootOptions) *cobra.Command {
	var (
		af     analysisFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "weekday",
		Short: "Compare daily repeat rates by weekday and weekday vs weekend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeekday(cmd, opts, &af, asJSON)
		},
	}
	af.bind(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func runWeekday(cmd *cobra.Command, opts *rootOptions, af *analysisFlags, asJSON bool) error {
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
	p := a.cfg.Params()
	p.MaxAge = a.cfg.Analysis.WeekdayMaxAge
	report, err := a.engine.Weekday(ctx, table, af.apply(cmd, p))
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	if asJSON {
		return export.WriteJSON(cmd.OutOrStdout(), export.NewWeekdayReportDoc(report))
	}
	printWeekdayReport(cmd.OutOrStdout(), report)
	return nil
}
