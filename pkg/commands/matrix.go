package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cohort-retention/pkg/export"

	"github.com/spf13/cobra"
)

const analysisTimeout = 5 * time.Minute

func newMatrixCmd(opts *rootOptions) *cobra.Command {
	var (
		af     analysisFlags
		out    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Compute the cohort retention matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(cmd, opts, &af, out, asJSON)
		},
	}
	af.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the report to a .json, .csv or .xlsx file; a directory gets a timestamped .xlsx")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func runMatrix(cmd *cobra.Command, opts *rootOptions, af *analysisFlags, out string, asJSON bool) error {
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
	report, err := a.engine.Retention(ctx, table, af.apply(cmd, a.cfg.Params()))
	if err != nil {
		return fmt.Errorf("compute: %w", err)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		if err := export.WriteJSON(w, export.NewReportDoc(report)); err != nil {
			return err
		}
	} else {
		printMatrix(w, report.Matrix)
	}

	if out != "" {
		path := out
		if filepath.Ext(out) == "" {
			path = export.TimestampedFilename(out, "retention", ".xlsx", time.Now())
		}
		if err := export.ReportToFile(path, report); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		_, _ = green.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", path)
	}
	return nil
}
