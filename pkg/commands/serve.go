package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cohort-retention/pkg/models"
	"cohort-retention/pkg/server"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the retention HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions, addr string) error {
	ctx := cmd.Context()
	a, err := setup(ctx, opts, nil)
	if err != nil {
		return err
	}
	defer a.cleanup()

	if a.cfg.Source.CSV == "" && a.cfg.Source.DSN == "" {
		return fmt.Errorf("no order source: set --csv, --dsn or source.csv/source.dsn")
	}
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	// Every request reads a fresh snapshot; unchanged data hits the cache.
	source := func(ctx context.Context) (models.OrderTable, error) {
		return loadTable(ctx, a.cfg.Source, a.log)
	}
	srv := server.New(a.engine, source, server.Options{
		Addr:          addr,
		Defaults:      a.cfg.Params(),
		WeekdayMaxAge: a.cfg.Analysis.WeekdayMaxAge,
	}, a.log)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	w := cmd.ErrOrStderr()
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		_, _ = yellow.Fprintf(w, "\nReceived %s, shutting down...\n", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		_, _ = green.Fprintln(w, "Server stopped gracefully")
		return nil
	}
}
