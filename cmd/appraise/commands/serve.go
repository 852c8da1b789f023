package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FranksOps/appraise/internal/api"
	"github.com/FranksOps/appraise/internal/metrics"
	"github.com/FranksOps/appraise/internal/telemetry"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the market, pricing and vision endpoints over HTTP.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		tel, err := telemetry.Setup(ctx, "appraise", cfg.Telemetry, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("telemetry shutdown", "err", err)
			}
		}()

		d, err := newDeps(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()

		opts := api.Options{
			Aggregator: d.aggregator,
			Logger:     logger,
			Swagger:    true,
		}
		// Typed nils would defeat the handlers' nil checks.
		if d.estimator != nil {
			opts.Estimator = d.estimator
		}
		if d.identifier != nil {
			opts.Identifier = d.identifier
		}
		if cfg.MetricsListen == "" {
			opts.Metrics = metrics.Handler()
		} else {
			ms := metrics.Start(cfg.MetricsListen, logger)
			defer ms.Stop(context.WithoutCancel(ctx))
		}

		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.New(opts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errc := make(chan error, 1)
		go func() {
			logger.Info("listening", "addr", cfg.Listen, "sources", len(d.aggregator.Sources()))
			errc <- srv.ListenAndServe()
		}()

		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
