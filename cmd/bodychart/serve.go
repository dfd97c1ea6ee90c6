package main

import (
	"context"
	"errors"
	"net/http"

	httpadapter "github.com/couchcryptid/body-chart/internal/adapter/http"
	"github.com/couchcryptid/body-chart/internal/observability"
	"github.com/couchcryptid/body-chart/internal/pipeline"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve charts over HTTP",
		Long: `serve renders charts from survey exports posted to
POST /v1/charts/{variant} (PNG, or SVG with ?format=svg) and returns zone
tallies as JSON from POST /v1/tallies/{variant}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; overrides HTTP_ADDR")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	metrics := observability.NewMetrics()

	bundle, err := a.loadBundle()
	if err != nil {
		return err
	}
	r, err := a.newRasterizer(bundle)
	if err != nil {
		return err
	}

	tr := pipeline.NewTransformer(bundle, r, cfg.Variants, pipeline.FormatPNG, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, r, logger, httpadapter.WithRenderer(tr, httpadapter.RenderOptions{
		CacheSize:      cfg.RenderCacheSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Timeout:        cfg.RasterizerTimeout,
	}, metrics))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
