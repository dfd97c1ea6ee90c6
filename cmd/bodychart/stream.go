package main

import (
	"context"
	"errors"
	"net/http"

	httpadapter "github.com/couchcryptid/body-chart/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/body-chart/internal/adapter/kafka"
	"github.com/couchcryptid/body-chart/internal/observability"
	"github.com/couchcryptid/body-chart/internal/pipeline"
	"github.com/spf13/cobra"
)

func newStreamCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Render charts for survey exports consumed from Kafka",
		Long: `stream consumes survey exports from KAFKA_SOURCE_TOPIC (message key:
survey name, value: CSV) and publishes one PNG chart per variant to
KAFKA_SINK_TOPIC. A "variants" header restricts the variants of one message.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.stream(cmd.Context())
		},
	}
}

func (a *app) stream(ctx context.Context) error {
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
	if err := r.CheckReadiness(ctx); err != nil {
		return err
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(bundle, r, cfg.Variants, pipeline.FormatPNG, logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start render pipeline.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before shutdown timeout")
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete", "charts", p.Loaded(), "failures", p.Failures())
	return nil
}
