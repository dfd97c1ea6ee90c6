package config

import (
	"testing"
	"time"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "survey-uploads", cfg.KafkaSourceTopic)
	assert.Equal(t, "body-charts", cfg.KafkaSinkTopic)
	assert.Equal(t, "body-chart", cfg.KafkaGroupID)
	assert.Equal(t, []domain.Variant{domain.VariantAny, domain.VariantWorst}, cfg.Variants)
	assert.Equal(t, domain.DefaultLayout().Palette, cfg.Palette)
	assert.Empty(t, cfg.TemplatePath)
	assert.Empty(t, cfg.ImagePath)
	assert.Equal(t, RasterizerExec, cfg.Rasterizer)
	assert.Equal(t, "convert", cfg.RasterizerCmd)
	assert.Equal(t, 30*time.Second, cfg.RasterizerTimeout)
	assert.Zero(t, cfg.RenderWidth)
	assert.Equal(t, 256, cfg.RenderCacheSize)
	assert.Equal(t, int64(4<<20), cfg.MaxUploadBytes)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("CHART_VARIANTS", "worst")
	t.Setenv("CHART_PALETTE", "#ffffff,#000000")
	t.Setenv("CHART_TEMPLATE", "/etc/body-chart/chart.svg")
	t.Setenv("RASTERIZER", "NATIVE")
	t.Setenv("RASTERIZER_TIMEOUT", "5s")
	t.Setenv("RENDER_WIDTH", "960")
	t.Setenv("RENDER_CACHE_SIZE", "10")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, []domain.Variant{domain.VariantWorst}, cfg.Variants)
	assert.Equal(t, domain.Palette{{R: 255, G: 255, B: 255}, {R: 0, G: 0, B: 0}}, cfg.Palette)
	assert.Equal(t, "/etc/body-chart/chart.svg", cfg.TemplatePath)
	assert.Equal(t, RasterizerNative, cfg.Rasterizer)
	assert.Equal(t, 5*time.Second, cfg.RasterizerTimeout)
	assert.Equal(t, 960, cfg.RenderWidth)
	assert.Equal(t, 10, cfg.RenderCacheSize)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)

	assert.Equal(t, domain.Palette{{R: 255, G: 255, B: 255}, {R: 0, G: 0, B: 0}}, cfg.Layout().Palette)
	assert.Equal(t, domain.DefaultSegments, cfg.Layout().Segments)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"BATCH_SIZE", "0", "BATCH_SIZE"},
		{"CHART_VARIANTS", "mild", "CHART_VARIANTS"},
		{"CHART_PALETTE", "#ffffff", "CHART_PALETTE"},
		{"RASTERIZER", "gpu", "RASTERIZER"},
		{"RASTERIZER_TIMEOUT", "-1s", "RASTERIZER_TIMEOUT"},
		{"RENDER_WIDTH", "wide", "RENDER_WIDTH"},
		{"RENDER_CACHE_SIZE", "-3", "RENDER_CACHE_SIZE"},
		{"MAX_UPLOAD_BYTES", "lots", "MAX_UPLOAD_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ExecNeedsCommand(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.RasterizerCmd = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTERIZER_CMD")

	cfg.Rasterizer = RasterizerNative
	assert.NoError(t, cfg.Validate())
}
