package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/body-chart/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Rasterizer backends.
const (
	RasterizerExec   = "exec"
	RasterizerNative = "native"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BatchSize       int

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string

	// Chart rendering.
	Variants     []domain.Variant
	Palette      domain.Palette
	TemplatePath string // empty uses the embedded template
	ImagePath    string // empty uses the embedded backdrop

	Rasterizer        string
	RasterizerCmd     string
	RasterizerTimeout time.Duration
	RenderWidth       int

	// Render service.
	RenderCacheSize int
	MaxUploadBytes  int64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	variants, err := domain.ParseVariants(sharedcfg.EnvOrDefault("CHART_VARIANTS", "any,worst"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHART_VARIANTS: %w", err)
	}

	palette, err := domain.ParsePalette(strings.Split(
		sharedcfg.EnvOrDefault("CHART_PALETTE", strings.Join(domain.DefaultPaletteHex, ",")), ","))
	if err != nil {
		return nil, fmt.Errorf("invalid CHART_PALETTE: %w", err)
	}

	rasterizerTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("RASTERIZER_TIMEOUT", "30s"))
	if err != nil || rasterizerTimeout <= 0 {
		return nil, errors.New("invalid RASTERIZER_TIMEOUT")
	}

	renderWidth, err := parseNonNegativeInt("RENDER_WIDTH", 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseNonNegativeInt("RENDER_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	maxUpload, err := parseNonNegativeInt("MAX_UPLOAD_BYTES", 4<<20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BatchSize:       batchSize,

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "survey-uploads"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "body-charts"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "body-chart"),

		Variants:     variants,
		Palette:      palette,
		TemplatePath: os.Getenv("CHART_TEMPLATE"),
		ImagePath:    os.Getenv("CHART_IMAGE"),

		Rasterizer:        strings.ToLower(sharedcfg.EnvOrDefault("RASTERIZER", RasterizerExec)),
		RasterizerCmd:     sharedcfg.EnvOrDefault("RASTERIZER_CMD", "convert"),
		RasterizerTimeout: rasterizerTimeout,
		RenderWidth:       renderWidth,

		RenderCacheSize: cacheSize,
		MaxUploadBytes:  int64(maxUpload),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that flags may have overridden after Load.
func (c *Config) Validate() error {
	switch c.Rasterizer {
	case RasterizerExec, RasterizerNative:
	default:
		return fmt.Errorf("invalid RASTERIZER %q: want %s or %s", c.Rasterizer, RasterizerExec, RasterizerNative)
	}
	if c.Rasterizer == RasterizerExec && c.RasterizerCmd == "" {
		return errors.New("RASTERIZER_CMD is required for the exec rasterizer")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	return nil
}

// Layout returns the chart layout with the configured palette.
func (c *Config) Layout() domain.Layout {
	return domain.DefaultLayout().WithPalette(c.Palette)
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
