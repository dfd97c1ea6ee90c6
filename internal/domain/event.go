package domain

import (
	"context"
	"time"
)

// RawSurvey is an unprocessed survey export read from a source.
type RawSurvey struct {
	Name string
	Data []byte

	// Variants overrides the transformer's default variants when non-empty.
	Variants []Variant
	// Destinations maps variant names to sink-specific locations, e.g. file paths.
	Destinations map[string]string

	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RenderedChart is a chart encoded for a sink.
type RenderedChart struct {
	Chart       Chart
	Format      string // "png" or "svg"
	Data        []byte
	Destination string
}

// Rasterizer converts filled chart SVG text into PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, svg string) ([]byte, error)
}
