package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/body-chart/internal/assets"
	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/observability"
)

// Output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// ChartTransformer implements Transformer: it parses a survey once and
// renders it under each requested variant.
type ChartTransformer struct {
	bundle     *assets.Bundle
	rasterizer domain.Rasterizer
	variants   []domain.Variant
	format     string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewTransformer creates a ChartTransformer. format is FormatPNG or FormatSVG;
// the rasterizer may be nil when only SVG is produced.
func NewTransformer(bundle *assets.Bundle, rasterizer domain.Rasterizer, variants []domain.Variant, format string, logger *slog.Logger, metrics *observability.Metrics) *ChartTransformer {
	return &ChartTransformer{
		bundle:     bundle,
		rasterizer: rasterizer,
		variants:   variants,
		format:     format,
		logger:     logger,
		metrics:    metrics,
	}
}

// Transform renders every variant of the survey. Variants fail independently:
// charts that rendered are returned alongside the joined errors of those that did not.
func (t *ChartTransformer) Transform(ctx context.Context, raw domain.RawSurvey) ([]domain.RenderedChart, error) {
	survey, err := t.Parse(raw.Name, raw.Data)
	if err != nil {
		return nil, err
	}

	variants := raw.Variants
	if len(variants) == 0 {
		variants = t.variants
	}

	var (
		out  []domain.RenderedChart
		errs []error
	)
	for _, v := range variants {
		chart, err := t.Render(ctx, survey, v, t.format)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		chart.Destination = raw.Destinations[v.Name]
		out = append(out, chart)
	}
	return out, errors.Join(errs...)
}

// Parse reads a survey export and records row metrics.
func (t *ChartTransformer) Parse(name string, data []byte) (domain.Survey, error) {
	survey, err := domain.NewSurvey(name, data, t.bundle.Template.Layout().Segments)
	if err != nil {
		t.metrics.RenderErrors.WithLabelValues("all", "parse").Inc()
		return domain.Survey{}, fmt.Errorf("survey %s: %w", name, err)
	}

	t.metrics.RowsParsed.Add(float64(survey.Records.Parsed))
	t.metrics.RowsDiscarded.Add(float64(survey.Records.Discarded))
	if survey.Records.Discarded > 0 {
		t.logger.Debug("discarded survey rows",
			"survey", name,
			"discarded", survey.Records.Discarded,
			"parsed", survey.Records.Parsed,
		)
	}
	return survey, nil
}

// Tally summarizes one variant of a survey without filling or rasterizing it.
// It is counted under tallies, not rendered charts.
func (t *ChartTransformer) Tally(survey domain.Survey, v domain.Variant) (domain.Chart, error) {
	chart, err := domain.TallySurvey(survey, v, t.bundle.Template.Layout().Segments)
	if err != nil {
		t.metrics.RenderErrors.WithLabelValues(v.Name, "tally").Inc()
		return domain.Chart{}, err
	}
	t.metrics.TalliesServed.WithLabelValues(v.Name).Inc()
	return chart, nil
}

// Render tallies and fills one variant and encodes it in format. Nothing is
// handed to the rasterizer unless the template filled completely.
func (t *ChartTransformer) Render(ctx context.Context, survey domain.Survey, v domain.Variant, format string) (domain.RenderedChart, error) {
	start := time.Now()

	chart, err := domain.RenderChart(survey, v, t.bundle.Template, t.bundle.ImageBase64)
	if err != nil {
		t.metrics.RenderErrors.WithLabelValues(v.Name, "fill").Inc()
		return domain.RenderedChart{}, err
	}

	var data []byte
	switch format {
	case FormatSVG:
		data = []byte(chart.SVG)
	case FormatPNG:
		if t.rasterizer == nil {
			return domain.RenderedChart{}, fmt.Errorf("render %s/%s: no rasterizer configured", survey.Name, v.Name)
		}
		data, err = t.rasterizer.Rasterize(ctx, chart.SVG)
		if err != nil {
			t.metrics.RenderErrors.WithLabelValues(v.Name, "rasterize").Inc()
			return domain.RenderedChart{}, fmt.Errorf("rasterize %s/%s: %w", survey.Name, v.Name, err)
		}
	default:
		return domain.RenderedChart{}, fmt.Errorf("render %s/%s: unknown format %q", survey.Name, v.Name, format)
	}

	t.metrics.ChartsRendered.WithLabelValues(v.Name).Inc()
	t.metrics.RenderDuration.WithLabelValues(v.Name).Observe(time.Since(start).Seconds())
	t.logger.Debug("chart rendered",
		"survey", survey.Name,
		"variant", v.Name,
		"chart_id", chart.ID,
		"max", chart.Max,
		"format", format,
	)

	return domain.RenderedChart{Chart: chart, Format: format, Data: data}, nil
}
