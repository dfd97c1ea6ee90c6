package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/observability"
)

// ErrSourceExhausted is returned by a BatchExtractor that has nothing left to
// read. Run stops cleanly when it sees it.
var ErrSourceExhausted = io.EOF

// BatchExtractor reads up to batchSize raw surveys from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawSurvey, error)
}

// Transformer renders a raw survey into one chart per variant. It may return
// charts together with an error when only some variants failed.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawSurvey) ([]domain.RenderedChart, error)
}

// BatchLoader writes rendered charts to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, charts []domain.RenderedChart) error
}

// Pipeline orchestrates the extract-transform-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready        atomic.Bool
	batchSize    int
	loadAttempts int

	loaded   atomic.Int64
	failures atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLoadAttempts bounds how often a failed batch load is retried before its
// charts are counted as failures and the batch is dropped uncommitted. The
// default, 0, retries until the load succeeds or the context is cancelled, so
// a committing source never skips past charts that were not written.
func WithLoadAttempts(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.loadAttempts = n
		}
	}
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, opts ...Option) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once the pipeline has loaded at least one chart.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not rendered any charts yet")
	}
	return nil
}

// Loaded returns the number of charts written to the loader.
func (p *Pipeline) Loaded() int64 { return p.loaded.Load() }

// Failures returns the number of surveys or charts that could not be rendered or loaded.
func (p *Pipeline) Failures() int64 { return p.failures.Load() }

// Run executes the batch loop until the context is cancelled or the source is exhausted.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-transform-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	exhausted := errors.Is(err, ErrSourceExhausted)
	if err != nil && !exhausted {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		if exhausted {
			p.logger.Info("source exhausted", "loaded", p.loaded.Load(), "failures", p.failures.Load())
			return false
		}
		return ctx.Err() == nil
	}

	p.metrics.SurveysConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.transformAndLoad(ctx, rawBatch, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return !exhausted
}

// transformAndLoad renders each survey in the batch, loads the charts, and
// commits offsets in batch order once the load has succeeded. Surveys that
// rendered nothing are committed with the rest so they are not redelivered.
// Returns the number of loaded charts and false if the pipeline should stop.
func (p *Pipeline) transformAndLoad(ctx context.Context, rawBatch []domain.RawSurvey, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	outBatch := make([]domain.RenderedChart, 0, len(rawBatch))

	for _, raw := range rawBatch {
		charts, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.failures.Add(1)
			p.logger.Warn("render failed",
				"error", err,
				"survey", raw.Name,
				"charts_rendered", len(charts),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
		}
		outBatch = append(outBatch, charts...)
	}

	if len(outBatch) > 0 {
		loaded, ok := p.load(ctx, outBatch, backoff, maxBackoff)
		if !loaded {
			return 0, ok
		}
	}

	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}
	return len(outBatch), true
}

// load writes the batch, retrying with backoff until it succeeds, the load
// attempts run out, or ctx is cancelled. It reports whether the batch was
// loaded and whether the pipeline should keep running.
func (p *Pipeline) load(ctx context.Context, batch []domain.RenderedChart, backoff *time.Duration, maxBackoff time.Duration) (loaded, ok bool) {
	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, batch)
		if err == nil {
			p.loaded.Add(int64(len(batch)))
			return true, true
		}

		for _, c := range batch {
			p.metrics.RenderErrors.WithLabelValues(c.Chart.Variant.Name, "load").Inc()
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "attempt", attempt)

		if p.loadAttempts > 0 && attempt >= p.loadAttempts {
			p.failures.Add(int64(len(batch)))
			return false, p.backoffOrStop(ctx, backoff, maxBackoff)
		}
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			p.failures.Add(int64(len(batch)))
			return false, false
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the source position if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawSurvey) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
