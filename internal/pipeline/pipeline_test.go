package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/observability"
	"github.com/couchcryptid/body-chart/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// mockExtractor hands out one batch per call and then reports exhaustion, or
// blocks until cancelled when block is set.
type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawSurvey
	errs    []error
	block   bool
	calls   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawSurvey, error) {
	m.calls.Add(1)
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, pipeline.ErrSourceExhausted
}

type mockTransformer struct {
	// failVariant makes that variant fail for every survey.
	failVariant string
	// failSurvey makes every variant of that survey fail.
	failSurvey string
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawSurvey) ([]domain.RenderedChart, error) {
	if raw.Name == m.failSurvey {
		return nil, fmt.Errorf("survey %s: malformed", raw.Name)
	}
	var (
		out  []domain.RenderedChart
		errs []error
	)
	for _, v := range raw.Variants {
		if v.Name == m.failVariant {
			errs = append(errs, fmt.Errorf("variant %s failed", v.Name))
			continue
		}
		out = append(out, domain.RenderedChart{
			Chart:       domain.Chart{Survey: raw.Name, Variant: v},
			Format:      "png",
			Data:        []byte(raw.Name + "/" + v.Name),
			Destination: raw.Destinations[v.Name],
		})
	}
	return out, errors.Join(errs...)
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.RenderedChart
	err    error
	// failFirst makes the first n calls fail before loads succeed.
	failFirst int
	calls     int
}

func (m *mockLoader) LoadBatch(_ context.Context, charts []domain.RenderedChart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	if m.calls <= m.failFirst {
		return errors.New("sink unavailable")
	}
	m.loaded = append(m.loaded, charts...)
	return nil
}

func (m *mockLoader) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.loaded))
	for i, c := range m.loaded {
		out[i] = string(c.Data)
	}
	return out
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func rawSurvey(name string, commits *atomic.Int64) domain.RawSurvey {
	return domain.RawSurvey{
		Name:     name,
		Data:     []byte("1,1,0\n"),
		Variants: domain.Variants(),
		Destinations: map[string]string{
			"any":   name + ".any.png",
			"worst": name + ".worst.png",
		},
		Commit: func(context.Context) error {
			if commits != nil {
				commits.Add(1)
			}
			return nil
		},
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawSurvey{
		{rawSurvey("a", &commits), rawSurvey("b", &commits)},
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, []string{"a/any", "a/worst", "b/any", "b/worst"}, ldr.names())
	assert.Equal(t, int64(4), p.Loaded())
	assert.Zero(t, p.Failures())
	assert.Equal(t, int64(2), commits.Load())
	assert.NoError(t, p.CheckReadiness(ctx))
}

func TestPipeline_Run_StopsWhenSourceExhausted(t *testing.T) {
	ext := &mockExtractor{}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int64(1), ext.calls.Load())
	assert.Error(t, p.CheckReadiness(context.Background()), "nothing rendered yet")
}

func TestPipeline_Run_StopsOnCancel(t *testing.T) {
	ext := &mockExtractor{block: true}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop after cancel")
	}
}

func TestPipeline_Run_VariantFailureKeepsOtherCharts(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawSurvey{{rawSurvey("a", &commits)}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{failVariant: "worst"}, ldr, slog.Default(), newTestMetrics(), 10)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"a/any"}, ldr.names())
	assert.Equal(t, int64(1), p.Failures())
	assert.Equal(t, int64(1), commits.Load())
}

func TestPipeline_Run_UnparseableSurveyIsCommittedAndSkipped(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawSurvey{
		{rawSurvey("bad", &commits), rawSurvey("good", &commits)},
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{failSurvey: "bad"}, ldr, slog.Default(), newTestMetrics(), 10)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []string{"good/any", "good/worst"}, ldr.names())
	assert.Equal(t, int64(1), p.Failures())
	assert.Equal(t, int64(2), commits.Load(), "poison surveys must not be redelivered")
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawSurvey{{rawSurvey("a", &commits)}}}
	ldr := &mockLoader{err: errors.New("disk full")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Zero(t, commits.Load())
	assert.Zero(t, p.Loaded())
	assert.Equal(t, int64(2), p.Failures())
	assert.Greater(t, ldr.calls, 1, "failed loads are retried")
}

func TestPipeline_Run_LoadRetriesBeforeLaterBatches(t *testing.T) {
	var commits []string
	var mu sync.Mutex
	commitAs := func(raw domain.RawSurvey) domain.RawSurvey {
		raw.Commit = func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			commits = append(commits, raw.Name)
			return nil
		}
		return raw
	}
	ext := &mockExtractor{batches: [][]domain.RawSurvey{
		{commitAs(rawSurvey("a", nil)), commitAs(rawSurvey("bad", nil))},
		{commitAs(rawSurvey("b", nil))},
	}}
	ldr := &mockLoader{failFirst: 2}

	p := pipeline.New(ext, &mockTransformer{failSurvey: "bad"}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, []string{"a/any", "a/worst", "b/any", "b/worst"}, ldr.names())
	assert.Equal(t, []string{"a", "bad", "b"}, commits)
	assert.Equal(t, 4, ldr.calls)
	assert.Equal(t, int64(1), p.Failures())
}

func TestPipeline_Run_LoadAttemptsBound(t *testing.T) {
	var commits atomic.Int64
	ext := &mockExtractor{batches: [][]domain.RawSurvey{
		{rawSurvey("a", &commits)},
		{rawSurvey("b", &commits)},
	}}
	ldr := &mockLoader{err: errors.New("read-only file system")}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10, pipeline.WithLoadAttempts(1))
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 2, ldr.calls)
	assert.Zero(t, commits.Load())
	assert.Equal(t, int64(4), p.Failures())
}

func TestPipeline_Run_RetriesAfterExtractError(t *testing.T) {
	ext := &mockExtractor{
		errs:    []error{errors.New("broker unavailable")},
		batches: [][]domain.RawSurvey{{rawSurvey("a", nil)}},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Len(t, ldr.names(), 2)
	assert.GreaterOrEqual(t, ext.calls.Load(), int64(3))
}

func TestPipeline_New_ClampsBatchSize(t *testing.T) {
	ext := &mockExtractor{batches: [][]domain.RawSurvey{{rawSurvey("a", nil)}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, slog.Default(), newTestMetrics(), 0)
	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, ldr.names(), 2)
}

// surveyCSV builds an export with one row per respondent. Each respondent row
// lists the zone values in order; unlisted zones are left empty.
func surveyCSV(rows ...[]int) []byte {
	var b strings.Builder
	for i, row := range rows {
		fields := make([]string, domain.DefaultSegments+1)
		fields[0] = fmt.Sprint(i + 1)
		for z, v := range row {
			fields[z+1] = fmt.Sprint(v)
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
