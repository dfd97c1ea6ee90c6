package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "body_chart"

// Metrics holds the Prometheus counters, histograms, and gauges for chart rendering.
type Metrics struct {
	SurveysConsumed prometheus.Counter
	RowsParsed      prometheus.Counter
	RowsDiscarded   prometheus.Counter
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Rendering metrics.
	ChartsRendered *prometheus.CounterVec   // labels: variant
	RenderErrors   *prometheus.CounterVec   // labels: variant, stage={parse,tally,fill,rasterize,load}
	RenderDuration *prometheus.HistogramVec // labels: variant
	RenderCache    *prometheus.CounterVec   // labels: result={hit,miss}
	TalliesServed  *prometheus.CounterVec   // labels: variant
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.SurveysConsumed,
		m.RowsParsed,
		m.RowsDiscarded,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ChartsRendered,
		m.RenderErrors,
		m.RenderDuration,
		m.RenderCache,
		m.TalliesServed,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SurveysConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "surveys_consumed_total",
			Help:      "Total survey exports read from the source.",
		}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Total survey rows read, valid or not.",
		}),
		RowsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_discarded_total",
			Help:      "Total survey rows dropped for a non-integer id or first zone.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of surveys per extracted batch.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ChartsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "charts_rendered_total",
			Help:      "Charts rendered by variant.",
		}, []string{"variant"}),
		RenderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Chart render failures by variant and stage.",
		}, []string{"variant", "stage"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time to tally, fill and rasterize one chart.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"variant"}),
		RenderCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_cache_total",
			Help:      "Render service cache lookups by result.",
		}, []string{"result"}),
		TalliesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tallies_total",
			Help:      "Tally summaries computed without rendering, by variant.",
		}, []string{"variant"}),
	}
}
