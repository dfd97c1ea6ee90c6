package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/body-chart/internal/domain"
	"github.com/couchcryptid/body-chart/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the request id on render responses.
const RequestIDHeader = "X-Request-ID"

// Renderer parses survey exports, tallies them and renders charts. It is
// implemented by pipeline.ChartTransformer.
type Renderer interface {
	Parse(name string, data []byte) (domain.Survey, error)
	Tally(survey domain.Survey, v domain.Variant) (domain.Chart, error)
	Render(ctx context.Context, survey domain.Survey, v domain.Variant, format string) (domain.RenderedChart, error)
}

// RenderOptions tunes the render routes.
type RenderOptions struct {
	CacheSize      int           // entries; zero disables caching
	MaxUploadBytes int64         // request body limit
	Timeout        time.Duration // per-render deadline
}

// Option configures a Server.
type Option func(*Server)

// WithRenderer mounts the chart and tally routes.
func WithRenderer(r Renderer, opts RenderOptions, metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.renderer = r
		s.opts = opts
		s.metrics = metrics
		if opts.CacheSize > 0 {
			s.cache = newLRUCache[cachedChart](opts.CacheSize)
		}
	}
}

// Server exposes health, readiness and metrics endpoints, and optionally the
// chart render routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	renderer Renderer
	opts     RenderOptions
	metrics  *observability.Metrics
	cache    *lruCache[cachedChart]
}

type cachedChart struct {
	data        []byte
	contentType string
	chartID     string
	max         int
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.renderer != nil {
		if s.opts.Timeout > 0 {
			s.httpServer.WriteTimeout = s.opts.Timeout + 5*time.Second
		}
		mux.HandleFunc("POST /v1/charts/{variant}", s.handleChart)
		mux.HandleFunc("POST /v1/tallies/{variant}", s.handleTally)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// renderRequest is the decoded input shared by the render routes.
type renderRequest struct {
	id      string
	name    string
	variant domain.Variant
	body    []byte
	logger  *slog.Logger
}

// readRequest resolves the variant and reads the body. It writes the error
// response itself and returns false on failure.
func (s *Server) readRequest(w http.ResponseWriter, r *http.Request) (renderRequest, bool) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	req := renderRequest{
		id:     id,
		name:   r.URL.Query().Get("name"),
		logger: s.logger.With("request_id", id),
	}
	if req.name == "" {
		req.name = "upload"
	}

	v, err := domain.ParseVariant(r.PathValue("variant"))
	if err != nil {
		writeError(w, http.StatusNotFound, id, err)
		return req, false
	}
	req.variant = v

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes()))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, id,
				fmt.Errorf("survey exceeds %d bytes", tooLarge.Limit))
			return req, false
		}
		writeError(w, http.StatusBadRequest, id, fmt.Errorf("read body: %w", err))
		return req, false
	}
	req.body = body
	return req, true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "svg" {
		writeError(w, http.StatusBadRequest, req.id, fmt.Errorf("unsupported format %q", format))
		return
	}

	key := cacheKey(req.body, req.name, req.variant, format)
	if s.cache != nil {
		if c, ok := s.cache.get(key); ok {
			s.metrics.RenderCache.WithLabelValues("hit").Inc()
			writeChart(w, c)
			return
		}
		s.metrics.RenderCache.WithLabelValues("miss").Inc()
	}

	survey, err := s.renderer.Parse(req.name, req.body)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.id, err)
		return
	}

	ctx := r.Context()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	chart, err := s.renderer.Render(ctx, survey, req.variant, format)
	if err != nil {
		req.logger.Error("render failed", "error", err, "variant", req.variant.Name, "format", format)
		writeError(w, http.StatusInternalServerError, req.id, errors.New("render failed"))
		return
	}

	c := cachedChart{
		data:        chart.Data,
		contentType: contentType(format),
		chartID:     chart.Chart.ID,
		max:         chart.Chart.Max,
	}
	if s.cache != nil {
		s.cache.put(key, c)
	}
	req.logger.Info("chart served",
		"survey", req.name,
		"variant", req.variant.Name,
		"format", format,
		"chart_id", chart.Chart.ID,
	)
	writeChart(w, c)
}

// tallyResponse is the JSON body of the tally route.
type tallyResponse struct {
	ChartID   string             `json:"chart_id"`
	Survey    string             `json:"survey"`
	Variant   string             `json:"variant"`
	Threshold int                `json:"threshold"`
	Max       int                `json:"max"`
	Rows      int                `json:"rows"`
	Parsed    int                `json:"parsed"`
	Discarded int                `json:"discarded"`
	Zones     []domain.ZoneTally `json:"zones"`
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readRequest(w, r)
	if !ok {
		return
	}

	survey, err := s.renderer.Parse(req.name, req.body)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.id, err)
		return
	}

	chart, err := s.renderer.Tally(survey, req.variant)
	if err != nil {
		req.logger.Error("tally failed", "error", err, "variant", req.variant.Name)
		writeError(w, http.StatusInternalServerError, req.id, errors.New("tally failed"))
		return
	}

	writeJSON(w, http.StatusOK, tallyResponse{
		ChartID:   chart.ID,
		Survey:    survey.Name,
		Variant:   req.variant.Name,
		Threshold: req.variant.Threshold,
		Max:       chart.Max,
		Rows:      chart.Rows,
		Parsed:    survey.Records.Parsed,
		Discarded: survey.Records.Discarded,
		Zones:     chart.Zones(),
	})
}

func (s *Server) maxUploadBytes() int64 {
	if s.opts.MaxUploadBytes > 0 {
		return s.opts.MaxUploadBytes
	}
	return 4 << 20
}

func cacheKey(body []byte, name string, v domain.Variant, format string) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]) + "|" + name + "|" + v.Name + "|" + format
}

func contentType(format string) string {
	if format == "svg" {
		return "image/svg+xml"
	}
	return "image/png"
}

func writeChart(w http.ResponseWriter, c cachedChart) {
	w.Header().Set("Content-Type", c.contentType)
	w.Header().Set("X-Chart-ID", c.chartID)
	w.Header().Set("X-Chart-Max", strconv.Itoa(c.max))
	w.WriteHeader(http.StatusOK)
	w.Write(c.data) //nolint:errcheck // client may have gone away
}

func writeError(w http.ResponseWriter, status int, requestID string, err error) {
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
