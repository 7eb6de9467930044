package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/dunamismax/mediaproc/internal/pipeline"
	"github.com/dunamismax/mediaproc/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCacheControl = "public, max-age=31536000, immutable"
	defaultReadyTimeout = 2 * time.Second
)

// Processor is the request path behind GET /{key}.
type Processor interface {
	Validate(req pipeline.Request) (string, error)
	Process(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Pinger is a backend checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats reports worker pool occupancy on /readyz.
type PoolStats interface {
	Concurrency() int
	Running() int64
	Waiting() uint64
}

type Options struct {
	Logger      zerolog.Logger
	Processor   Processor
	RateLimiter RateLimiter
	// Registry receives the HTTP metrics and is served on /metrics. A fresh
	// registry is created when nil.
	Registry *prometheus.Registry
	Tracer   trace.Tracer
	// Readiness checks run by name on /readyz.
	Readiness map[string]Pinger
	Pool      PoolStats
	// Usage backs GET /usage; the endpoint answers 404 when nil.
	Usage          store.UsageReporter
	DefaultQuality int
	CacheControl   string
}

type Server struct {
	logger         zerolog.Logger
	processor      Processor
	rateLimiter    RateLimiter
	tracer         trace.Tracer
	readiness      map[string]Pinger
	pool           PoolStats
	usage          store.UsageReporter
	defaultQuality int
	cacheControl   string
	metrics        *metrics
	router         chi.Router
}

func NewServer(opts Options) (*Server, error) {
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	m, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}
	if opts.DefaultQuality < domain.MinQuality || opts.DefaultQuality > domain.MaxQuality {
		opts.DefaultQuality = domain.DefaultQuality
	}
	if opts.CacheControl == "" {
		opts.CacheControl = defaultCacheControl
	}

	s := &Server{
		logger:         opts.Logger,
		processor:      opts.Processor,
		rateLimiter:    opts.RateLimiter,
		tracer:         opts.Tracer,
		readiness:      opts.Readiness,
		pool:           opts.Pool,
		usage:          opts.Usage,
		defaultQuality: opts.DefaultQuality,
		cacheControl:   opts.CacheControl,
		metrics:        m,
		router:         chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(
		middleware.RealIP,
		hlog.NewHandler(s.logger),
		hlog.RequestIDHandler("request_id", "X-Request-Id"),
		hlog.RemoteAddrHandler("ip"),
		hlog.AccessHandler(accessLog),
		middleware.Recoverer,
		s.withTracing,
		s.metrics.withHTTPMetrics,
	)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())
	r.Get("/usage", s.handleUsage)
	r.With(s.withRateLimit).Get("/*", s.handleImage)
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultReadyTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.readiness))
	ready := true
	for name, pinger := range s.readiness {
		if err := pinger.Ping(ctx); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("check", name).Msg("readiness check failed")
			checks[name] = "unavailable"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	body := map[string]any{"status": state, "checks": checks}
	if s.pool != nil {
		body["workers"] = map[string]any{
			"concurrency": s.pool.Concurrency(),
			"running":     s.pool.Running(),
			"waiting":     s.pool.Waiting(),
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	params, err := parseTransformQuery(r.URL.Query(), s.defaultQuality)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := pipeline.Request{
		Key:    strings.TrimPrefix(r.URL.EscapedPath(), "/"),
		Params: params,
	}
	key, err := s.processor.Validate(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := computeETag(key, params)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", s.cacheControl)
		s.metrics.notModified.Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	res, err := s.processor.Process(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("Cache-Control", s.cacheControl)
	h.Set("ETag", etag)
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("response write failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
