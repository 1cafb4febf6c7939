// Package dashboard serves the multi-page dashboard: each page reads the
// prepared survey table or pre-rendered chart artifacts and renders them
// into an embedded HTML layout. Only the scenario simulator runs a model.
package dashboard

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/pkg/errors"
	"github.com/banerjixplores/climacrop/pkg/log"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var layout = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Config locates the dashboard's inputs.
type Config struct {
	Addr      string
	DataPath  string
	ImagesDir string
	ModelsDir string
}

// Option configures a Server.
type Option func(*Server)

// WithCache shares a dataset cache with the server.
func WithCache(c *dataset.Cache) Option {
	return func(s *Server) { s.cache = c }
}

// WithMetrics records page and artifact metrics into m.
func WithMetrics(m *pmetrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg      Config
	cache    *dataset.Cache
	metrics  *pmetrics.Collector
	gatherer prometheus.Gatherer
	router   *mux.Router
	http     *http.Server
}

// New builds the router for cfg. Without WithCache the server keeps a
// small private cache.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = dataset.NewCache(4, 30*time.Minute, dataset.WithMetrics(s.metrics))
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	for _, p := range pages {
		r.HandleFunc(p.Path, s.page(p)).Methods(http.MethodGet).Name(p.Name)
	}
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet).Name("healthz")

	metricsHandler := promhttp.Handler()
	if s.gatherer != nil {
		metricsHandler = promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
	}
	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	static, _ := fs.Sub(staticFS, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Use(s.observe)
	return r
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	logger := log.GetLoggerWithName("dashboard")
	errc := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe records render metrics for named page routes.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		if route == nil || route.GetName() == "" || route.GetName() == "healthz" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObservePage(route.GetName(), rec.status, start)
		log.GetLoggerWithName("dashboard").Debug("Page rendered",
			"page", route.GetName(),
			"status", rec.status,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}
