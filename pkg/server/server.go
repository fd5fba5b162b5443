// Package server exposes the HTTP surface: chat and vision generation,
// remote command execution, stub search, health and metrics.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/opsbridge-ai/opsbridge/pkg/audit"
	cachepkg "github.com/opsbridge-ai/opsbridge/pkg/cache/sqlite"
	"github.com/opsbridge-ai/opsbridge/pkg/config"
	"github.com/opsbridge-ai/opsbridge/pkg/inference"
	"github.com/opsbridge-ai/opsbridge/pkg/metrics"
	"github.com/opsbridge-ai/opsbridge/pkg/search"
	"github.com/opsbridge-ai/opsbridge/pkg/sshexec"
	"github.com/opsbridge-ai/opsbridge/pkg/store"
	"github.com/opsbridge-ai/opsbridge/pkg/usage"
)

// Deps bundles the injected collaborators. Cache, Audit and Usage are
// optional; the corresponding behavior is skipped when nil.
type Deps struct {
	Store     *store.Store
	Inference *inference.Client
	Runner    *sshexec.Runner
	Search    *search.Provider
	Cache     *cachepkg.Cache
	Audit     *audit.Logger
	Usage     usage.Tracker
	Registry  *prometheus.Registry
}

// Server is the opsbridge HTTP server.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	llm     *inference.Client
	runner  *sshexec.Runner
	search  *search.Provider
	cache   *cachepkg.Cache
	audit   *audit.Logger
	usage   usage.Tracker
	metrics *metrics.Metrics
	handler http.Handler
}

// New creates a Server wired with all dependencies.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   deps.Store,
		llm:     deps.Inference,
		runner:  deps.Runner,
		search:  deps.Search,
		cache:   deps.Cache,
		audit:   deps.Audit,
		usage:   deps.Usage,
		metrics: metrics.New(reg),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.countRequests)
		r.Post("/chat", s.handleChat)
		r.Get("/search", s.handleSearch)
		r.Post("/ssh", s.handleSSH)
		r.Post("/vision", s.handleVision)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("opsbridge listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// SweepLoop purges expired uploads every interval until ctx is done.
// The purge subcommand covers externally scheduled one-shot sweeps; this
// loop keeps a long-running server from accumulating abandoned uploads.
func (s *Server) SweepLoop(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(maxAge)
			if err != nil {
				s.logger.Warn("background sweep failed", zap.Error(err))
				continue
			}
			s.metrics.ArtifactsSwept.Add(float64(removed))
		}
	}
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.metrics.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(ww.Status())).Inc()
	})
}
