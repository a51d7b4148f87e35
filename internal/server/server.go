package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apihttp "github.com/GriffinCanCode/entityfs/internal/api/http"
	"github.com/GriffinCanCode/entityfs/internal/api/middleware"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/config"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/logging"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/entityfs/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/entityfs/internal/service/persist"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	registry *prometheus.Registry
	tracer   *tracing.Tracer
}

// Option customises a Server.
type Option func(*Server)

// WithLogger replaces the logger built from the logging configuration.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new server instance serving the storage root of cfg from fsys.
func NewServer(cfg *config.Config, fsys afero.Fs, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{config: cfg, registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	root, err := filepath.Abs(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("storage root: %w", err)
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	s.logger.Info("Initializing entityfs server",
		zap.String("port", cfg.Server.Port),
		zap.String("storage", root),
		zap.Bool("snapshot", cfg.Mount.Snapshot),
	)

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = monitoring.NewMetrics(s.registry)

	persister := persist.New(fsys)
	persister.ChunkSize = cfg.Persist.ChunkSize
	persister.FlushThreshold = cfg.Persist.FlushThreshold
	persister.Logger = s.logger.Named("persist")
	persister.Metrics = s.metrics
	if bps := cfg.Persist.BytesPerSecond; bps > 0 {
		persister.Limiter = rate.NewLimiter(rate.Limit(bps), bps)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	s.tracer = tracing.New(s.logger)
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		limit := middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}
		if cfg.RateLimit.Global {
			router.Use(middleware.GlobalRateLimit(limit))
		} else {
			router.Use(middleware.RateLimit(limit))
		}
	}

	handlers := apihttp.NewHandlers(apihttp.Options{
		Fs:        fsys,
		Root:      root,
		Snapshot:  cfg.Mount.Snapshot,
		Persister: persister,
		Metrics:   s.metrics,
		Logger:    s.logger.Named("api"),
	})
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.router = router
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server and blocks until it stops. It returns nil after Shutdown.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Shutdown incomplete", zap.Error(err))
	}

	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()
	return err
}
