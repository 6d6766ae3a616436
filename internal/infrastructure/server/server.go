package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/divpanel/internal/api/http"
	"github.com/GriffinCanCode/divpanel/internal/api/middleware"
	"github.com/GriffinCanCode/divpanel/internal/api/ws"
	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/domain/provisioning"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/config"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/logging"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/persistence"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/divpanel/internal/providers/http/client"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	http    *http.Server
	manager *panel.Manager
	pool    *sandbox.Pool
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
	logger  *logging.Logger
	config  *config.Config
}

// Options overrides process-wide defaults, mostly for tests
type Options struct {
	// Registerer receives the metrics. Nil uses the default registry.
	Registerer prometheus.Registerer
	// Gatherer serves /metrics. Nil uses the default gatherer.
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	return NewServerWith(cfg, Options{})
}

// NewServerWith creates a server with explicit options
func NewServerWith(cfg *config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing divpanel server",
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.Int("sandbox_pool", cfg.Sandbox.PoolSize),
	)

	// Initialize metrics first (needed by other components)
	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	metrics := monitoring.NewMetricsWith(registerer)

	tracer := tracing.New("divpanel", logger.Logger)

	sandboxCfg := sandbox.DefaultConfig()
	sandboxCfg.Timeout = cfg.Sandbox.Timeout
	sandboxCfg.EnableConsole = cfg.Sandbox.Console
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Sandbox.PoolSize, sandbox.MaxRuntimes(cfg.Sandbox.MaxRuntimes))
	if err != nil {
		tracer.Close()
		metrics.Stop()
		return nil, fmt.Errorf("failed to create sandbox pool: %w", err)
	}

	clientCfg := client.DefaultConfig()
	clientCfg.Timeout = cfg.Loader.FetchTimeout
	clientCfg.RateLimit = cfg.Loader.RateLimit
	clientCfg.OnBreakerChange = func(origin string, from, to resilience.State) {
		metrics.RecordBreakerTransition(to.String())
		logger.Warn("Fetch origin circuit changed",
			zap.String("origin", origin),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}
	fetcher := client.NewClient(clientCfg)

	store, err := persistence.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		_ = pool.Close()
		tracer.Close()
		metrics.Stop()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	panelCfg := panel.DefaultConfig()
	panelCfg.EvaluateForResult = cfg.Loader.EvaluateForResult
	panelCfg.Sanitize = cfg.Classifier.Sanitize
	manager := panel.NewManager(panelCfg, pool, fetcher, store, logger.Logger).WithMetrics(metrics)

	ctx := context.Background()
	if _, err := manager.Restore(ctx); err != nil {
		logger.Warn("Failed to restore panels", zap.Error(err))
	}
	if _, err := provisioning.NewSeeder(manager, cfg.Provisioning.Dir, logger.Logger).Seed(ctx); err != nil {
		logger.Warn("Failed to provision panels", zap.Error(err))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(middleware.CORS(cfg.CORS))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(manager, pool, metrics, logger.Logger).WithOrigins(fetcher.Origins)
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager, metrics, logger.Logger)
	router.GET("/panels/:id/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	level := gin.WrapH(logger.LevelHandler())
	router.GET("/debug/log/level", level)
	router.PUT("/debug/log/level", level)

	logger.Info("Server initialized successfully", zap.Int("panels", manager.Count()))

	return &Server{
		router:  router,
		manager: manager,
		pool:    pool,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler { return s.router }

// Manager returns the panel manager
func (s *Server) Manager() *panel.Manager { return s.manager }

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server and every panel session
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("panel shutdown: %w", err))
	}
	if err := s.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("sandbox pool: %w", err))
	}
	s.tracer.Close()
	s.metrics.Stop()

	// Sync logger before exit
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
