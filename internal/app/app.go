package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentidp/agentwatch/internal/backend"
	"github.com/agentidp/agentwatch/internal/config"
	"github.com/agentidp/agentwatch/internal/engine"
	"github.com/agentidp/agentwatch/internal/handlers"
	"github.com/agentidp/agentwatch/internal/logger"
	"github.com/agentidp/agentwatch/internal/metrics"
	"github.com/agentidp/agentwatch/internal/middleware"
	"github.com/agentidp/agentwatch/internal/mode"
	"github.com/agentidp/agentwatch/internal/snapshot"
	"github.com/agentidp/agentwatch/internal/stream"
	"github.com/agentidp/agentwatch/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Builder wires Agentwatch application dependencies.
type Builder struct {
	cfg            *config.Config
	version        string
	logger         logger.Logger
	fiberApp       *fiber.App
	tracker        *mode.Tracker
	snap           *snapshot.Store
	hub            *stream.Hub
	syncEngine     *engine.Engine
	tracerProvider *telemetry.TracerProvider
	closers        []func()
}

// NewBuilder creates a new application builder.
func NewBuilder(cfg *config.Config, version string) *Builder {
	return &Builder{cfg: cfg, version: version}
}

// Build assembles the Agentwatch application components.
func (b *Builder) Build(ctx context.Context) (*App, error) {
	b.initLogger()
	b.recordStartupMetrics()
	b.initFiber()
	b.initTracing(ctx)
	b.initMiddleware()
	b.initSync()
	b.initHandlers()

	return &App{
		cfg:        b.cfg,
		version:    b.version,
		logger:     b.logger,
		fiberApp:   b.fiberApp,
		syncEngine: b.syncEngine,
		closers:    b.closers,
	}, nil
}

func (b *Builder) initLogger() {
	b.logger = logger.NewFromConfig(b.cfg.Log.Level, b.cfg.Log.Format)
	logger.SetDefault(b.logger)
}

func (b *Builder) recordStartupMetrics() {
	metrics.BuildInfo.WithLabelValues(b.version, runtime.Version()).Set(1)

	b.logger.Info("Starting Agentwatch",
		logger.String("version", b.version),
		logger.String("address", b.cfg.Address()),
		logger.String("log_level", b.cfg.Log.Level),
		logger.String("log_format", b.cfg.Log.Format),
		logger.Bool("tracing_enabled", b.cfg.Tracing.Enabled),
	)
}

func (b *Builder) initFiber() {
	b.fiberApp = fiber.New(fiber.Config{
		// Uncaught handler errors come back as the same JSON envelope the
		// explicit error helpers produce.
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return middleware.StatusError(c, fiberErr.Code, fiberErr.Message)
			}
			return middleware.InternalServerError(c, err.Error())
		},
	})
}

func (b *Builder) initTracing(ctx context.Context) {
	tracingCfg := telemetry.TracingConfig{
		Enabled:        b.cfg.Tracing.Enabled,
		Endpoint:       b.cfg.Tracing.Endpoint,
		ServiceName:    b.cfg.Tracing.ServiceName,
		ServiceVersion: b.cfg.Tracing.ServiceVersion,
		Environment:    b.cfg.Tracing.Environment,
		SamplingRatio:  b.cfg.Tracing.SamplingRatio,
		InsecureConn:   b.cfg.Tracing.InsecureConn,
	}

	provider, err := telemetry.InitTracing(ctx, tracingCfg)
	if err != nil {
		b.logger.Error("Failed to initialize tracing", logger.Error(err))
		return
	}

	if b.cfg.Tracing.Enabled {
		b.logger.Info("OpenTelemetry tracing initialized",
			logger.String("endpoint", b.cfg.Tracing.Endpoint),
			logger.String("service_name", b.cfg.Tracing.ServiceName),
		)

		b.addCloser(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				b.logger.Error("Failed to shutdown tracer provider", logger.Error(err))
			}
		})
	}

	b.tracerProvider = provider
}

func (b *Builder) initMiddleware() {
	b.fiberApp.Use(middleware.RequestLogging(b.logger))
	b.fiberApp.Use(middleware.MetricsMiddleware())

	if b.cfg.Tracing.Enabled {
		b.fiberApp.Use(middleware.TracingMiddleware(b.cfg.Tracing.ServiceName))
	}
}

func (b *Builder) initSync() {
	b.tracker = mode.NewTracker(b.logger)
	b.snap = snapshot.New()
	b.hub = stream.NewHub(b.cfg.Backend.StreamBuffer, b.logger)

	var client backend.Client
	if mode.CredentialsPresent(b.cfg.Backend.URL, b.cfg.Backend.Key) {
		client = backend.NewHTTPClient(b.cfg.Backend.URL, b.cfg.Backend.Key, b.logger)
	}

	b.syncEngine = engine.New(b.cfg.Backend, client, b.tracker, b.snap, b.hub, b.logger)
}

func (b *Builder) initHandlers() {
	telemetryHandler := handlers.NewTelemetryHandler(b.snap, b.syncEngine)
	healthHandler := handlers.NewHealthHandler(b.snap, b.tracker, b.version)
	streamHandler := handlers.NewStreamHandler(b.hub, b.logger)

	b.fiberApp.Get("/api/token-requests", telemetryHandler.TokenRequests)
	b.fiberApp.Get("/api/signin-attempts", telemetryHandler.SigninAttempts)
	b.fiberApp.Get("/api/agents", telemetryHandler.Agents)
	b.fiberApp.Get("/api/agents/:name", telemetryHandler.AgentByName)
	b.fiberApp.Get("/api/usage", telemetryHandler.Usage)
	b.fiberApp.Get("/api/traffic", telemetryHandler.Traffic)
	b.fiberApp.Post("/api/refresh", telemetryHandler.Refresh)

	b.fiberApp.Get("/api/stream", streamHandler.SSE)
	b.fiberApp.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	b.fiberApp.Get("/ws", websocket.New(streamHandler.WebSocket))

	b.fiberApp.Get("/health", healthHandler.Check)
	b.fiberApp.Get("/health/live", healthHandler.Liveness)
	b.fiberApp.Get("/health/ready", healthHandler.Readiness)

	b.fiberApp.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Unmatched routes get the JSON envelope instead of fiber's plain 404.
	b.fiberApp.Use(func(c *fiber.Ctx) error {
		return middleware.NotFound(c, "route not found")
	})
}

func (b *Builder) addCloser(closer func()) {
	b.closers = append(b.closers, closer)
}

// App represents a configured Agentwatch application ready to run.
type App struct {
	cfg        *config.Config
	version    string
	logger     logger.Logger
	fiberApp   *fiber.App
	syncEngine *engine.Engine
	closers    []func()
}

// Run starts the sync engine and HTTP server, then handles graceful
// shutdown on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.syncEngine.Start(ctx)

	a.logger.Info("Server starting",
		logger.String("address", a.cfg.Address()),
		logger.String("mode", string(a.syncEngine.Mode())))

	serverErr := make(chan error, 1)

	go func() {
		serverErr <- a.fiberApp.Listen(a.cfg.Address())
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Failed to start server", logger.Error(err))
			a.syncEngine.Stop()
			a.runClosers()
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")

	a.syncEngine.Stop()

	if err := a.fiberApp.Shutdown(); err != nil {
		a.logger.Error("Server forced to shutdown", logger.Error(err))
	}

	a.runClosers()

	if err := <-serverErr; err != nil {
		return err
	}

	a.logger.Info("Server exited gracefully")
	return nil
}

func (a *App) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
