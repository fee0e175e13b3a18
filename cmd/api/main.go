// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/templates/doc-analyzer/internal/access"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/admin"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/analysis"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/auth"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/config"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/core"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/document"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/extract"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/health"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/llm"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/middleware"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/pacing"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/pipeline"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/rule"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/server"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/subscription"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/usage/pricing"
	"github.com/carterperez-dev/templates/doc-analyzer/internal/user"
)

const (
	drainDelay = 5 * time.Second

	// multipart framing allowance on top of the raw upload bytes
	formOverhead = 1 << 20
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var (
		telemetry *core.Telemetry
		tracer    trace.Tracer
	)
	tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
	} else {
		telemetry = tel
		tracer = tel.Tracer
		if cfg.Otel.Enabled {
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	redis.Instrument(tracer)
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	verifier, err := auth.NewVerifier(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT verifier initialized",
		"algorithm", "ES256",
		"key_id", verifier.KeyID(),
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	subscriptionRepo := subscription.NewRepository(db.DB)
	usageRepo := usage.NewRepository(db.DB)
	documentRepo := document.NewRepository(db.DB)
	ruleRepo := rule.NewRepository(db.DB)

	accountant := usage.NewAccountant(
		usageRepo,
		pricing.NewModelRates(cfg.LLM.InputPricePer1K, cfg.LLM.OutputPricePer1K),
		logger,
	)
	usageHandler := usage.NewHandler(accountant)

	accessController := access.NewController(
		subscriptionRepo,
		usageRepo,
		documentRepo,
		logger,
	)

	pacer, err := pacing.New(cfg.Analysis, redis.Client, logger)
	if err != nil {
		return err
	}

	orchestrator := analysis.NewOrchestrator(
		llm.NewOpenAIProvider(cfg.LLM),
		pacer,
		tracer,
		analysis.Options{
			Temperature:     cfg.LLM.Temperature,
			MaxTokens:       cfg.LLM.MaxTokens,
			RuleConcurrency: cfg.Analysis.RuleConcurrency,
		},
		logger,
	)
	logger.Info("analysis orchestrator initialized",
		"model", cfg.LLM.Model,
		"pacing", cfg.Analysis.Pacing,
		"call_interval", cfg.Analysis.CallInterval,
		"rule_concurrency", cfg.Analysis.RuleConcurrency,
	)

	pipelineSvc := pipeline.NewService(pipeline.Deps{
		Access:    accessController,
		Analyzer:  orchestrator,
		Meter:     accountant,
		Documents: documentRepo,
		Rules:     ruleRepo,
		Text: extract.NewCache(
			redis.Client,
			extract.NewRegistry(),
			cfg.Analysis.ExtractCacheTTL,
			logger,
		),
		Store:  pipeline.NewTxStore(db.DB),
		Tracer: tracer,
		Logger: logger,
	}, pipeline.Options{
		MaxChunkSize: cfg.Analysis.MaxChunkSize,
		MaxFiles:     cfg.Analysis.MaxFiles,
		MaxFileBytes: cfg.Analysis.MaxFileBytes,
	})
	maxBody := int64(cfg.Analysis.MaxFiles)*cfg.Analysis.MaxFileBytes + formOverhead
	pipelineHandler := pipeline.NewHandler(pipelineSvc, accessController, maxBody)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:       db.Stats,
		RedisStats:    redis.PoolStats,
		DBPing:        db.Ping,
		RedisPing:     redis.Ping,
		Ledger:        accountant,
		Subscriptions: subscriptionRepo,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
			Logger:   logger,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", verifier.JWKSHandler())

	authenticator := middleware.Authenticator(verifier)
	adminOnly := middleware.RequireAdmin

	perUser := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit: middleware.PerMinute(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
		),
		KeyFunc: middleware.KeyByUser,
		CostFunc: middleware.CostByRoute(map[string]int{
			"POST /v1/analyzer/analyze":                   cfg.RateLimit.AnalyzeCost,
			"POST /v1/analyzer/documents/{id}/edit-rules": cfg.RateLimit.AnalyzeCost,
		}),
		FailOpen: true,
		Logger:   logger,
	})
	analyzerAuth := func(next http.Handler) http.Handler {
		return authenticator(perUser.Handler(next))
	}

	router.Route("/v1", func(r chi.Router) {
		userHandler.RegisterRoutes(r, authenticator)
		usageHandler.RegisterRoutes(r, authenticator)
		pipelineHandler.RegisterRoutes(r, analyzerAuth)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	healthHandler.SetReady(true)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
