// Package main is the entrypoint for the TaskTracker API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tasktracker/tasktracker/internal/auth"
	"github.com/tasktracker/tasktracker/internal/cache"
	"github.com/tasktracker/tasktracker/internal/config"
	"github.com/tasktracker/tasktracker/internal/handler"
	"github.com/tasktracker/tasktracker/internal/metrics"
	"github.com/tasktracker/tasktracker/internal/middleware"
	"github.com/tasktracker/tasktracker/internal/repository"
	"github.com/tasktracker/tasktracker/internal/server"
	"github.com/tasktracker/tasktracker/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration. AUTH_SECRET is required; the process refuses
	// to start without a signing secret.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Initialize services
	recorder := metrics.NewInMemory()
	codec := auth.NewTokenCodec([]byte(cfg.AuthSecret), cfg.AccessTokenTTL)
	authService := service.NewAuthService(repo, codec, cacheClient, logger, recorder)
	taskService := service.NewTaskService(repo, recorder)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	authHandler := handler.NewAuthHandler(authService, logger)
	taskHandler := handler.NewTaskHandler(taskService, logger)
	categoryHandler := handler.NewCategoryHandler(logger, repo)
	userHandler := handler.NewUserHandler(logger, repo, cacheClient)
	metricsHandler := handler.NewMetricsHandler(recorder)

	// Setup router
	r := setupRouter(routerDeps{
		handler:         h,
		healthHandler:   healthHandler,
		authHandler:     authHandler,
		taskHandler:     taskHandler,
		categoryHandler: categoryHandler,
		userHandler:     userHandler,
		metricsHandler:  metricsHandler,
		authService:     authService,
		cache:           cacheClient,
		metrics:         recorder,
		cfg:             cfg,
		logger:          logger,
	})

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Dependencies close after the HTTP server drains, newest first.
	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(ctx context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"token_ttl", cfg.AccessTokenTTL.String(),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter needs.
type routerDeps struct {
	handler         *handler.Handler
	healthHandler   *handler.HealthHandler
	authHandler     *handler.AuthHandler
	taskHandler     *handler.TaskHandler
	categoryHandler *handler.CategoryHandler
	userHandler     *handler.UserHandler
	metricsHandler  *handler.MetricsHandler
	authService     *service.AuthService
	cache           *cache.Cache
	metrics         metrics.Recorder
	cfg             *config.Config
	logger          *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   deps.cfg.GetCORSAllowedOrigins(),
		AllowCredentials: true,
	}))
	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))
	r.Use(chimiddleware.Timeout(30 * time.Second))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.healthHandler.Healthz)
	r.Get("/readyz", deps.healthHandler.Readyz)

	// Root info endpoint
	r.Get("/", deps.handler.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:   deps.logger,
		Resolver: deps.authService,
		Metrics:  deps.metrics,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      deps.logger,
		Cache:       deps.cache,
		APIEnabled:  deps.cfg.RateLimitAPIEnabled,
		AuthEnabled: deps.cfg.RateLimitAuthEnabled,
		AuthRPS:     deps.cfg.RateLimitAuthRPS,
		AuthBurst:   deps.cfg.RateLimitAuthBurst,
	}

	// Auth endpoints. Register and login are public but IP rate limited
	// to slow credential stuffing; /auth/me requires a valid token.
	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimitAuth(rateLimitCfg)).Post("/register", deps.authHandler.Register)
		r.With(middleware.RateLimitAuth(rateLimitCfg)).Post("/login", deps.authHandler.Login)
		r.With(middleware.Auth(authCfg)).Get("/me", deps.authHandler.Me)
	})

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", deps.taskHandler.List)
			r.Post("/", deps.taskHandler.Create)
			r.Get("/{id}", deps.taskHandler.Get)
			r.Put("/{id}", deps.taskHandler.Update)
			r.Delete("/{id}", deps.taskHandler.Delete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", deps.categoryHandler.List)
			r.Post("/", deps.categoryHandler.Create)
			r.Get("/{id}", deps.categoryHandler.Get)
			r.Put("/{id}", deps.categoryHandler.Update)
			r.Delete("/{id}", deps.categoryHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", deps.userHandler.List)
			r.Get("/{id}", deps.userHandler.Get)
			r.Put("/{id}", deps.userHandler.Update)
			r.Delete("/{id}", deps.userHandler.Delete)
		})

		r.Get("/metrics", deps.metricsHandler.Metrics)
	})

	// 404 and 405 handlers
	r.NotFound(deps.handler.NotFound)
	r.MethodNotAllowed(deps.handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=\S+`)

// redactURL strips credentials from a connection URL so it can be logged.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if name := parsed.User.Username(); name != "" {
			parsed.User = url.User(name)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

// sanitizeError replaces any occurrence of the given secrets inside an
// error message with their redacted forms before logging.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, redactURL(secret))
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
