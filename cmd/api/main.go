// Package main is the entrypoint for the PressKit API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/presskit/presskit/internal/analytics"
	"github.com/presskit/presskit/internal/auth"
	"github.com/presskit/presskit/internal/cache"
	"github.com/presskit/presskit/internal/config"
	"github.com/presskit/presskit/internal/handler"
	"github.com/presskit/presskit/internal/mail"
	"github.com/presskit/presskit/internal/metrics"
	"github.com/presskit/presskit/internal/middleware"
	"github.com/presskit/presskit/internal/model"
	"github.com/presskit/presskit/internal/payment"
	"github.com/presskit/presskit/internal/repository"
	"github.com/presskit/presskit/internal/response"
	"github.com/presskit/presskit/internal/server"
	"github.com/presskit/presskit/internal/service"
	"github.com/presskit/presskit/internal/storage"
	"github.com/presskit/presskit/internal/upload"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.ConnectOptions{
		Attempts: cfg.DBConnectAttempts,
		Logger:   logger,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{Logger: logger})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Asset storage
	store, err := storage.New(ctx, storage.Config{
		Driver:          storage.Driver(cfg.StorageDriver),
		S3Bucket:        cfg.S3Bucket,
		S3Region:        cfg.S3Region,
		S3Endpoint:      cfg.S3Endpoint,
		S3PublicBaseURL: cfg.S3PublicBaseURL,
		AWSAccessKey:    cfg.AWSAccessKeyID,
		AWSSecretKey:    cfg.AWSSecretAccessKey,
		LocalDir:        cfg.LocalStorageDir,
		LocalBaseURL:    cfg.LocalStorageBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize storage", "error", err, "driver", cfg.StorageDriver)
		os.Exit(1)
	}

	// Outbound email
	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		smtp, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Secure:   cfg.SMTPSecure,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
		})
		if err != nil {
			logger.Error("failed to initialize smtp", "error", err)
			os.Exit(1)
		}
		sender = smtp
	} else {
		logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
	}
	mailer, err := mail.NewMailer(sender, cfg.ClientURL, logger)
	if err != nil {
		logger.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}

	// Payments
	var payments payment.Processor = payment.Disabled{}
	if cfg.StripeSecretKey != "" {
		payments = payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
		}, logger)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, billing routes will answer 503")
	}

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		AccessTTL:     cfg.JWTExpiresIn,
		RefreshSecret: cfg.JWTRefreshSecret,
		RefreshTTL:    cfg.JWTRefreshExpiresIn,
	})
	limits := upload.Limits{MaxFileSize: cfg.UploadMaxFileSize, MaxFiles: cfg.UploadMaxFiles}

	var epkCache service.EPKCache
	if cfg.EnableCache {
		epkCache = cacheClient
	}

	var events service.EventPublisher
	if cfg.EnableAnalytics {
		events = analytics.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:     repo,
		Tokens:    tokens,
		Blacklist: cacheClient,
		Mailer:    mailer,
		Payments:  payments,
		Logger:    logger,
	})
	epkService := service.NewEPKService(service.EPKDeps{
		EPKs:      repo,
		Analytics: repo,
		Cache:     epkCache,
		Counters:  cacheClient,
		Events:    events,
		Storage:   store,
		Limits:    limits,
		Metrics:   metricsRecorder,
		Logger:    logger,
	})
	contactService := service.NewContactService(service.ContactDeps{
		Inquiries: repo,
		EPKs:      repo,
		Users:     repo,
		Mailer:    mailer,
		Tracker:   epkService,
		Metrics:   metricsRecorder,
		Logger:    logger,
	})
	billingService := service.NewBillingService(service.BillingDeps{
		Users:    repo,
		Events:   repo,
		Payments: payments,
		Mailer:   mailer,
		Prices:   cfg.PlanPrices(),
		Metrics:  metricsRecorder,
		Logger:   logger,
	})

	// Initialize handlers
	errs := response.ErrorWriter{Logger: logger, Production: cfg.IsProduction()}
	handlers := handler.Handlers{
		Root:    handler.New(errs),
		Health:  handler.NewHealthHandler(repo, cacheClient),
		Metrics: handler.NewMetricsHandler(metricsRecorder),
		Auth:    handler.NewAuthHandler(authService, errs, logger),
		EPKs: handler.NewResource[model.EPK](repo.EPKs(), errs, handler.ResourceConfig[model.EPK]{
			SetID: func(e *model.EPK, id string) { e.ID = id },
			Scope: handler.OwnerScope,
		}),
		EPK:     handler.NewEPKHandler(epkService, limits, errs, logger),
		Contact: handler.NewContactHandler(contactService, errs, logger),
		Billing: handler.NewBillingHandler(billingService, errs, logger),
	}

	// Setup router
	r := handler.NewRouter(handler.RouterConfig{
		Logger:      logger,
		Errors:      errs,
		APIPrefix:   cfg.APIPrefix,
		Security:    middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:        middleware.DefaultCORSConfig(cfg.GetCORSAllowedOrigins()...),
		MaxBodySize: cfg.MaxRequestBodySize,
		RateLimit: middleware.RateLimitConfig{
			Logger:  logger,
			Limiter: cacheClient,
			Errors:  errs,
			Enabled: cfg.RateLimitEnabled,
		},
		APILimit:      middleware.APIRateLimit(cfg.RateLimitMax, cfg.RateLimitWindow),
		AuthLimit:     middleware.AuthRateLimit(cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow),
		ContactLimit:  middleware.ContactRateLimit(cfg.ContactRateLimitMax, cfg.ContactRateLimitWindow),
		Authenticator: authService,
	}, handlers)

	// Local storage serves its own files in development.
	if local, ok := store.(*storage.LocalStorage); ok {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Root()))))
	}

	// Create and run server
	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Analytics stream worker runs in-process unless disabled.
	if cfg.EnableAnalytics && cfg.AnalyticsWorkerEnabled {
		worker := analytics.NewWorker(cacheClient.Client(), repo, logger, analytics.NewConsumerID(), metricsRecorder)
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("analytics worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("analytics-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"api_prefix", cfg.APIPrefix,
		"env", cfg.AppEnv,
		"storage", cfg.StorageDriver,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
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
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
