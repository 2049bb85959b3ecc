package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timberline-crm/internal/auth"
	"timberline-crm/internal/config"
	"timberline-crm/internal/database"
	"timberline-crm/internal/http/handler"
	"timberline-crm/internal/observability/logger"
	"timberline-crm/internal/ratelimit"
	"timberline-crm/internal/repo"
	"timberline-crm/internal/service"
	"timberline-crm/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CRM server",
	Long:  `Start the Timberline CRM HTTP server with all middlewares and observability`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.OTELServiceName, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info(ctx, "starting timberline crm",
		zap.String("version", "1.0.0"),
		zap.String("service", cfg.OTELServiceName),
	)

	log.Info(ctx, "running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info(ctx, "migrations completed successfully")

	// Telemetry is strictly opt-in; the Prometheus endpoint is always on.
	var tracerProvider *sdktrace.TracerProvider
	var meterProvider *sdkmetric.MeterProvider
	var metrics *telemetry.Metrics

	if cfg.TelemetryEnabled() {
		log.Info(ctx, "initializing telemetry", zap.String("endpoint", cfg.OTELExporterEndpoint))

		tp, err := telemetry.InitTracer(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint, cfg.OTELSamplingRatio)
		if err != nil {
			log.Warn(ctx, "failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			tracerProvider = tp
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown tracer provider", zap.Error(err))
				}
			}()
		}

		mp, m, err := telemetry.InitMetrics(ctx, cfg.OTELServiceName, cfg.OTELExporterEndpoint)
		if err != nil {
			log.Warn(ctx, "failed to initialize metrics, continuing without metrics", zap.Error(err))
		} else {
			meterProvider = mp
			metrics = m
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := meterProvider.Shutdown(shutdownCtx); err != nil {
					log.Error(shutdownCtx, "failed to shutdown meter provider", zap.Error(err))
				}
			}()
		}

		log.Info(ctx, "telemetry initialized", zap.Bool("tracing", tracerProvider != nil), zap.Bool("metrics", metrics != nil))
	} else {
		log.Info(ctx, "telemetry disabled (opt-in only or missing endpoint)")
	}

	log.Info(ctx, "connecting to database")
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Info(ctx, "database connected")

	// Redis is optional: without it the in-process limiter covers a
	// single-instance deployment.
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		log.Info(ctx, "connecting to redis")
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info(ctx, "redis connected")

		var rejections metric.Int64Counter
		if metrics != nil {
			rejections = metrics.RateLimitRejections
		}
		limiter = ratelimit.NewRedisRateLimiter(redisClient, rejections)
	} else {
		log.Info(ctx, "REDIS_URL not set, using in-process rate limiter")
		limiter = ratelimit.NewMemoryRateLimiter()
	}

	secret, err := cfg.SessionSecretBytes()
	if err != nil {
		return err
	}
	sessions := auth.NewSessionManager(
		secret,
		cfg.SessionCookieName,
		time.Duration(cfg.SessionTTLHours)*time.Hour,
		cfg.AppEnv == "production",
	)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	store := repo.NewStore(pool)

	settingsService := service.NewSettingsService(store, log)
	leadService := service.NewLeadService(store, settingsService, log)
	clientService := service.NewClientService(store, log)
	dealService := service.NewDealService(store, settingsService, log)
	activityService := service.NewActivityService(store, log)
	searchService := service.NewSearchService(store, log)
	assetService := service.NewAssetService(store.Assets(), cfg.UploadDir, cfg.MaxUploadBytes, log)

	// Seed the vocabulary so the pipeline works on a fresh database.
	if err := settingsService.EnsureDefaults(ctx); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}

	r := buildRouter(RouterDeps{
		Cfg:      cfg,
		Log:      log,
		Sessions: sessions,
		Limiter:  limiter,
		Metrics:  metrics,
		Pool:     pool,

		SessionHandler:  handler.NewSessionHandler(sessions, cfg.AdminEmail, cfg.AdminPasswordHash),
		IntakeHandler:   handler.NewIntakeHandler(leadService),
		LeadHandler:     handler.NewLeadHandler(leadService),
		ClientHandler:   handler.NewClientHandler(clientService),
		DealHandler:     handler.NewDealHandler(dealService),
		ActivityHandler: handler.NewActivityHandler(activityService),
		SettingsHandler: handler.NewSettingsHandler(settingsService),
		SearchHandler:   handler.NewSearchHandler(searchService),
		UploadHandler:   handler.NewUploadHandler(assetService, cfg.MaxUploadBytes),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info(ctx, "starting http server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info(ctx, "shutdown signal received, starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown error", zap.Error(err))
	}

	log.Info(shutdownCtx, "shutdown complete")
	return nil
}
