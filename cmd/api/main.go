package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/mediaproc/internal/api"
	"github.com/dunamismax/mediaproc/internal/config"
	"github.com/dunamismax/mediaproc/internal/pipeline"
	"github.com/dunamismax/mediaproc/internal/ratelimit"
	"github.com/dunamismax/mediaproc/internal/storage"
	"github.com/dunamismax/mediaproc/internal/store"
	"github.com/dunamismax/mediaproc/internal/telemetry"
	"github.com/dunamismax/mediaproc/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

const serviceName = "mediaproc-api"

type fetcher interface {
	pipeline.Fetcher
	api.Pinger
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "mediaproc-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := telemetry.NewLogger(telemetry.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format}, serviceName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Telemetry.ServiceName,
		Exporter:     cfg.Telemetry.TraceExporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	if err := pipeline.Startup(); err != nil {
		return fmt.Errorf("start image backend: %w", err)
	}
	defer pipeline.Shutdown()

	registry := api.NewRegistry()
	readiness := map[string]api.Pinger{}

	source, err := newFetcher(cfg.Storage)
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}
	readiness["storage"] = source

	usage, closeUsage, err := newUsageStore(ctx, cfg.Usage, logger)
	if err != nil {
		return fmt.Errorf("configure usage store: %w", err)
	}
	defer closeUsage()
	if p, ok := usage.(api.Pinger); ok {
		readiness["usage"] = p
	}
	reporter, _ := usage.(store.UsageReporter)

	pool, err := worker.NewPool(cfg.Worker.Concurrency, registry)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Stop()

	limits := cfg.Limits.Domain()
	processor, err := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Fetcher:     source,
		Transformer: pipeline.NewTransformer(limits),
		Runner:      pool,
		Usage:       usage,
		Timeout:     cfg.Worker.TransformTimeout,
		Registerer:  registry,
	})
	if err != nil {
		return fmt.Errorf("create processor: %w", err)
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("redis client close failed")
			}
		}()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window, ratelimit.DefaultKeyPrefix)
		if err != nil {
			return fmt.Errorf("create rate limiter: %w", err)
		}
		limiter = bucket
		logger.Info().
			Str("redis", cfg.Redis.Addr).
			Int64("capacity", bucket.Capacity()).
			Dur("window", cfg.RateLimit.Window).
			Msg("rate limiting enabled")
		readiness["redis"] = pingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	app, err := api.NewServer(api.Options{
		Logger:         logger,
		Processor:      processor,
		RateLimiter:    limiter,
		Registry:       registry,
		Tracer:         otel.Tracer("mediaproc/api"),
		Readiness:      readiness,
		Pool:           pool,
		Usage:          reporter,
		DefaultQuality: limits.DefaultQuality,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.API.ReadTimeout,
		WriteTimeout:      cfg.API.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.API.Addr).
			Str("storage", cfg.Storage.Backend).
			Str("backend", pipeline.Backend()).
			Int("workers", pool.Concurrency()).
			Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	return nil
}

func newFetcher(cfg config.StorageConfig) (fetcher, error) {
	switch cfg.Backend {
	case config.BackendProxy:
		return storage.NewProxyClient(storage.ProxyConfig{
			BaseURL:      cfg.ProxyURL,
			ClientID:     cfg.AccessClientID,
			ClientSecret: cfg.AccessClientSecret,
			Timeout:      cfg.Timeout,
			MaxBytes:     cfg.MaxInputBytes,
			MaxAttempts:  cfg.MaxAttempts,
		})
	case config.BackendS3:
		return storage.NewClient(storage.Config{
			Endpoint: cfg.MinIO.Endpoint,
			Access:   cfg.MinIO.AccessKey,
			Secret:   cfg.MinIO.SecretKey,
			Bucket:   cfg.MinIO.Bucket,
			UseSSL:   cfg.MinIO.UseSSL,
			MaxBytes: cfg.MaxInputBytes,
		})
	case config.BackendLocal:
		return storage.NewLocalDir(cfg.LocalDir, cfg.MaxInputBytes)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func newUsageStore(ctx context.Context, cfg config.UsageConfig, logger zerolog.Logger) (store.UsageStore, func(), error) {
	switch cfg.Store {
	case config.UsagePostgres:
		pg, err := store.NewPostgresUsageStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() {
			if err := pg.Close(); err != nil {
				logger.Warn().Err(err).Msg("usage store close failed")
			}
		}, nil
	case config.UsageMemory:
		return store.NewMemoryUsageStore(cfg.MemoryCapacity), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}
