package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fathima-sithara/media-service/internal/auth"
	"github.com/fathima-sithara/media-service/internal/cache"
	"github.com/fathima-sithara/media-service/internal/config"
	"github.com/fathima-sithara/media-service/internal/discovery"
	"github.com/fathima-sithara/media-service/internal/events"
	"github.com/fathima-sithara/media-service/internal/handlers"
	"github.com/fathima-sithara/media-service/internal/metrics"
	"github.com/fathima-sithara/media-service/internal/middleware"
	"github.com/fathima-sithara/media-service/internal/repository"
	service "github.com/fathima-sithara/media-service/internal/services"
	"github.com/fathima-sithara/media-service/internal/storage"
	utils "github.com/fathima-sithara/media-service/internal/utis"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// multipart overhead allowed on top of upload.max_bytes before fiber rejects the body
const bodySlack = 1 << 20

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger, err := utils.NewLogger(cfg.IsDevelopment(), cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	repo, mc, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if mc != nil {
		closers = append(closers, func() {
			dctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = mc.Disconnect(dctx)
		})
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	store := storage.NewBreakerStore(blobs, cfg.Breaker.MaxFailures, time.Duration(cfg.Breaker.OpenSeconds)*time.Second)

	opts := []service.Option{}
	var rc *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err = cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		opts = append(opts, service.WithCache(rc))
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() { _ = pub.Close() })
		opts = append(opts, service.WithPublisher(pub))
		logger.Infow("publishing media events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	svc := service.NewMediaService(repo, store, logger, service.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		PresignTTL:     cfg.PresignTTL,
		SignedURLTTL:   cfg.SignedURLTTL,
	}, opts...)

	verifier, err := auth.NewJWTVerifier(cfg.JWT.PublicKeyPath, cfg.JWT.Secret)
	if err != nil {
		return fmt.Errorf("jwt init: %w", err)
	}

	metrics.Init()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Upload.MaxBytes) + bodySlack,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		ErrorHandler: handlers.ErrorHandler(logger, cfg.IsDevelopment()),
	})
	app.Use(middleware.RequestLogger(logger))
	app.Use(middleware.Recovery(logger))
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: joinOrigins(cfg.App.AllowedOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.RegisterSystemRoutes(app, cfg.App.Name, cfg.App.Version)
	limiter := rateLimiter(ctx, cfg, rc, logger)
	h := handlers.NewHandler(svc, logger)
	if limiter != nil {
		h.RegisterRoutes(app.Group("/api"), middleware.JWTAuth(verifier), limiter)
	} else {
		h.RegisterRoutes(app.Group("/api"), middleware.JWTAuth(verifier))
	}

	if cfg.Consul.Addr != "" {
		reg, err := discovery.Register(cfg.Consul.Addr, cfg.Consul.ServiceName, cfg.Consul.ServiceAddress, cfg.App.Port)
		if err != nil {
			logger.Warnw("consul registration failed", "error", err)
		} else {
			closers = append(closers, func() { _ = reg.Deregister() })
		}
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logger.Infow("starting media service", "addr", addr, "env", cfg.App.Env, "storage", cfg.Storage.Driver)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		logger.Warnw("http shutdown", "error", err)
	}
	logger.Info("shutdown completed")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (repository.MediaRepository, *mongo.Client, error) {
	if cfg.Mongo.URI == "" {
		logger.Warn("mongodb.uri not set, using in-memory metadata store")
		return repository.NewMemoryRepo(), nil, nil
	}
	mc, err := repository.Connect(ctx, cfg.Mongo.URI, time.Duration(cfg.Mongo.ConnectRetrySeconds)*time.Second)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	repo := repository.NewMediaRepo(mc.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection))
	ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := repo.EnsureIndexes(ictx); err != nil {
		logger.Warnw("index creation failed", "error", err)
	}
	return repo, mc, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case "s3":
		st, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:        cfg.AWS.Region,
			Bucket:        cfg.AWS.Bucket,
			Endpoint:      cfg.AWS.Endpoint,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			PublicRead:    cfg.S3.PublicRead,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init: %w", err)
		}
		return st, nil
	case "minio":
		st, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:      cfg.Minio.Endpoint,
			AccessKey:     cfg.Minio.AccessKey,
			SecretKey:     cfg.Minio.SecretKey,
			Bucket:        cfg.Minio.Bucket,
			Region:        cfg.Minio.Region,
			UseSSL:        cfg.Minio.UseSSL,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio init: %w", err)
		}
		return st, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// rateLimiter prefers the shared Redis window and falls back to the
// in-process limiter. Zero requests_per_minute disables limiting.
func rateLimiter(ctx context.Context, cfg *config.Config, rc *cache.RedisCache, logger *zap.SugaredLogger) fiber.Handler {
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		return nil
	}
	if rc != nil {
		rl := middleware.NewRedisRateLimiter(rc.Cli, "ratelimit:media", cfg.RateLimit.RequestsPerMinute, time.Minute)
		return rl.Handler(middleware.ByUserOrIP)
	}
	l := middleware.NewIPRateLimiter(ctx, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logger)
	return l.Handler(middleware.ByUserOrIP)
}

func joinOrigins(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ", ")
}
