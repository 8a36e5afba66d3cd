package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projectboard/internal/auth"
	"projectboard/internal/cache"
	"projectboard/internal/config"
	"projectboard/internal/database"
	"projectboard/internal/handlers"
	"projectboard/internal/metrics"
	"projectboard/internal/middleware"
	"projectboard/internal/realtime"
	"projectboard/internal/repository"
	"projectboard/internal/routes"
	"projectboard/internal/scheduler"
	"projectboard/internal/storage"
	"projectboard/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		return err
	}

	reads, closeCache, err := readCache(cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	blobs, err := storage.NewLocal(cfg.Storage.Dir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	tokens := auth.NewManager(cfg.Auth)
	otps := auth.NewOTPStore(cfg.Auth.OTPTTL)
	oauth := auth.NewOAuth(cfg.Auth)

	h := handlers.New(handlers.Deps{
		DB:             db,
		Tokens:         tokens,
		OTPs:           otps,
		OAuth:          oauth,
		Cache:          reads,
		CacheTTL:       cfg.Cache.TTL,
		Hub:            realtime.NewHub(logger),
		Storage:        blobs,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		Metrics:        metrics.New(),
		Logger:         logger,
		SecureCookies:  strings.HasPrefix(cfg.Auth.PublicURL, "https://"),
	})

	purgers := []scheduler.Purger{reads, otps, oauth}
	opts := routes.Options{
		Handler:     h,
		Tokens:      tokens,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
		Shell:       web.New(tokens, cfg.Server.StaticDir),
	}
	if cfg.Server.AuthRatePerMin > 0 {
		opts.AuthLimiter = middleware.NewRateLimiter(cfg.Server.AuthRatePerMin, cfg.Server.AuthBurst)
		purgers = append(purgers, opts.AuthLimiter)
	}
	router := routes.SetupRoutes(opts)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(time.Local, logger)
		err := sched.Register(scheduler.Jobs{
			PurgeInterval: cfg.Scheduler.PurgeInterval,
			Purgers:       purgers,
			DigestAt:      cfg.Scheduler.DigestAt,
			Overdue:       repository.New(db).Tasks,
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	logger.Info("server exited")
	return nil
}

// readCache builds the server read cache for the configured backend.
func readCache(cfg config.Cache, logger *zap.Logger) (cache.Cache[string, []byte], func(), error) {
	if cfg.Backend != "redis" {
		return cache.NewSimpleCache[string, []byte](cache.Options{ConcurrencySafe: true}), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPassword,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("read cache on redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisCache[[]byte](client, cfg.RedisPrefix, logger), func() { _ = client.Close() }, nil
}
