package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bookkreate/internal/ratelimit"
	"bookkreate/internal/util"
	"bookkreate/pkg/genapi"
	"bookkreate/pkg/identity"
	"bookkreate/pkg/storage"
	"bookkreate/pkg/store"
	"bookkreate/services/books/internal/app"
	"bookkreate/services/books/internal/authclient"
	"bookkreate/services/books/internal/config"
	"bookkreate/services/books/internal/server"
)

func main() {
	cfg, err := config.Load(os.Getenv("BOOKS_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var cache *store.Cache
	if cfg.RedisAddr != "" {
		ttl, err := config.ParseCacheTTL(cfg.CacheTTL)
		if err != nil {
			log.Fatalf("failed to parse cache ttl: %v", err)
		}
		cache = store.NewCache(cfg.RedisAddr, cfg.RedisPassword, ttl)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		objects = minioStore
	}

	tokenVerifier, err := identity.NewVerifier(identity.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatalf("failed to init jwks verifier: %v", err)
	}

	var generateLimit *ratelimit.FixedWindowLimiter
	if cfg.GenerateRateLimit > 0 && cfg.RedisAddr != "" {
		window, err := config.ParseRateWindow(cfg.GenerateRateWindow)
		if err != nil {
			log.Fatalf("failed to parse rate window: %v", err)
		}
		generateLimit, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "bookkreate:generate", cfg.GenerateRateLimit, window)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	appCore, err := app.New(app.Options{
		Store:   st,
		Cache:   cache,
		Gen:     genapi.NewClient(cfg.GenAPIURL),
		Objects: objects,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:           appCore,
		Auth:          authclient.NewClient(cfg.AuthServiceURL),
		TokenVerifier: tokenVerifier,
		InternalToken: cfg.InternalToken,
		GenerateLimit: generateLimit,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second, // generation calls are slow
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slog.Info("books server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
