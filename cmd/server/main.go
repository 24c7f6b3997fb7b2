// Command server runs the HTTP ingestion gateway.
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

	"github.com/redis/go-redis/v9"

	"github.com/okian/athletegraph/internal/adapters/credentials"
	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/adapters/http/api"
	"github.com/okian/athletegraph/internal/adapters/http/swagger"
	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/internal/config"
	"github.com/okian/athletegraph/internal/domain/ontology"
	"github.com/okian/athletegraph/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("server: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	units, err := ontology.Load(ctx, cfg.OntologyPath)
	if err != nil {
		return err
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.release()

	svc := service.New(
		service.WithLogger(log.Named("gateway")),
		service.WithUnits(units),
		service.WithStore(b.store),
		service.WithResolver(b.resolver),
		service.WithBatchLimit(cfg.BatchMaxItems),
		service.WithWriteWorkers(cfg.WriteWorkers),
	)
	if err := svc.Start(ctx); err != nil {
		closeStore(ctx, b.store, log)
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop(context.Background())

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithAllowedOrigins(cfg.AllowedOrigins),
		api.WithLogger(log.Named("http")),
	).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreBackend),
			logger.String("credentials", cfg.CredentialsBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// backends are the store and credential resolver the gateway runs on.
// release frees the resolver; the store is closed by the service.
type backends struct {
	store    graph.Store
	resolver credentials.Resolver
	release  func()
}

// openBackends opens the resolver first so a resolver error never leaves a
// store driver open.
func openBackends(ctx context.Context, cfg *config.Config, log logger.Logger) (backends, error) {
	resolver, release, err := openResolver(cfg)
	if err != nil {
		return backends{}, err
	}
	policy, err := graph.ParsePolicy(cfg.MetricPolicy)
	if err != nil {
		release()
		return backends{}, err
	}
	store, err := service.OpenStore(ctx, cfg, policy, log)
	if err != nil {
		release()
		return backends{}, err
	}
	return backends{store: store, resolver: resolver, release: release}, nil
}

func closeStore(ctx context.Context, store graph.Store, log logger.Logger) {
	if c, ok := store.(interface{ Close(context.Context) error }); ok {
		if err := c.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn(ctx, "close store", logger.Error(err))
		}
	}
}

// openResolver returns the API key lookup and a func releasing it.
func openResolver(cfg *config.Config) (credentials.Resolver, func(), error) {
	switch cfg.CredentialsBackend {
	case config.CredentialsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return credentials.NewRedis(client, cfg.Redis.HashKey), func() { _ = client.Close() }, nil
	case config.CredentialsStatic:
		return credentials.NewStatic(cfg.APIKeys), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown credentials backend %q", cfg.CredentialsBackend)
	}
}
