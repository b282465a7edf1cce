package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/coordinator"
	"github.com/angelmondragon/packfinderz-cartsync/internal/localstore"
	"github.com/angelmondragon/packfinderz-cartsync/internal/remote"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/metrics"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cartsync", Output: os.Stderr})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "cartsync",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"backend": string(cfg.Store.BackendKind()),
	})

	rt := &runtime{open: func(ctx context.Context) (*cli, func(context.Context) error, error) {
		return bootstrap(ctx, cfg, logg)
	}}
	runErr := newRootCommand(rt).ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := rt.close(shutdownCtx); err != nil {
		logg.Error(ctx, "shutdown incomplete", err)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "cartsync:", runErr)
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*cli, func(context.Context) error, error) {
	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	backend, closeBackend, err := localstore.OpenBackend(ctx, cfg, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	store, err := localstore.New(localstore.Params{Backend: backend, Logger: logg, Metrics: syncMetrics})
	if err != nil {
		_ = closeBackend()
		return nil, nil, err
	}

	app := &cli{logg: logg, store: store, registry: registry, tokenKey: cfg.Store.AuthTokenKey}
	client, err := remote.NewClient(cfg.Remote.BaseURL,
		remote.WithLogger(logg),
		remote.WithMetrics(syncMetrics),
		remote.WithTimeouts(remote.TimeoutsFromConfig(cfg.Remote)),
		remote.WithTokenSource(remote.TokenFunc(func(ctx context.Context) string {
			return app.coord.Token(ctx)
		})),
	)
	if err != nil {
		_ = closeBackend()
		return nil, nil, err
	}

	app.coord, err = coordinator.New(coordinator.Params{
		Store:          store,
		CartRemote:     remote.NewCartClient(client),
		WishlistRemote: remote.NewWishlistClient(client),
		Logger:         logg,
		Metrics:        syncMetrics,
		JWT:            cfg.JWT,
		Sync:           cfg.Sync,
		TokenKey:       cfg.Store.AuthTokenKey,
	})
	if err != nil {
		_ = closeBackend()
		return nil, nil, err
	}
	if err := app.start(ctx); err != nil {
		_ = closeBackend()
		return nil, nil, err
	}

	closeFn := func(ctx context.Context) error {
		err := app.coord.Close(ctx)
		if cerr := closeBackend(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}
	return app, closeFn, nil
}
