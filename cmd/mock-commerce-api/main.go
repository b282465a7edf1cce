package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/angelmondragon/packfinderz-cartsync/internal/commerceapi"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/auth"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/config"
	"github.com/angelmondragon/packfinderz-cartsync/pkg/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "mock-commerce-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	mintFor := flag.String("mint-token", "", "print a bearer token for this account and exit")
	ttl := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a minted token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "mock-commerce-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if *mintFor != "" {
		token, err := auth.MintAccessToken(cfg.JWT, time.Now(), *ttl, auth.AccessTokenPayload{
			UserID: *mintFor,
			JTI:    uuid.NewString(),
		})
		if err != nil {
			logg.Error(context.Background(), "failed to mint token", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	api, err := commerceapi.New(commerceapi.Params{Logger: logg, JWT: cfg.JWT})
	if err != nil {
		logg.Error(context.Background(), "failed to build mock api", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Mock.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	if !cfg.JWT.VerifiesSignature() {
		logg.Warn(ctx, "no jwt secret configured; bearer tokens are not verified")
	}
	logg.Info(ctx, "starting mock commerce api")

	server := &http.Server{
		Addr:              addr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "mock api shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "mock api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "mock commerce api stopped")
}
