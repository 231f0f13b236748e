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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RichardoC/aether-chat/internal/api"
	"github.com/RichardoC/aether-chat/internal/auth"
	"github.com/RichardoC/aether-chat/internal/chat"
	"github.com/RichardoC/aether-chat/internal/config"
	"github.com/RichardoC/aether-chat/internal/countries"
	"github.com/RichardoC/aether-chat/internal/db"
	"github.com/RichardoC/aether-chat/internal/hub"
	"github.com/RichardoC/aether-chat/internal/llm"
	"github.com/RichardoC/aether-chat/internal/logging"
	"github.com/RichardoC/aether-chat/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newResponder(cfg config.ResponderConfig) (llm.Responder, error) {
	switch cfg.Backend {
	case "openai":
		return llm.NewOpenAI(cfg.BaseURL, cfg.Token, cfg.Model, cfg.Timeout)
	default:
		return llm.NewCanned(), nil
	}
}

func run(cfg *config.Config, logger *zap.Logger) (err error) {
	blobs, err := db.Open(db.Config{
		Driver:     cfg.Storage.Driver,
		SQLitePath: cfg.Storage.SQLitePath,
		Redis: db.RedisConfig{
			Address:  cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		err = multierr.Append(err, blobs.Close())
	}()

	responder, err := newResponder(cfg.Responder)
	if err != nil {
		return fmt.Errorf("failed to initialize responder: %w", err)
	}

	registry := store.NewRegistry(blobs)
	authService := auth.NewService(auth.Config{
		JWTSecret:    cfg.Auth.JWTSecret,
		Issuer:       cfg.Auth.Issuer,
		TokenTTL:     cfg.Auth.TokenTTL,
		OTPDelay:     cfg.Auth.OTPDelay,
		VerifyDelay:  cfg.Auth.VerifyDelay,
		ChallengeTTL: cfg.Auth.ChallengeTTL,
		OTPRPS:       cfg.Auth.OTPRPS,
		OTPBurst:     cfg.Auth.OTPBurst,
	}, registry, logger)
	chatService := chat.NewService(registry, responder, chat.Config{
		MinThink: cfg.Responder.MinThink,
		MaxThink: cfg.Responder.MaxThink,
	}, logger)
	defer chatService.Close()

	countryClient := countries.NewClient(countries.Config{
		Enabled:  cfg.Countries.Enabled,
		URL:      cfg.Countries.URL,
		Timeout:  cfg.Countries.Timeout,
		CacheTTL: cfg.Countries.CacheTTL,
	}, logger)

	eventHub := hub.New(hub.DefaultConfig(), logger)
	unsubscribe := registry.Subscribe(eventHub.Publish)
	defer unsubscribe()

	handler := api.NewHandler(authService, chatService, registry, countryClient, eventHub, logger)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eventHub.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("responder", cfg.Responder.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
