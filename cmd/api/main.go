package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pongarena/platform/internal/app"
	"github.com/pongarena/platform/internal/infra"
	"github.com/pongarena/platform/internal/mail"
	"github.com/pongarena/platform/internal/session"
	"github.com/pongarena/platform/internal/token"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var blacklist token.Blacklist
	if redisClient, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn("redis unavailable, using in-process token blacklist", "error", err)
		blacklist = token.NewMemoryBlacklist()
	} else {
		defer redisClient.Close()
		logger.Info("connected to redis")
		blacklist = token.NewRedisBlacklist(redisClient)
	}

	tokens := token.NewManager(cfg.JWTSecret,
		cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry, cfg.JWTSessionExpiry, blacklist)

	var mailer mail.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		logger.Warn("SMTP not configured, activation mail will only be logged")
		mailer = &mail.LogMailer{Logger: logger}
	}

	if err := os.MkdirAll(cfg.AvatarDir, 0o755); err != nil {
		return fmt.Errorf("create avatar dir: %w", err)
	}

	router := app.NewRouter(app.RouterDeps{
		Pool:   pool,
		Tokens: tokens,
		Store:  session.NewPgStore(pool),
		Mailer: mailer,
		Logger: logger,
		Config: cfg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
