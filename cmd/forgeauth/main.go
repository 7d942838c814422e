// Command forgeauth serves the authentication API over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/forgeauth"
	"github.com/MrEthical07/forgeauth/internal/config"
	"github.com/MrEthical07/forgeauth/internal/logging"
	"github.com/MrEthical07/forgeauth/mailer"
	"github.com/MrEthical07/forgeauth/metrics/export/prometheus"
	"github.com/MrEthical07/forgeauth/oauth/github"
	"github.com/MrEthical07/forgeauth/store"
	"github.com/MrEthical07/forgeauth/store/memory"
	"github.com/MrEthical07/forgeauth/store/postgres"
	"github.com/MrEthical07/forgeauth/transport/httpapi"
)

func main() {
	envFile := flag.String("env-file", "", "optional env file loaded before parsing the environment")
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	smtp, err := mailer.NewSMTP(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		StartTLS: cfg.SMTPStartTLS,
	})
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}

	builder := forgeauth.New().
		WithConfig(cfg.Engine()).
		WithStore(st).
		WithRedis(rdb).
		WithMailer(smtp).
		WithLogger(logger).
		WithAuditSink(forgeauth.NewZapSink(logger))

	if cfg.GitHubEnabled() {
		builder = builder.WithOAuthProvider(github.New(github.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.GitHubRedirectURI,
		}))
	} else {
		logger.Info("github oauth disabled; GITHUB_CLIENT_ID not set")
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.New(engine, httpapi.Options{
			Metrics: prometheus.New(engine).Handler(),
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}

	logger.Info("goodbye")
	return nil
}

// openStore picks PostgreSQL when DATABASE_URL is set and the in-memory
// store otherwise. Migrations run on every start.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Warn("db close failed", zap.Error(err))
		}
	}, nil
}
