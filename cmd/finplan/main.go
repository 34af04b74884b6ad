package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finplan/internal/amqp"
	"finplan/internal/api"
	"finplan/internal/cache"
	"finplan/internal/cli"
	"finplan/internal/config"
	apphttp "finplan/internal/http"
	"finplan/internal/log"
	"finplan/internal/metrics"
	"finplan/internal/session"
)

const (
	shutdownTimeout = 30 * time.Second
	cacheSweep      = time.Minute
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	m := metrics.New()

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return err
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.APITimeout)
	defer cancelStart()

	jar, err := api.NewPersistentJar(startCtx, cfg.APIBaseURL, repo, logger)
	if err != nil {
		_ = repo.Close()
		return err
	}
	client, err := api.NewClient(cfg.APIBaseURL, jar,
		api.WithTimeout(cfg.APITimeout),
		api.WithMetrics(m),
		api.WithLogger(logger),
	)
	if err != nil {
		_ = repo.Close()
		return err
	}

	sessions := session.NewManager(client,
		session.WithRefreshInterval(cfg.RefreshInterval),
		session.WithRefreshTimeout(cfg.APITimeout),
		session.WithLogoutTimeout(cfg.LogoutTimeout),
		session.WithLogger(logger),
		session.WithMetrics(m),
	)

	views := cache.NewViews(cfg.CacheTTL, m)
	caches := cache.NewManager(logger)
	views.Register(caches)

	deps := apphttp.Deps{
		Backend:  client,
		Sessions: sessions,
		Views:    views,
		Journal:  repo,
		Metrics:  m,
		Logger:   logger,
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, exports wait for the sweep", log.FieldError, err.Error())
		} else {
			deps.Publisher = events
		}
	} else {
		logger.Warn("AMQP_URL not set, record submissions will not be announced")
	}

	srv, err := apphttp.NewServer(cfg.Addr(), deps)
	if err != nil {
		sessions.Close()
		_ = repo.Close()
		return err
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		sessions.Close()
		caches.Stop()
		if events != nil {
			_ = events.Close()
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close journal", log.FieldError, err.Error())
		}
	})

	caches.StartCleanup(ctx, cacheSweep)
	if sessions.Bootstrap(startCtx) {
		logger.Info("Session resumed")
	}

	logger.Info("Starting finplan", "addr", cfg.Addr(), "api", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	logger.Info("Server stopped gracefully")
	return nil
}
