package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/config"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/gateway/store"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/infra"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/logging"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/notification"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/provider/providertest"
	"github.com/Lakshan03X/ParkMateAWS-sub002/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := store.NewPostgres(pool).EnsureSchema(ctx); err != nil {
			logger.Error("ensure store schema", "error", err)
			os.Exit(1)
		}
		db = pool
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		c, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		cache = c
	}

	// Development convenience: without a real identity provider, serve the
	// in-process double on a loopback listener. Issued codes appear in the log.
	if cfg.ProviderBaseURL == "" && cfg.IsDev() {
		double := providertest.New(notification.NewLoggerNotifier(logger))
		double.Seed(providertest.Identity{
			NationalID:  "902531234V",
			FullName:    "Dev Citizen",
			Address:     "1 Sample Street, Colombo",
			DateOfBirth: "1990-09-09",
			Gender:      "F",
			Email:       "dev@example.com",
			Phone:       "+94770000000",
		})

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			logger.Error("start provider double", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := http.Serve(ln, double.Handler()); err != nil {
				logger.Warn("provider double stopped", "error", err)
			}
		}()
		cfg.ProviderBaseURL = "http://" + ln.Addr().String()
		logger.Info("identity provider double running", "url", cfg.ProviderBaseURL)
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
