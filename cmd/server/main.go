package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/boqimport/internal/config"
	"github.com/JonMunkholm/boqimport/internal/core"
	"github.com/JonMunkholm/boqimport/internal/logging"
	"github.com/JonMunkholm/boqimport/internal/metrics"
	"github.com/JonMunkholm/boqimport/internal/store"
	"github.com/JonMunkholm/boqimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"store_enabled", cfg.Store.Enabled(),
		"profiles", cfg.Parse.ProfileDir != "",
	)

	parseCfg, err := cfg.Parse.ParseConfig()
	if err != nil {
		slog.Error("invalid parse defaults", "error", err)
		os.Exit(1)
	}

	pipeline := core.NewPipeline(parseCfg, metrics.NewRecorder())
	limiter := core.NewParseLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	if err := metrics.RegisterLimiter(prometheus.DefaultRegisterer, limiter); err != nil {
		slog.Error("failed to register limiter metrics", "error", err)
		os.Exit(1)
	}

	// Cancelled on shutdown to stop background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	opts := []core.RegistryOption{core.WithRetention(cfg.Upload.RunRetention)}

	if cfg.Store.Enabled() {
		pool, err := store.Connect(jobCtx, cfg.Store)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(jobCtx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("connected to database", "max_conns", cfg.Store.MaxConns)

		opts = append(opts, core.WithCompletion(st.CompletionFunc(cfg.Store.SaveTimeout)))

		go store.RunRetention(jobCtx, st, store.RetentionPolicy{
			Window:        cfg.Retention.Window(),
			BatchSize:     cfg.Retention.BatchSize,
			CheckInterval: cfg.Retention.CheckInterval,
		})
	}

	runs := core.NewRunRegistry(pipeline, limiter, opts...)
	server := web.NewServer(cfg, pipeline, runs)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Background runs outlive their requests; let them finish (and persist)
		if status := limiter.Status(); status.Active > 0 {
			slog.Info("waiting for parses to complete", "active", status.Active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("parses did not complete in time", "error", err)
			} else {
				slog.Info("all parses completed")
			}
		}

		cancelJobs()
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-jobCtx.Done()
	slog.Info("server stopped")
}
