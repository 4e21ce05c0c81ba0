// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/offering-enrollment/internal/config"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/database"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/handler"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/notify"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/repository"
	"github.com/Shivanand-hulikatti/offering-enrollment/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Storage ───────────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// ── 2. Notification sinks ────────────────────────────────────────────
	sinks, closers, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.Warn("sink_close_failed", "error", err)
			}
		}
	}()
	dispatcher := notify.NewDispatcher(cfg.NotifyBuffer, cfg.NotifyTimeout, logger, sinks...)

	// ── 3. Wire up layers ────────────────────────────────────────────────
	svc := service.NewEnrollmentService(store,
		service.WithPublisher(dispatcher),
		service.WithLogger(logger),
	)
	h := handler.NewOfferingHandler(svc, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 4. Run until SIGINT or SIGTERM ───────────────────────────────────
	// The dispatcher outlives the server so events from in-flight requests
	// are still delivered.
	notifyCtx, stopNotify := context.WithCancel(context.Background())
	defer stopNotify()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(notifyCtx)
	})
	g.Go(func() error {
		logger.Info("server_listening", "addr", srv.Addr, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopNotify()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server_stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		logger.Info("store_ready", "driver", cfg.StoreDriver, "path", cfg.SQLitePath)
		return repository.NewSQLiteStore(db), func() { _ = db.Close() }, nil

	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("store_ready", "driver", cfg.StoreDriver, "host", cfg.DB.Host, "db", cfg.DB.Name)
		return repository.NewPostgresStore(pool), pool.Close, nil
	}

	logger.Info("store_ready", "driver", config.DriverMemory)
	return repository.NewMemoryStore(), func() {}, nil
}

func openSinks(cfg *config.Config, logger *slog.Logger) ([]notify.Sink, []io.Closer, error) {
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	var closers []io.Closer

	if cfg.RabbitURL != "" {
		rs, err := notify.NewRabbitSink(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, nil, fmt.Errorf("rabbitmq: %w", err)
		}
		sinks = append(sinks, rs)
		closers = append(closers, rs)
		logger.Info("sink_ready", "sink", "rabbitmq", "exchange", cfg.RabbitExchange)
	}

	if len(cfg.KafkaBrokers) > 0 {
		ks := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, ks)
		closers = append(closers, ks)
		logger.Info("sink_ready", "sink", "kafka", "topic", cfg.KafkaTopic)
	}

	return sinks, closers, nil
}
