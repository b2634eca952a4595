package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"akiverse/internal/api"
	"akiverse/internal/arcade"
	"akiverse/internal/config"
	"akiverse/internal/custody"
	"akiverse/internal/db"
	"akiverse/internal/metrics"
	"akiverse/internal/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("akiverse api stopped", "err", err)
		os.Exit(1)
	}
}

// run owns every resource so deferred cleanup happens before main exits.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	loc, _ := cfg.Location()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	catalog := arcade.DefaultCatalog()
	if cfg.CatalogFile != "" {
		catalog, err = arcade.LoadCatalog(cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", cfg.CatalogFile, err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var notifier notify.Notifier = db.NewNotificationWriter(pool)
	if cfg.NotifySink == config.NotifySinkLog {
		notifier = notify.LogNotifier{Log: logger}
	}
	// Stops before pool.Close; the db notifier drains through the pool.
	dispatcher := notify.NewDispatcher(notifier, logger, m, cfg.NotifyWorkers, cfg.NotifyQueueSize)
	defer dispatcher.Stop()

	store := db.NewStore(pool)
	svc := arcade.NewService(store, custody.New(store, logger), catalog, arcade.StaticFees{
		Installation:   cfg.InstallationFee,
		DismantleTeras: cfg.DismantleFeeTeras,
		DismantleAkv:   cfg.DismantleFeeAkv,
	}, logger,
		arcade.WithManagerUserID(cfg.ManagerUserID),
		arcade.WithLocation(loc),
	)

	server := api.New(cfg, logger, svc, dispatcher, m, reg)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("akiverse api listening", "addr", cfg.Addr, "timezone", loc.String(), "notify_sink", cfg.NotifySink)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	logger.Info("akiverse api shut down")
	return nil
}
