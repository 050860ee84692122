package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marginledger/config"
	"marginledger/core/ledger"
	"marginledger/observability/logging"
	telemetry "marginledger/observability/otel"
	"marginledger/storage"
)

const serviceName = "ledgerd"

func main() {
	if err := run(); err != nil {
		log.Fatalf("ledgerd: %v", err)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "ledgerd.toml", "path to ledgerd config (TOML or YAML)")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Level:      logging.ParseLevel(cfg.Logging.Level),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open ledger db: %w", err)
	}
	defer db.Close()

	exec := ledger.NewExecutor(db)
	exec.SetLogger(logger)
	exec.SetEmitter(logEmitter{logger: logger})

	created, err := bootstrap(ctx, exec, cfg.Bootstrap)
	if err != nil {
		return err
	}
	if created {
		logger.Info("ledger bootstrapped", slog.Int("vaults", len(cfg.Bootstrap.Vaults)), slog.Int("pools", len(cfg.Bootstrap.Pools)))
	}

	srv := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           newServer(exec, logger, cfg.Query).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("address", cfg.MetricsAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
