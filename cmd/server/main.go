package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"keyword-harvester/internal/config"
	"keyword-harvester/internal/handler"
	"keyword-harvester/pkg/harvester"
	"keyword-harvester/pkg/logger"
	"keyword-harvester/pkg/metrics"
	"keyword-harvester/pkg/storage"
)

type Application struct {
	configPath string
	debug      bool
	rateLimit  int
}

func main() {
	app := &Application{}

	flag.StringVar(&app.configPath, "config", "", "Configuration file path (YAML)")
	flag.BoolVar(&app.debug, "debug", false, "Enable debug mode")
	flag.IntVar(&app.rateLimit, "rate-limit", 30, "Aggregation requests per client IP and minute (0 disables)")
	flag.Parse()

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func (app *Application) Run() error {
	start := time.Now()

	cfg, err := config.NewManager().Load(app.configPath)
	if err != nil {
		return err
	}
	if app.debug {
		cfg.Logger.Level = "debug"
	}

	logger.SetLogger(logger.New(cfg.Logger))
	log := logger.GetLogger().WithField("component", "server")
	secureLog := logger.GetSecurityLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sinkFields := map[string]interface{}{
		"storage_driver": cfg.Storage.Driver,
		"redis_url":      cfg.Storage.Redis.URL,
		"file_path":      cfg.Storage.File.Path,
	}
	sink, err := storage.NewSink(ctx, cfg.Storage)
	if err != nil {
		secureLog.SafeError("Failed to open log sink", err, sinkFields)
		return fmt.Errorf("failed to open %s log sink", cfg.Storage.Driver)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			secureLog.SafeWarn("Failed to close log sink cleanly: "+err.Error(), sinkFields)
		}
	}()

	pipeline, err := harvester.NewBuilder().
		WithSuggest(cfg.Suggest).
		WithAggregator(cfg.Aggregator).
		WithLocaleTables(cfg.Locale.TablesPath).
		WithSink(sink).
		Build()
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metrics.Register(prometheus.DefaultRegisterer, sink, cfg.Storage.KeyPrefix)
		metricsPath = cfg.Metrics.Path
	}

	exporter := storage.NewDataExporter(sink, cfg.Storage.KeyPrefix, cfg.Export.Secret)
	controller := handler.NewController(pipeline.Aggregator, exporter, pipeline.Tables, handler.ControllerConfig{
		MetricsPath:  metricsPath,
		RateLimit:    app.rateLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})
	server := controller.NewApp()

	secureLog.SafeInfo("Configuration loaded", map[string]interface{}{
		"config_file":     app.configPath,
		"endpoint":        cfg.Suggest.Endpoint,
		"client":          cfg.Suggest.Client,
		"workers":         cfg.Aggregator.Workers,
		"temporal_policy": cfg.Aggregator.TemporalPolicy,
		"storage_driver":  cfg.Storage.Driver,
		"redis_url":       cfg.Storage.Redis.URL,
		"export_secret":   cfg.Export.Secret,
		"metrics":         cfg.Metrics.Enabled,
	})
	if cfg.Export.Secret == "" {
		log.Warn("Export secret not set; log export is disabled")
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	listenErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Server started")
		listenErr <- server.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server shutdown incomplete")
	}

	// pending search log writes
	done := make(chan struct{})
	go func() {
		pipeline.Aggregator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Timed out waiting for search log writes")
	}

	log.WithField("uptime", time.Since(start).String()).Info("Server stopped")
	return nil
}
