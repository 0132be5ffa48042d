package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/barneyonline/core/internal/config"
	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/history"
	"github.com/barneyonline/core/internal/hub"
	"github.com/barneyonline/core/internal/logging"
	"github.com/barneyonline/core/internal/mqtt"
	"github.com/barneyonline/core/internal/plugins"
	"github.com/barneyonline/core/internal/rate"
	"github.com/barneyonline/core/internal/router"
	"github.com/barneyonline/core/internal/server"
	"github.com/barneyonline/core/internal/store"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		os.Exit(validateMain(os.Args[2:]))
	}

	fs := flag.NewFlagSet("gohome", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultPath, "path to config.pbtxt")
	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("GOHOME")); err != nil {
		fmt.Fprintf(os.Stderr, "flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, closer := logging.New(cfg.Logging, version)
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gohome stopped", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	active, err := activePlugins(cfg, logger)
	if err != nil {
		return err
	}

	registryStore, err := store.NewBoltStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer registryStore.Close()

	h, err := hub.New(registryStore, logger.With("component", "hub"))
	if err != nil {
		return fmt.Errorf("hub: %w", err)
	}

	integrations := plugins.Integrations(active)
	for _, integration := range integrations {
		if err := integration.Setup(ctx, h); err != nil {
			logger.Error("integration setup failed", "error", err)
		}
	}
	defer func() {
		unloadCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, integration := range integrations {
			if err := integration.Unload(unloadCtx, h); err != nil {
				logger.Warn("integration unload failed", "error", err)
			}
		}
	}()

	grpcServer, err := server.NewGRPCServer(cfg.Core.GRPCAddr, logger.With("component", "grpc"))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	if err := router.RegisterPlugins(grpcServer.Server, active, h); err != nil {
		return fmt.Errorf("register grpc services: %w", err)
	}

	metricsRegistry := core.MetricsRegistry(version, active, rate.MetricsCollectors()...)

	if cfg.Core.DashboardDir != "" {
		if err := core.WriteDashboards(cfg.Core.DashboardDir, active); err != nil {
			logger.Warn("write dashboards", "dir", cfg.Core.DashboardDir, "error", err)
		}
	}

	if cfg.MQTT != nil {
		bridge, err := startMQTT(cfg.MQTT, h, logger)
		if err != nil {
			return err
		}
		defer bridge.Stop()
	}
	if cfg.InfluxDB != nil {
		sink, err := startHistory(ctx, cfg.InfluxDB, h, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
	}

	events := server.NewEventStream(h.Bus, logger.With("component", "events"))
	defer events.Close()

	httpServer := server.NewHTTPServer(cfg.Core.HTTPAddr, server.NewRouter(server.Options{
		Hub:        h,
		Plugins:    active,
		Metrics:    metricsRegistry,
		Dashboards: core.DashboardsMap(active),
		Events:     events,
		Logger:     logger.With("component", "api"),
	}))

	errCh := make(chan error, 2)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	go func() {
		errCh <- grpcServer.Serve()
	}()
	logger.Info("gohome started",
		"grpc_addr", cfg.Core.GRPCAddr,
		"http_addr", cfg.Core.HTTPAddr,
		"plugins", len(active))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.Stop()

	if serveErr != nil {
		return fmt.Errorf("serve: %w", serveErr)
	}
	return nil
}

func activePlugins(cfg *config.Config, logger *slog.Logger) ([]core.Plugin, error) {
	compiled := plugins.Compiled(cfg, logger)
	enabled := config.EnabledPlugins(cfg)
	if err := core.ValidateEnabledPlugins(compiled, enabled, cfg.Core.EnableAllPlugins); err != nil {
		return nil, err
	}
	active := core.FilterPlugins(compiled, enabled, cfg.Core.EnableAllPlugins)
	if err := core.ValidatePlugins(active); err != nil {
		return nil, err
	}
	return active, nil
}

func startMQTT(cfg *config.MQTTConfig, h *hub.Hub, logger *slog.Logger) (*mqtt.Bridge, error) {
	password, err := config.ReadSecret(cfg.PasswordFile)
	if err != nil {
		return nil, err
	}
	bridge, err := mqtt.NewBridge(h, mqtt.Options{
		Broker:          cfg.Broker,
		ClientID:        cfg.ClientID,
		Username:        cfg.Username,
		Password:        password,
		TopicPrefix:     cfg.TopicPrefix,
		DiscoveryPrefix: cfg.DiscoveryPrefix,
		QoS:             byte(cfg.QoS),
	}, logger)
	if err != nil {
		return nil, err
	}
	bridge.Start()
	return bridge, nil
}

func startHistory(ctx context.Context, cfg *config.InfluxDBConfig, h *hub.Hub, logger *slog.Logger) (*history.Sink, error) {
	token, err := config.ReadSecret(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("influxdb token_file is empty")
	}
	sink, err := history.New(ctx, history.Options{
		URL:                  cfg.URL,
		Token:                token,
		Org:                  cfg.Org,
		Bucket:               cfg.Bucket,
		BatchSize:            int(cfg.BatchSize),
		FlushIntervalSeconds: int(cfg.FlushIntervalSeconds),
	}, logger)
	if err != nil {
		return nil, err
	}
	sink.Start(h.Bus)
	return sink, nil
}
