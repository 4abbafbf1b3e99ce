package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/engine"
	"pulse_exec/internal/execution"
	"pulse_exec/internal/infra"
	"pulse_exec/internal/infra/deribit"
	"pulse_exec/internal/storage"
)

// Bootstrap orchestrates the application startup sequence and owns the
// wired components. Everything is constructed here and passed down by
// reference; there are no hidden singletons.
type Bootstrap struct {
	Config   *infra.Config
	Writer   *storage.OrderWriter
	Registry *engine.Registry
	Gateway  domain.Gateway

	ordersWorker *deribit.OrdersWorker
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires config -> logger -> durable writer -> registry -> gateway.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	slog.Info("🚀 Bootstrapping PulseExec",
		slog.String("version", cfg.App.Version),
		slog.String("mode", cfg.Trading.Mode))

	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := infra.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	writer, err := storage.NewOrderWriter(cfg.Storage.DBPath, cfg.Storage.QueueCapacity)
	if err != nil {
		return fmt.Errorf("failed to open order writer: %w", err)
	}
	writer.Start(ctx)
	b.Writer = writer
	slog.Info("✅ Order writer started (WAL-mode)", slog.String("path", cfg.Storage.DBPath))

	b.Registry = engine.NewRegistry(writer, engine.Options{
		IDScheme:                  engine.IDScheme(cfg.Orders.IDScheme),
		RejectTerminalTransitions: cfg.Orders.RejectTerminalUpdates,
	})

	factory := execution.NewGatewayFactory(cfg)
	gateway, err := factory.CreateGateway()
	if err != nil {
		writer.Stop()
		return err
	}
	b.Gateway = gateway

	return nil
}

// StartOrderFeed subscribes to live order events in LIVE mode. Paper and
// mock venues produce no asynchronous events, so the feed is skipped.
func (b *Bootstrap) StartOrderFeed(ctx context.Context) error {
	if !strings.EqualFold(b.Config.Trading.Mode, "LIVE") {
		return nil
	}

	b.ordersWorker = deribit.NewOrdersWorker(b.Config, b.Registry)
	if err := b.ordersWorker.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start order feed: %w", err)
	}
	slog.Info("✅ Order event feed started")
	return nil
}

// Shutdown stops the order feed and drains the durable writer.
func (b *Bootstrap) Shutdown() {
	if b.ordersWorker != nil {
		b.ordersWorker.Disconnect()
	}
	if b.Writer != nil {
		b.Writer.Stop()
	}
	slog.Info("👋 Shutdown complete", slog.Uint64("sink_dropped", b.Registry.SinkDropped()))
}
