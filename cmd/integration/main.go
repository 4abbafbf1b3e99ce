package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/infra"
	"pulse_exec/internal/infra/deribit"
)

// Places a far-from-market limit order on the Deribit testnet, polls its
// venue-side state, then cancels it. Run manually with testnet keys in
// secrets/deribit.yaml or DERIBIT_KEY / DERIBIT_SECRET.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting Deribit integration test...")

	cfg := &infra.Config{}
	cfg.Trading.Mode = "LIVE"
	cfg.API.Deribit.RestURL = "https://test.deribit.com"

	secretPath := "secrets/deribit.yaml"
	if secretCfg, err := infra.LoadSecretConfig(secretPath); err == nil {
		cfg.API.Deribit.AccessKey = secretCfg.API.Deribit.AccessKey
		cfg.API.Deribit.SecretKey = secretCfg.API.Deribit.SecretKey
		slog.Info("🔑 Loaded secrets", "path", secretPath)
	}
	if key := os.Getenv("DERIBIT_KEY"); key != "" {
		cfg.API.Deribit.AccessKey = key
	}
	if secret := os.Getenv("DERIBIT_SECRET"); secret != "" {
		cfg.API.Deribit.SecretKey = secret
	}
	if cfg.API.Deribit.AccessKey == "" || cfg.API.Deribit.SecretKey == "" {
		slog.Error("❌ Missing testnet credentials")
		os.Exit(1)
	}

	client := deribit.NewClient(cfg)
	ctx := context.Background()

	// Far below market so it rests instead of filling.
	req := domain.OrderRequest{
		Symbol:        "BTC-PERPETUAL",
		Side:          domain.SideBuy,
		Price:         10000,
		Amount:        10,
		Type:          domain.TypeLimit,
		ClientOrderID: "ITEST_" + time.Now().Format("150405"),
	}

	slog.Info("STEP 1: Placing order...", "label", req.ClientOrderID, "price", req.Price)
	placed := client.PlaceOrder(ctx, req)
	if !placed.Success {
		slog.Error("❌ PlaceOrder failed", "error", placed.ErrorMessage, "status", placed.HTTPStatus)
		os.Exit(1)
	}
	slog.Info("✅ Order placed", "exchange_order_id", placed.ExchangeOrderID)

	time.Sleep(2 * time.Second)

	slog.Info("STEP 2: Checking venue state...")
	state, filled, err := client.GetOrderState(ctx, placed.ExchangeOrderID)
	if err != nil {
		slog.Error("❌ GetOrderState failed", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Venue state", "state", state, "filled", filled)

	slog.Info("STEP 3: Canceling order...")
	canceled := client.CancelOrder(ctx, placed.ExchangeOrderID)
	if !canceled.Success {
		slog.Error("❌ CancelOrder failed", "error", canceled.ErrorMessage)
		os.Exit(1)
	}
	slog.Info("✅ Order canceled")
	slog.Info("🎉 Integration test passed!")
}
