package execution

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pulse_exec/internal/domain"
	"pulse_exec/internal/infra"
	"pulse_exec/internal/infra/deribit"
)

// Mode represents the trading execution mode.
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeMock  Mode = "MOCK"
	ModeLive  Mode = "LIVE"
)

// defaultPaperMark seeds the paper venue's synthetic orderbook.
const defaultPaperMark = 50000.0

// GatewayFactory creates gateway instances based on the configured mode.
type GatewayFactory struct {
	config *infra.Config
}

// NewGatewayFactory creates a new factory.
func NewGatewayFactory(cfg *infra.Config) *GatewayFactory {
	return &GatewayFactory{config: cfg}
}

// CreateGateway returns the appropriate Gateway implementation.
func (f *GatewayFactory) CreateGateway() (domain.Gateway, error) {
	mode := Mode(strings.ToUpper(f.config.Trading.Mode))

	slog.Info("Initializing execution gateway", "mode", mode)

	switch mode {
	case ModePaper:
		return NewPaperGateway(defaultPaperMark), nil

	case ModeMock:
		return NewMockGateway(), nil

	case ModeLive:
		// SAFETY LATCH: refuse to touch real money without explicit consent.
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, fmt.Errorf("live trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
		}

		slog.Warn("🚨 Connecting to Deribit LIVE 🚨",
			slog.String("rest_url", f.config.API.Deribit.RestURL))
		return deribit.NewClient(f.config), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", f.config.Trading.Mode)
	}
}
