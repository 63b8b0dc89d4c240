package transfer

import (
	"fmt"
	"log/slog"

	"github.com/templui/bullseye/internal/config"
	"github.com/templui/bullseye/internal/repository"
)

// NewProvider creates a transfer provider based on configuration
func NewProvider(cfg *config.Config, transfers repository.TransferRepository) (Provider, error) {
	provider := cfg.TransferProvider

	slog.Info("initializing transfer provider", "provider", provider)

	switch provider {
	case ProviderLedger:
		return NewLedgerProvider(transfers), nil

	case ProviderStripe:
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required when using Stripe provider")
		}
		return NewStripeProvider(cfg.StripeSecretKey, cfg.StripeCurrency), nil

	default:
		return nil, fmt.Errorf("unknown transfer provider: %s (supported: ledger, stripe)", provider)
	}
}
