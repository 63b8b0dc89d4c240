package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/repository"
)

// LedgerProvider records transfers in the application database. It is the
// default for development and for deployments that settle off-platform.
type LedgerProvider struct {
	transfers repository.TransferRepository
	now       func() time.Time
}

func NewLedgerProvider(transfers repository.TransferRepository) *LedgerProvider {
	return &LedgerProvider{transfers: transfers, now: time.Now}
}

func (p *LedgerProvider) Name() string {
	return ProviderLedger
}

func (p *LedgerProvider) Transfer(ctx context.Context, req Request) (*Result, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}
	if req.Recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrRejected)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, created, err := p.transfers.CreateOnce(&model.Transfer{
		ID:        uuid.New().String(),
		GoalID:    req.GoalID,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record transfer: %w", err)
	}
	if !created && (stored.Recipient != req.Recipient || stored.Amount != req.Amount) {
		return nil, fmt.Errorf("%w: goal %s already paid %d to %s", ErrRejected, req.GoalID, stored.Amount, stored.Recipient)
	}

	slog.Info("ledger transfer recorded", "goal_id", req.GoalID, "recipient", req.Recipient, "amount", req.Amount, "replayed", !created)
	return &Result{Provider: ProviderLedger, Ref: stored.ID, Replayed: !created}, nil
}
