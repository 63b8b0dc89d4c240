package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/keylock"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/observability"
	"github.com/templui/bullseye/internal/registry"
	"github.com/templui/bullseye/internal/repository"
	"github.com/templui/bullseye/internal/service/transfer"
)

const DefaultSettlementTimeout = 30 * time.Second

// SettlementAlerter is notified when a payout could not be confirmed.
type SettlementAlerter interface {
	SendSettlementAlert(ctx context.Context, goal *model.Goal, recipient string, cause error) error
}

// SettlementEngine pays out finalized goals exactly once. The goal only moves
// to claimed after the transfer provider confirms; any failure leaves it in
// its finalized status so the claim can be retried.
type SettlementEngine struct {
	goals       repository.GoalRepository
	settlements repository.SettlementRepository
	registry    *registry.Registry
	provider    transfer.Provider
	archive     *ArchiveService
	alerts      SettlementAlerter
	events      Publisher
	locks       *keylock.Locker
	timeout     time.Duration
	now         func() time.Time
}

func NewSettlementEngine(
	goals repository.GoalRepository,
	settlements repository.SettlementRepository,
	registry *registry.Registry,
	provider transfer.Provider,
	archive *ArchiveService,
	alerts SettlementAlerter,
	events Publisher,
	locks *keylock.Locker,
	timeout time.Duration,
	now func() time.Time,
) *SettlementEngine {
	if timeout <= 0 {
		timeout = DefaultSettlementTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &SettlementEngine{
		goals:       goals,
		settlements: settlements,
		registry:    registry,
		provider:    provider,
		archive:     archive,
		alerts:      alerts,
		events:      events,
		locks:       locks,
		timeout:     timeout,
		now:         now,
	}
}

// Recipient resolves where a finalized goal's value goes.
func (e *SettlementEngine) Recipient(goal *model.Goal) (string, model.RecipientKind, error) {
	switch goal.Status {
	case model.GoalStatusVerified:
		return goal.Owner, model.RecipientOwner, nil
	case model.GoalStatusFailed:
		if goal.FailDestination == model.FailDestinationTreasury {
			return e.registry.TreasuryAddress(), model.RecipientTreasury, nil
		}
		return e.registry.BurnAddress(), model.RecipientBurn, nil
	case model.GoalStatusClaimed:
		return "", "", ErrAlreadyClaimed
	default:
		return "", "", apperr.With(ErrNotFinalized, "goal is %s, verification has not finalized", goal.Status)
	}
}

// Settle transfers the goal's locked value to its resolved recipient and
// records the receipt. timeout bounds the transfer call; zero uses the
// engine default.
func (e *SettlementEngine) Settle(ctx context.Context, goalID, caller string, timeout time.Duration) (*model.SettlementReceipt, error) {
	unlock := e.locks.Lock(goalLockKey(goalID))
	defer unlock()

	goal, err := e.goals.ByID(goalID)
	if err != nil {
		return nil, fromRepo(err, "get goal")
	}
	recipient, kind, err := e.Recipient(goal)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = e.timeout
	}
	transferCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := e.provider.Transfer(transferCtx, transfer.Request{
		GoalID:    goal.ID,
		Recipient: recipient,
		Amount:    goal.LockedAmount,
		Attempt:   goal.TransferRejections,
	})
	observability.TransferDuration.WithLabelValues(e.provider.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, transfer.ErrRejected) {
			observability.Settlements.WithLabelValues(string(kind), "rejected").Inc()
			slog.Warn("transfer rejected", "goal_id", goal.ID, "recipient", recipient, "provider", e.provider.Name(), "attempt", goal.TransferRejections, "error", err)
			if err := e.goals.RecordRejection(goal.ID, e.now().UTC()); err != nil {
				slog.Error("failed to record transfer rejection", "goal_id", goal.ID, "error", err)
			}
			return nil, apperr.Wrap(apperr.KindSettlementIndeterminate, apperr.CodeTransferRejected,
				fmt.Sprintf("transfer to %s rejected by %s, retry the claim", recipient, e.provider.Name()), err)
		}
		return nil, e.indeterminate(ctx, goal, recipient, kind, err)
	}

	receipt := &model.SettlementReceipt{
		ID:            uuid.New().String(),
		GoalID:        goal.ID,
		Owner:         goal.Owner,
		Outcome:       goal.Status,
		Recipient:     recipient,
		RecipientKind: kind,
		Amount:        goal.LockedAmount,
		Provider:      result.Provider,
		TransferRef:   result.Ref,
		SettledBy:     caller,
		SettledAt:     e.now().UTC(),
	}
	if err := e.settlements.Record(receipt); err != nil {
		if errors.Is(err, repository.ErrAlreadySettled) {
			return nil, ErrAlreadyClaimed
		}
		// The transfer went through but is not recorded yet. Providers are
		// idempotent per goal, so a retried claim replays it and records.
		return nil, e.indeterminate(ctx, goal, recipient, kind, err)
	}

	observability.Settlements.WithLabelValues(string(kind), "settled").Inc()
	observability.SettledAmount.WithLabelValues(string(kind)).Add(float64(goal.LockedAmount))
	slog.Info("goal settled",
		"goal_id", goal.ID,
		"owner", goal.Owner,
		"outcome", receipt.Outcome,
		"recipient", recipient,
		"amount", receipt.Amount,
		"provider", receipt.Provider,
		"transfer_ref", receipt.TransferRef,
		"replayed", result.Replayed,
	)

	if err := e.archive.Archive(ctx, receipt); err != nil {
		slog.Error("failed to archive receipt", "goal_id", goal.ID, "error", err)
	}

	goal.Status = model.GoalStatusClaimed
	e.events.Publish(ctx, model.EventGoalClaimed, goal, map[string]any{
		"outcome":        receipt.Outcome,
		"recipient":      recipient,
		"recipient_kind": kind,
		"amount":         receipt.Amount,
	})
	return receipt, nil
}

func (e *SettlementEngine) indeterminate(ctx context.Context, goal *model.Goal, recipient string, kind model.RecipientKind, cause error) error {
	observability.Settlements.WithLabelValues(string(kind), "indeterminate").Inc()
	slog.Error("settlement indeterminate", "goal_id", goal.ID, "recipient", recipient, "provider", e.provider.Name(), "error", cause)

	if e.alerts != nil {
		alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := e.alerts.SendSettlementAlert(alertCtx, goal, recipient, cause); err != nil {
			slog.Error("failed to send settlement alert", "goal_id", goal.ID, "error", err)
		}
	}

	return apperr.Wrap(apperr.KindSettlementIndeterminate, apperr.CodeIndeterminateSettlement,
		fmt.Sprintf("transfer to %s not confirmed, retry the claim", recipient), cause)
}

// Receipt returns the settlement receipt of a claimed goal.
func (e *SettlementEngine) Receipt(goalID string) (*model.SettlementReceipt, error) {
	receipt, err := e.settlements.ByGoalID(goalID)
	if errors.Is(err, repository.ErrReceiptNotFound) {
		return nil, apperr.With(ErrGoalNotFound, "no settlement receipt for goal %s", goalID)
	}
	if err != nil {
		return nil, fromRepo(err, "get receipt")
	}
	return receipt, nil
}

// Receipts lists recent settlements, newest first.
func (e *SettlementEngine) Receipts(limit int) ([]*model.SettlementReceipt, error) {
	receipts, err := e.settlements.Receipts(limit)
	if err != nil {
		return nil, fromRepo(err, "list receipts")
	}
	return receipts, nil
}
