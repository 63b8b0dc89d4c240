// Package transfer implements the value transfer primitive settlement pays out through.
package transfer

import (
	"context"
	"errors"
)

const (
	ProviderLedger = "ledger"
	ProviderStripe = "stripe"
)

// ErrRejected means the provider definitively refused the transfer and moved
// no value. Any other error leaves the outcome unknown.
var ErrRejected = errors.New("transfer rejected")

type Request struct {
	GoalID    string
	Recipient string
	Amount    int64
	// Attempt counts earlier transfers for the goal that were rejected. A
	// rejection moves no value, so a provider that caches responses per
	// idempotency key must not replay one across attempts.
	Attempt int
}

type Result struct {
	Provider string
	Ref      string
	// Replayed is set when an earlier call for the same goal already moved the value.
	Replayed bool
}

// Provider defines the interface that all transfer providers must implement
type Provider interface {
	// Transfer moves req.Amount to req.Recipient. Repeated calls for the same
	// GoalID move value at most once and return the original reference.
	Transfer(ctx context.Context, req Request) (*Result, error)

	// Name returns the provider name (e.g., "ledger", "stripe")
	Name() string
}
