package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	stripetransfer "github.com/stripe/stripe-go/v81/transfer"
)

// StripeProvider pays out through Stripe Connect transfers. Recipients are
// connected account ids; amounts are in the currency's minor unit.
type StripeProvider struct {
	currency string
}

func NewStripeProvider(secretKey, currency string) *StripeProvider {
	// Set Stripe API key
	stripe.Key = secretKey

	slog.Info("stripe transfer provider initialized", "currency", currency)

	return &StripeProvider{currency: currency}
}

func (s *StripeProvider) Name() string {
	return ProviderStripe
}

func (s *StripeProvider) Transfer(ctx context.Context, req Request) (*Result, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(s.currency),
		Destination:   stripe.String(req.Recipient),
		TransferGroup: stripe.String(req.GoalID),
	}
	params.Context = ctx
	// Stripe replays the original response for a reused key, so a retried
	// settlement cannot pay twice.
	params.SetIdempotencyKey(idempotencyKey(req))
	params.AddMetadata("goal_id", req.GoalID)

	tr, err := stripetransfer.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && isDefinitive(stripeErr) {
			return nil, fmt.Errorf("%w: %s", ErrRejected, stripeErr.Msg)
		}
		return nil, fmt.Errorf("stripe transfer failed: %w", err)
	}

	slog.Info("stripe transfer created", "goal_id", req.GoalID, "transfer_id", tr.ID, "amount", req.Amount)
	return &Result{Provider: ProviderStripe, Ref: tr.ID}, nil
}

// idempotencyKey is stable across retries of one attempt. Stripe caches
// rejections under a key for 24 hours, so each rejected attempt moves the
// goal on to a fresh key.
func idempotencyKey(req Request) string {
	if req.Attempt == 0 {
		return "settle-" + req.GoalID
	}
	return fmt.Sprintf("settle-%s-%d", req.GoalID, req.Attempt)
}

// isDefinitive reports whether Stripe refused the request outright. Server
// errors and conflicts leave the outcome unknown.
func isDefinitive(err *stripe.Error) bool {
	switch err.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusPaymentRequired, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
