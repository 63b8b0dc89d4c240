package transfer

import (
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v81"
)

func TestIdempotencyKey(t *testing.T) {
	tests := []struct {
		attempt int
		want    string
	}{
		{0, "settle-g1"},
		{1, "settle-g1-1"},
		{3, "settle-g1-3"},
	}

	for _, tt := range tests {
		got := idempotencyKey(Request{GoalID: "g1", Recipient: "acct_1", Amount: 100, Attempt: tt.attempt})
		if got != tt.want {
			t.Errorf("idempotencyKey(attempt %d) = %q, want %q", tt.attempt, got, tt.want)
		}
	}
}

func TestIsDefinitive(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusConflict, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		if got := isDefinitive(&stripe.Error{HTTPStatusCode: tt.status}); got != tt.want {
			t.Errorf("isDefinitive(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
