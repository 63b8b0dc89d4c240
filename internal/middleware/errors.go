package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError writes the same error envelope the API handlers use.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":      code,
			"kind":      "request",
			"message":   message,
			"retryable": status == http.StatusTooManyRequests,
		},
	})
}
