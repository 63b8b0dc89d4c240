package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/service"
)

const maxBodyBytes = 64 << 10

var errInvalidRequest = apperr.New(apperr.KindValidation, apperr.CodeInvalidRequest, "malformed request body")

type errorBody struct {
	Code      apperr.Code `json:"code"`
	Kind      apperr.Kind `json:"kind"`
	Message   string      `json:"message"`
	Retryable bool        `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuthorization:
		if errors.Is(err, service.ErrUnauthenticated) {
			return http.StatusUnauthorized
		}
		return http.StatusForbidden
	case apperr.KindStateConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSettlementIndeterminate:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	body := errorBody{Code: apperr.CodeInternal, Kind: apperr.KindInternal, Message: "internal error"}
	if ae, ok := apperr.As(err); ok && ae.Kind != apperr.KindInternal {
		body = errorBody{Code: ae.Code, Kind: ae.Kind, Message: ae.Msg, Retryable: ae.Retryable()}
	}

	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if body.Retryable {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(errInvalidRequest.Kind, errInvalidRequest.Code, "malformed request body: "+err.Error(), err)
	}
	return nil
}
