// Package apperr defines the error taxonomy shared by the escrow core and its callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindValidation              Kind = "validation"
	KindAuthorization           Kind = "authorization"
	KindStateConflict           Kind = "state_conflict"
	KindNotFound                Kind = "not_found"
	KindSettlementIndeterminate Kind = "settlement_indeterminate"
	KindInternal                Kind = "internal"
)

// Code is a stable, machine readable error code.
type Code string

const (
	CodeInvalidAmount           Code = "INVALID_AMOUNT"
	CodeInvalidDeadline         Code = "INVALID_DEADLINE"
	CodeInvalidText             Code = "INVALID_TEXT"
	CodeInvalidVerificationType Code = "INVALID_VERIFICATION_TYPE"
	CodeInvalidFailDestination  Code = "INVALID_FAIL_DESTINATION"
	CodeInvalidVerifier         Code = "INVALID_VERIFIER"
	CodeInvalidChoice           Code = "INVALID_CHOICE"
	CodeInvalidRequest          Code = "INVALID_REQUEST"

	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeNotOwner             Code = "NOT_OWNER"
	CodeUnauthorizedVerifier Code = "UNAUTHORIZED_VERIFIER"

	CodeOwnerHasOpenGoal  Code = "OWNER_HAS_OPEN_GOAL"
	CodeIllegalTransition Code = "ILLEGAL_TRANSITION"
	CodeNotOpenForVoting  Code = "NOT_OPEN_FOR_VOTING"
	CodeAlreadyFinalized  Code = "ALREADY_FINALIZED"
	CodeNotFinalized      Code = "NOT_FINALIZED"
	CodeAlreadyClaimed    Code = "ALREADY_CLAIMED"

	CodeGoalNotFound Code = "GOAL_NOT_FOUND"

	CodeIndeterminateSettlement Code = "INDETERMINATE_SETTLEMENT"
	CodeTransferRejected        Code = "TRANSFER_REJECTED"

	CodeInternal Code = "INTERNAL"
)

// Error is the typed error returned across the core's public operations.
type Error struct {
	Kind  Kind
	Code  Code
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code, so package
// level sentinels match errors that were re-created with a richer message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the same call may succeed if repeated unchanged.
func (e *Error) Retryable() bool {
	return e.Kind == KindSettlementIndeterminate
}

// New creates an Error with the given kind, code and message.
func New(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(kind Kind, code Code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Cause: cause}
}

// With returns a copy of sentinel carrying a more specific message.
func With(sentinel *Error, format string, args ...any) *Error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Msg: fmt.Sprintf(format, args...)}
}

// As returns (*Error, true) if err is or wraps an *Error.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for untyped errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeInternal for untyped errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if ae, ok := As(err); ok {
		return ae.Code
	}
	return CodeInternal
}
