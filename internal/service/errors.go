package service

import (
	"errors"
	"fmt"

	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/repository"
)

var (
	ErrInvalidAmount           = apperr.New(apperr.KindValidation, apperr.CodeInvalidAmount, "locked amount out of bounds")
	ErrInvalidDeadline         = apperr.New(apperr.KindValidation, apperr.CodeInvalidDeadline, "deadline must be in the future")
	ErrInvalidText             = apperr.New(apperr.KindValidation, apperr.CodeInvalidText, "title or description has invalid length")
	ErrInvalidVerificationType = apperr.New(apperr.KindValidation, apperr.CodeInvalidVerificationType, "unknown verification type")
	ErrInvalidFailDestination  = apperr.New(apperr.KindValidation, apperr.CodeInvalidFailDestination, "unknown fail destination")
	ErrInvalidVerifier         = apperr.New(apperr.KindValidation, apperr.CodeInvalidVerifier, "verifier is not in the registry pool")
	ErrInvalidChoice           = apperr.New(apperr.KindValidation, apperr.CodeInvalidChoice, "vote choice must be yes or no")

	ErrUnauthenticated      = apperr.New(apperr.KindAuthorization, apperr.CodeUnauthenticated, "caller identity required")
	ErrNotOwner             = apperr.New(apperr.KindAuthorization, apperr.CodeNotOwner, "caller is not the goal owner")
	ErrUnauthorizedVerifier = apperr.New(apperr.KindAuthorization, apperr.CodeUnauthorizedVerifier, "caller is not on this goal's panel")

	ErrOwnerHasOpenGoal  = apperr.New(apperr.KindStateConflict, apperr.CodeOwnerHasOpenGoal, "owner already has an open goal")
	ErrIllegalTransition = apperr.New(apperr.KindStateConflict, apperr.CodeIllegalTransition, "goal is not in the expected status")
	ErrNotOpenForVoting  = apperr.New(apperr.KindStateConflict, apperr.CodeNotOpenForVoting, "goal is not open for voting")
	ErrAlreadyFinalized  = apperr.New(apperr.KindStateConflict, apperr.CodeAlreadyFinalized, "verification already finalized")
	ErrNotFinalized      = apperr.New(apperr.KindStateConflict, apperr.CodeNotFinalized, "goal has no verification outcome yet")
	ErrAlreadyClaimed    = apperr.New(apperr.KindStateConflict, apperr.CodeAlreadyClaimed, "goal already claimed")

	ErrGoalNotFound = apperr.New(apperr.KindNotFound, apperr.CodeGoalNotFound, "goal not found")

	ErrIndeterminateSettlement = apperr.New(apperr.KindSettlementIndeterminate, apperr.CodeIndeterminateSettlement, "transfer not confirmed, retry the claim")
	ErrTransferRejected        = apperr.New(apperr.KindSettlementIndeterminate, apperr.CodeTransferRejected, "transfer rejected, retry the claim")
)

// fromRepo maps storage sentinels onto the public taxonomy. Unknown errors are
// wrapped as internal failures.
func fromRepo(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrGoalNotFound), errors.Is(err, repository.ErrVerificationNotFound):
		return ErrGoalNotFound
	case errors.Is(err, repository.ErrOwnerHasOpenGoal):
		return ErrOwnerHasOpenGoal
	case errors.Is(err, repository.ErrStatusConflict):
		return ErrIllegalTransition
	case errors.Is(err, repository.ErrAlreadyFinalized):
		return ErrAlreadyFinalized
	case errors.Is(err, repository.ErrAlreadySettled):
		return ErrAlreadyClaimed
	}
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, fmt.Sprintf("failed to %s", op), err)
}
