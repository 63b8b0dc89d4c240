package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/keylock"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/observability"
	"github.com/templui/bullseye/internal/repository"
)

const (
	causeVotes    = "votes"
	causeDeadline = "deadline"
)

// Verification is a goal's vote record together with its current tally.
type Verification struct {
	Record *model.VerificationRecord `json:"record"`
	Tally  model.Tally               `json:"tally"`
}

// VerificationLedger accepts verifier votes and derives each goal's outcome.
// All writes for one goal happen under that goal's lock and inside a single
// transaction, so only one caller ever observes that it caused finalization.
type VerificationLedger struct {
	goals   repository.GoalRepository
	records repository.VerificationRepository
	locks   *keylock.Locker
	events  Publisher
	now     func() time.Time
}

func NewVerificationLedger(
	goals repository.GoalRepository,
	records repository.VerificationRepository,
	locks *keylock.Locker,
	events Publisher,
	now func() time.Time,
) *VerificationLedger {
	if now == nil {
		now = time.Now
	}
	return &VerificationLedger{
		goals:   goals,
		records: records,
		locks:   locks,
		events:  events,
		now:     now,
	}
}

func goalLockKey(goalID string) string {
	return "goal:" + goalID
}

// expiryChange returns the change that fails an undecided goal whose deadline
// has passed, or nil if the goal is still within its deadline.
func expiryChange(goal *model.Goal, now time.Time) *repository.LedgerChange {
	if !now.After(goal.ExpiresAt()) {
		return nil
	}
	var path []model.GoalStatus
	switch goal.Status {
	case model.GoalStatusPending:
		path = []model.GoalStatus{model.GoalStatusActive, model.GoalStatusFailed}
	case model.GoalStatusActive:
		path = []model.GoalStatus{model.GoalStatusFailed}
	default:
		return nil
	}
	return &repository.LedgerChange{Result: model.ResultFailure, Path: path, At: now}
}

// tallyWith counts votes as they would stand after v replaced the verifier's
// earlier vote, if any.
func tallyWith(votes []model.Vote, v model.Vote) (yes, no int) {
	next := model.VerificationRecord{Votes: []model.Vote{v}}
	for _, existing := range votes {
		if existing.Verifier != v.Verifier {
			next.Votes = append(next.Votes, existing)
		}
	}
	return next.Tally()
}

func newTally(goal *model.Goal, record *model.VerificationRecord) model.Tally {
	yes, no := record.Tally()
	return model.Tally{Yes: yes, No: no, RequiredVotes: goal.RequiredVotes, PanelSize: len(goal.Panel)}
}

// CastVote records a verifier's choice on an active goal and finalizes the
// record once the outcome is decided. Re-votes replace the earlier choice.
func (l *VerificationLedger) CastVote(ctx context.Context, goalID, verifier string, choice model.VoteChoice) (*model.VoteOutcome, error) {
	if verifier == "" {
		return nil, ErrUnauthenticated
	}
	if !choice.Valid() {
		return nil, ErrInvalidChoice
	}

	unlock := l.locks.Lock(goalLockKey(goalID))
	defer unlock()

	now := l.now().UTC()
	var rejected error
	var expired, caused bool

	goal, record, err := l.records.Apply(goalID, func(goal *model.Goal, record *model.VerificationRecord) (*repository.LedgerChange, error) {
		// Expiry is settled before the vote is considered; a late vote never counts.
		if change := expiryChange(goal, now); change != nil {
			expired = true
			if goal.Status == model.GoalStatusPending {
				rejected = ErrNotOpenForVoting
			} else {
				rejected = apperr.With(ErrAlreadyFinalized, "verification window closed at %s", goal.ExpiresAt().Format(time.RFC3339))
			}
			return change, nil
		}

		switch goal.Status {
		case model.GoalStatusActive:
		case model.GoalStatusPending:
			return nil, ErrNotOpenForVoting
		default:
			return nil, ErrAlreadyFinalized
		}
		if !goal.HasVerifier(verifier) {
			return nil, ErrUnauthorizedVerifier
		}
		if record.Finalized {
			return nil, ErrAlreadyFinalized
		}

		vote := model.Vote{GoalID: goal.ID, Verifier: verifier, Choice: choice, CastAt: now}
		change := &repository.LedgerChange{Vote: &vote, At: now}

		yes, no := tallyWith(record.Votes, vote)
		switch {
		case yes >= goal.RequiredVotes:
			change.Result = model.ResultSuccess
			change.Path = []model.GoalStatus{model.GoalStatusVerified}
		case no > len(goal.Panel)-goal.RequiredVotes:
			change.Result = model.ResultFailure
			change.Path = []model.GoalStatus{model.GoalStatusFailed}
		}
		caused = change.Result != ""
		return change, nil
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorizedVerifier) {
			slog.Warn("vote rejected", "goal_id", goalID, "verifier", verifier, "error", err)
		}
		return nil, fromRepo(err, "cast vote")
	}

	if expired {
		l.finalized(ctx, goal, record, causeDeadline)
		return nil, rejected
	}

	observability.VotesCast.WithLabelValues(string(choice)).Inc()
	slog.Info("vote cast", "goal_id", goal.ID, "verifier", verifier, "choice", choice)
	if caused {
		l.finalized(ctx, goal, record, causeVotes)
	}

	return &model.VoteOutcome{
		GoalID:             goal.ID,
		Tally:              newTally(goal, record),
		Finalized:          record.Finalized,
		Result:             record.Result,
		GoalStatus:         goal.Status,
		CausedFinalization: caused,
	}, nil
}

func (l *VerificationLedger) finalized(ctx context.Context, goal *model.Goal, record *model.VerificationRecord, cause string) {
	observability.Finalizations.WithLabelValues(string(record.Result), cause).Inc()

	tally := newTally(goal, record)
	data := map[string]any{
		"cause":          cause,
		"yes":            tally.Yes,
		"no":             tally.No,
		"required_votes": tally.RequiredVotes,
	}
	eventType := model.EventGoalFailed
	if record.Result == model.ResultSuccess {
		eventType = model.EventGoalVerified
	}
	slog.Info("verification finalized", "goal_id", goal.ID, "owner", goal.Owner, "result", record.Result, "cause", cause)
	l.events.Publish(ctx, eventType, goal, data)
}

// Refresh returns the goal after applying lazy expiry: an undecided goal past
// its deadline is failed before it is returned.
func (l *VerificationLedger) Refresh(ctx context.Context, goalID string) (*model.Goal, error) {
	goal, err := l.goals.ByID(goalID)
	if err != nil {
		return nil, fromRepo(err, "get goal")
	}
	if expiryChange(goal, l.now().UTC()) == nil {
		return goal, nil
	}

	unlock := l.locks.Lock(goalLockKey(goalID))
	defer unlock()

	now := l.now().UTC()
	var expired bool
	goal, record, err := l.records.Apply(goalID, func(goal *model.Goal, _ *model.VerificationRecord) (*repository.LedgerChange, error) {
		change := expiryChange(goal, now)
		expired = change != nil
		return change, nil
	})
	if err != nil {
		return nil, fromRepo(err, "expire goal")
	}
	if expired {
		l.finalized(ctx, goal, record, causeDeadline)
	}
	return goal, nil
}

// Verification returns the goal's vote record and tally.
func (l *VerificationLedger) Verification(ctx context.Context, goalID string) (*Verification, error) {
	goal, err := l.Refresh(ctx, goalID)
	if err != nil {
		return nil, err
	}
	record, err := l.records.ByGoalID(goalID)
	if err != nil {
		return nil, fromRepo(err, "get verification")
	}
	return &Verification{Record: record, Tally: newTally(goal, record)}, nil
}

// Expire sweeps every undecided goal through lazy expiry and returns the goals
// that failed.
func (l *VerificationLedger) Expire(ctx context.Context) ([]*model.Goal, error) {
	goals, err := l.goals.Undecided()
	if err != nil {
		return nil, fromRepo(err, "list undecided goals")
	}

	var failed []*model.Goal
	for _, g := range goals {
		if expiryChange(g, l.now().UTC()) == nil {
			continue
		}
		goal, err := l.Refresh(ctx, g.ID)
		if err != nil {
			return failed, err
		}
		if goal.Status == model.GoalStatusFailed {
			failed = append(failed, goal)
		}
	}
	return failed, nil
}
