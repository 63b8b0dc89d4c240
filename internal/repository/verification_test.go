package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/templui/bullseye/internal/db/dbtest"
	"github.com/templui/bullseye/internal/model"
)

func vote(goalID, verifier string, choice model.VoteChoice, at time.Time) *model.Vote {
	return &model.Vote{GoalID: goalID, Verifier: verifier, Choice: choice, CastAt: at}
}

func TestApplyUpsertsVotes(t *testing.T) {
	database := dbtest.Open(t)
	goal := createGoal(t, database, "alice")
	repo := NewVerificationRepository(database)

	casts := []*model.Vote{
		vote(goal.ID, "v1", model.VoteYes, testNow),
		vote(goal.ID, "v1", model.VoteYes, testNow.Add(time.Minute)),
		vote(goal.ID, "v1", model.VoteNo, testNow.Add(2*time.Minute)),
	}
	for _, v := range casts {
		_, _, err := repo.Apply(goal.ID, func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
			return &LedgerChange{Vote: v, At: v.CastAt}, nil
		})
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
	}

	record, err := repo.ByGoalID(goal.ID)
	if err != nil {
		t.Fatalf("ByGoalID() error = %v", err)
	}
	if len(record.Votes) != 1 {
		t.Fatalf("len(Votes) = %d, want 1", len(record.Votes))
	}
	if record.Votes[0].Choice != model.VoteNo {
		t.Errorf("Choice = %q, want latest choice no", record.Votes[0].Choice)
	}
}

func TestApplyFinalizesAndWalksStatus(t *testing.T) {
	database := dbtest.Open(t)
	goal := createGoal(t, database, "alice")
	repo := NewVerificationRepository(database)

	gotGoal, record, err := repo.Apply(goal.ID, func(g *model.Goal, r *model.VerificationRecord) (*LedgerChange, error) {
		if g.Status != model.GoalStatusPending || len(g.Panel) != 3 {
			t.Errorf("callback saw goal %+v", g)
		}
		return &LedgerChange{
			Result: model.ResultFailure,
			Path:   []model.GoalStatus{model.GoalStatusActive, model.GoalStatusFailed},
			At:     testNow,
		}, nil
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if gotGoal.Status != model.GoalStatusFailed {
		t.Errorf("goal status = %q, want failed", gotGoal.Status)
	}
	if !record.Finalized || record.Result != model.ResultFailure || record.FinalizedAt == nil {
		t.Errorf("record = %+v, want finalized failure", record)
	}

	stored, err := NewGoalRepository(database).ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if stored.Status != model.GoalStatusFailed {
		t.Errorf("stored status = %q, want failed", stored.Status)
	}

	// A finalized record rejects further votes and finalizations.
	_, _, err = repo.Apply(goal.ID, func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
		return &LedgerChange{Vote: vote(goal.ID, "v2", model.VoteYes, testNow), At: testNow}, nil
	})
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Errorf("vote after finalization error = %v, want ErrAlreadyFinalized", err)
	}
}

func TestApplyRollsBackOnConflict(t *testing.T) {
	database := dbtest.Open(t)
	goal := createGoal(t, database, "alice")
	repo := NewVerificationRepository(database)

	// Pending cannot move straight to verified, so the whole change rolls back.
	_, _, err := repo.Apply(goal.ID, func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
		return &LedgerChange{
			Vote:   vote(goal.ID, "v1", model.VoteYes, testNow),
			Result: model.ResultSuccess,
			Path:   []model.GoalStatus{model.GoalStatusVerified},
			At:     testNow,
		}, nil
	})
	if !errors.Is(err, ErrIllegalTransition) || !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("Apply() error = %v, want ErrIllegalTransition", err)
	}

	record, err := repo.ByGoalID(goal.ID)
	if err != nil {
		t.Fatalf("ByGoalID() error = %v", err)
	}
	if record.Finalized || len(record.Votes) != 0 {
		t.Errorf("record = %+v, want untouched", record)
	}
	stored, err := NewGoalRepository(database).ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if stored.Status != model.GoalStatusPending {
		t.Errorf("Status = %q, want pending", stored.Status)
	}
}

func TestApplyWalksOnlyLegalEdges(t *testing.T) {
	tests := []struct {
		name    string
		path    []model.GoalStatus
		wantErr error
	}{
		{"pending through active to failed", []model.GoalStatus{model.GoalStatusActive, model.GoalStatusFailed}, nil},
		{"skips active", []model.GoalStatus{model.GoalStatusFailed}, ErrIllegalTransition},
		{"reverses", []model.GoalStatus{model.GoalStatusActive, model.GoalStatusPending}, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database := dbtest.Open(t)
			goal := createGoal(t, database, "alice")

			got, _, err := NewVerificationRepository(database).Apply(goal.ID, func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
				return &LedgerChange{Path: tt.path, At: testNow}, nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Apply() error = %v, want %v", err, tt.wantErr)
			}

			stored, err := NewGoalRepository(database).ByID(goal.ID)
			if err != nil {
				t.Fatalf("ByID() error = %v", err)
			}
			want := model.GoalStatusPending
			if tt.wantErr == nil {
				want = tt.path[len(tt.path)-1]
				if got.Status != want {
					t.Errorf("returned Status = %q, want %q", got.Status, want)
				}
			}
			if stored.Status != want {
				t.Errorf("stored Status = %q, want %q", stored.Status, want)
			}
		})
	}
}

func TestApplyCallbackError(t *testing.T) {
	database := dbtest.Open(t)
	goal := createGoal(t, database, "alice")
	repo := NewVerificationRepository(database)

	sentinel := errors.New("not open")
	_, _, err := repo.Apply(goal.ID, func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Apply() error = %v, want callback error", err)
	}

	_, _, err = repo.Apply("missing", func(*model.Goal, *model.VerificationRecord) (*LedgerChange, error) {
		t.Error("callback called for missing goal")
		return nil, nil
	})
	if !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("Apply(missing) error = %v, want ErrGoalNotFound", err)
	}
}
