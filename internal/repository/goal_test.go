package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/db/dbtest"
	"github.com/templui/bullseye/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestGoal(owner string) *model.Goal {
	return &model.Goal{
		ID:               uuid.New().String(),
		Owner:            owner,
		Title:            "Run a marathon",
		Description:      "Finish under five hours",
		LockedAmount:     1_000_000_000,
		Deadline:         testNow.Add(7 * 24 * time.Hour),
		VerificationType: model.VerificationCommunityPanel,
		RequiredVotes:    2,
		FailDestination:  model.FailDestinationBurn,
		Status:           model.GoalStatusPending,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
		Panel:            []string{"v1", "v2", "v3"},
	}
}

func createGoal(t *testing.T, database *sqlx.DB, owner string) *model.Goal {
	t.Helper()
	goal := newTestGoal(owner)
	if err := NewGoalRepository(database).Create(goal, 1); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return goal
}

func TestGoalCreateAndByID(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	goal := createGoal(t, database, "alice")

	got, err := repo.ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.Status != model.GoalStatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", got.Sequence)
	}
	if len(got.Panel) != 3 || got.Panel[0] != "v1" || got.Panel[2] != "v3" {
		t.Errorf("Panel = %v, want [v1 v2 v3]", got.Panel)
	}
	if !got.Deadline.Equal(goal.Deadline) {
		t.Errorf("Deadline = %v, want %v", got.Deadline, goal.Deadline)
	}

	record, err := NewVerificationRepository(database).ByGoalID(goal.ID)
	if err != nil {
		t.Fatalf("verification record missing: %v", err)
	}
	if record.Finalized || record.Result != model.ResultUndetermined || len(record.Votes) != 0 {
		t.Errorf("record = %+v, want empty undetermined record", record)
	}

	if _, err := repo.ByID("missing"); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("ByID(missing) error = %v, want ErrGoalNotFound", err)
	}
}

func TestGoalCreateOpenGoalLimit(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	first := createGoal(t, database, "alice")

	second := newTestGoal("alice")
	if err := repo.Create(second, 1); !errors.Is(err, ErrOwnerHasOpenGoal) {
		t.Fatalf("Create() error = %v, want ErrOwnerHasOpenGoal", err)
	}
	if _, err := repo.ByID(second.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Error("rejected goal was persisted")
	}

	// Another owner is unaffected.
	createGoal(t, database, "bob")

	// Once the first goal fails the owner may open another.
	steps := []model.GoalStatus{model.GoalStatusPending, model.GoalStatusActive, model.GoalStatusFailed}
	for i := 1; i < len(steps); i++ {
		if err := repo.Transition(first.ID, steps[i-1], steps[i], testNow); err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
	}
	if err := repo.Create(second, 1); err != nil {
		t.Fatalf("Create() after failure error = %v", err)
	}
	if second.Sequence != 2 {
		t.Errorf("Sequence = %d, want 2", second.Sequence)
	}
}

func TestGoalTransitionCompareAndSwap(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	goal := createGoal(t, database, "alice")

	tests := []struct {
		name    string
		from    model.GoalStatus
		to      model.GoalStatus
		wantErr error
	}{
		{"wrong from", model.GoalStatusActive, model.GoalStatusVerified, ErrStatusConflict},
		{"pending skips to verified", model.GoalStatusPending, model.GoalStatusVerified, ErrIllegalTransition},
		{"pending skips to claimed", model.GoalStatusPending, model.GoalStatusClaimed, ErrIllegalTransition},
		{"pending to active", model.GoalStatusPending, model.GoalStatusActive, nil},
		{"replayed", model.GoalStatusPending, model.GoalStatusActive, ErrStatusConflict},
		{"active back to pending", model.GoalStatusActive, model.GoalStatusPending, ErrIllegalTransition},
		{"active to verified", model.GoalStatusActive, model.GoalStatusVerified, nil},
		{"verified to failed", model.GoalStatusVerified, model.GoalStatusFailed, ErrIllegalTransition},
		{"verified to claimed", model.GoalStatusVerified, model.GoalStatusClaimed, nil},
		{"claimed back to pending", model.GoalStatusClaimed, model.GoalStatusPending, ErrIllegalTransition},
		{"claimed to verified", model.GoalStatusClaimed, model.GoalStatusVerified, ErrIllegalTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Transition(goal.ID, tt.from, tt.to, testNow)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := repo.Transition("missing", model.GoalStatusPending, model.GoalStatusActive, testNow); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("Transition(missing) error = %v, want ErrGoalNotFound", err)
	}

	got, err := repo.ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.Status != model.GoalStatusClaimed {
		t.Errorf("Status = %q, want claimed", got.Status)
	}
}

func TestGoalRecordRejection(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	goal := createGoal(t, database, "alice")

	if err := repo.RecordRejection(goal.ID, testNow); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("RecordRejection() on pending goal error = %v, want ErrStatusConflict", err)
	}

	for _, step := range [][2]model.GoalStatus{
		{model.GoalStatusPending, model.GoalStatusActive},
		{model.GoalStatusActive, model.GoalStatusFailed},
	} {
		if err := repo.Transition(goal.ID, step[0], step[1], testNow); err != nil {
			t.Fatalf("Transition() error = %v", err)
		}
	}
	for range 2 {
		if err := repo.RecordRejection(goal.ID, testNow); err != nil {
			t.Fatalf("RecordRejection() error = %v", err)
		}
	}

	got, err := repo.ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.TransferRejections != 2 {
		t.Errorf("TransferRejections = %d, want 2", got.TransferRejections)
	}

	if err := repo.RecordRejection("missing", testNow); !errors.Is(err, ErrGoalNotFound) {
		t.Errorf("RecordRejection(missing) error = %v, want ErrGoalNotFound", err)
	}
}

func TestGoalActivate(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	goal := createGoal(t, database, "alice")

	window := testNow.Add(24 * time.Hour)
	if err := repo.Activate(goal.ID, testNow, window); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if err := repo.Activate(goal.ID, testNow, window); !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("second Activate() error = %v, want ErrStatusConflict", err)
	}

	got, err := repo.ByID(goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.Status != model.GoalStatusActive {
		t.Errorf("Status = %q, want active", got.Status)
	}
	if got.SubmittedAt == nil || !got.SubmittedAt.Equal(testNow) {
		t.Errorf("SubmittedAt = %v, want %v", got.SubmittedAt, testNow)
	}
	if got.VerificationDeadline == nil || !got.VerificationDeadline.Equal(window) {
		t.Errorf("VerificationDeadline = %v, want %v", got.VerificationDeadline, window)
	}
}

func TestGoalListsAndStats(t *testing.T) {
	database := dbtest.Open(t)
	repo := NewGoalRepository(database)
	a := createGoal(t, database, "alice")
	createGoal(t, database, "bob")

	all, err := repo.Goals("")
	if err != nil {
		t.Fatalf("Goals() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(Goals()) = %d, want 2", len(all))
	}

	mine, err := repo.Goals("alice")
	if err != nil {
		t.Fatalf("Goals(alice) error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != a.ID || len(mine[0].Panel) != 3 {
		t.Fatalf("Goals(alice) = %+v", mine)
	}

	undecided, err := repo.Undecided()
	if err != nil {
		t.Fatalf("Undecided() error = %v", err)
	}
	if len(undecided) != 2 {
		t.Errorf("len(Undecided()) = %d, want 2", len(undecided))
	}

	stats, err := repo.Stats("alice")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := model.OwnerStats{Owner: "alice", TotalGoals: 1, OpenGoals: 1, EscrowedAmount: a.LockedAmount}
	if *stats != want {
		t.Errorf("Stats() = %+v, want %+v", *stats, want)
	}

	empty, err := repo.Stats("nobody")
	if err != nil {
		t.Fatalf("Stats(nobody) error = %v", err)
	}
	if empty.TotalGoals != 0 || empty.EscrowedAmount != 0 {
		t.Errorf("Stats(nobody) = %+v, want zero", *empty)
	}
}
