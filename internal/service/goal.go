package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/templui/bullseye/internal/apperr"
	"github.com/templui/bullseye/internal/keylock"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/observability"
	"github.com/templui/bullseye/internal/registry"
	"github.com/templui/bullseye/internal/repository"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 500
)

// VoteLink is the URL a panel member follows to vote on a submitted goal.
type VoteLink struct {
	Verifier string `json:"verifier"`
	URL      string `json:"url"`
}

// GoalService is the entry point for goal owners and verifiers. It checks the
// caller's role and delegates to the ledger and settlement engine.
type GoalService struct {
	goals      repository.GoalRepository
	registry   *registry.Registry
	ledger     *VerificationLedger
	settlement *SettlementEngine
	events     Publisher
	locks      *keylock.Locker
	appURL     string
	now        func() time.Time
}

func NewGoalService(
	goals repository.GoalRepository,
	registry *registry.Registry,
	ledger *VerificationLedger,
	settlement *SettlementEngine,
	events Publisher,
	locks *keylock.Locker,
	appURL string,
	now func() time.Time,
) *GoalService {
	if now == nil {
		now = time.Now
	}
	return &GoalService{
		goals:      goals,
		registry:   registry,
		ledger:     ledger,
		settlement: settlement,
		events:     events,
		locks:      locks,
		appURL:     strings.TrimSuffix(appURL, "/"),
		now:        now,
	}
}

func (s *GoalService) Registry() *registry.Registry {
	return s.registry
}

func cleanText(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func (s *GoalService) validate(spec model.GoalSpec, now time.Time) (title, description string, panel []string, err error) {
	title = cleanText(spec.Title)
	description = cleanText(spec.Description)
	if n := utf8.RuneCountInString(title); n == 0 || n > MaxTitleLength {
		return "", "", nil, apperr.With(ErrInvalidText, "title must be 1 to %d characters", MaxTitleLength)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return "", "", nil, apperr.With(ErrInvalidText, "description must be at most %d characters", MaxDescriptionLength)
	}

	policy := s.registry.Policy()
	if spec.LockedAmount < policy.MinLock || spec.LockedAmount > policy.MaxLock {
		return "", "", nil, apperr.With(ErrInvalidAmount, "locked amount must be between %s and %s",
			s.registry.FormatAmount(policy.MinLock), s.registry.FormatAmount(policy.MaxLock))
	}
	if !spec.Deadline.After(now) {
		return "", "", nil, ErrInvalidDeadline
	}
	if !spec.VerificationType.Valid() {
		return "", "", nil, ErrInvalidVerificationType
	}
	if !spec.FailDestination.Valid() {
		return "", "", nil, ErrInvalidFailDestination
	}

	panel, err = s.registry.AssignPanel(spec.VerificationType, spec.Verifier)
	if err != nil {
		return "", "", nil, apperr.With(ErrInvalidVerifier, "%s", err.Error())
	}
	return title, description, panel, nil
}

// RequestGoal locks value against a new goal for owner. The required vote
// threshold and the verifier panel are fixed here and never recomputed.
func (s *GoalService) RequestGoal(ctx context.Context, owner string, spec model.GoalSpec) (*model.Goal, error) {
	if owner == "" {
		return nil, ErrUnauthenticated
	}

	now := s.now().UTC()
	title, description, panel, err := s.validate(spec, now)
	if err != nil {
		return nil, err
	}
	required, _ := s.registry.RequiredVotes(spec.VerificationType)

	// Expired goals no longer count as open once they are failed.
	if _, err := s.Goals(ctx, owner); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock("owner:" + owner)
	defer unlock()

	goal := &model.Goal{
		ID:               uuid.New().String(),
		Owner:            owner,
		Title:            title,
		Description:      description,
		LockedAmount:     spec.LockedAmount,
		Deadline:         spec.Deadline.UTC(),
		VerificationType: spec.VerificationType,
		RequiredVotes:    required,
		FailDestination:  spec.FailDestination,
		Status:           model.GoalStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		Panel:            panel,
	}
	if err := s.goals.Create(goal, s.registry.Policy().MaxOpenGoalsPerOwner); err != nil {
		return nil, fromRepo(err, "create goal")
	}

	observability.GoalsCreated.Inc()
	slog.Info("goal created", "goal_id", goal.ID, "owner", owner, "sequence", goal.Sequence, "locked_amount", goal.LockedAmount, "verification_type", goal.VerificationType)
	s.events.Publish(ctx, model.EventGoalCreated, goal, map[string]any{
		"title":             goal.Title,
		"locked_amount":     goal.LockedAmount,
		"deadline":          goal.Deadline,
		"verification_type": goal.VerificationType,
		"required_votes":    goal.RequiredVotes,
		"fail_destination":  goal.FailDestination,
	})
	return goal, nil
}

// SubmitForVerification opens voting on a pending goal. Voting closes at the
// later of the goal's deadline and the end of the verification window.
func (s *GoalService) SubmitForVerification(ctx context.Context, goalID, caller string) (*model.Goal, []VoteLink, error) {
	if caller == "" {
		return nil, nil, ErrUnauthenticated
	}

	goal, err := s.ledger.Refresh(ctx, goalID)
	if err != nil {
		return nil, nil, err
	}
	if goal.Owner != caller {
		return nil, nil, ErrNotOwner
	}
	if goal.Status != model.GoalStatusPending {
		return nil, nil, apperr.With(ErrIllegalTransition, "goal is %s, only pending goals can be submitted", goal.Status)
	}

	now := s.now().UTC()
	closes := now.Add(s.registry.Policy().VerificationWindow)
	if goal.Deadline.After(closes) {
		closes = goal.Deadline
	}

	unlock := s.locks.Lock(goalLockKey(goalID))
	err = s.goals.Activate(goalID, now, closes)
	unlock()
	if err != nil {
		return nil, nil, fromRepo(err, "submit goal")
	}

	goal.Status = model.GoalStatusActive
	goal.SubmittedAt = &now
	goal.VerificationDeadline = &closes
	goal.UpdatedAt = now

	slog.Info("goal submitted for verification", "goal_id", goal.ID, "owner", goal.Owner, "verification_deadline", closes)
	s.events.Publish(ctx, model.EventVerificationRequested, goal, map[string]any{
		"verification_deadline": closes,
		"panel":                 goal.Panel,
		"required_votes":        goal.RequiredVotes,
	})
	return goal, s.voteLinks(goal), nil
}

func (s *GoalService) voteLinks(goal *model.Goal) []VoteLink {
	links := make([]VoteLink, 0, len(goal.Panel))
	for _, v := range goal.Panel {
		links = append(links, VoteLink{
			Verifier: v,
			URL:      fmt.Sprintf("%s/api/goals/%s/votes?verifier=%s", s.appURL, goal.ID, url.QueryEscape(v)),
		})
	}
	return links
}

func (s *GoalService) Vote(ctx context.Context, goalID, verifier string, choice model.VoteChoice) (*model.VoteOutcome, error) {
	return s.ledger.CastVote(ctx, goalID, verifier, choice)
}

// Claim settles a finalized goal on behalf of its owner.
func (s *GoalService) Claim(ctx context.Context, goalID, caller string, timeout time.Duration) (*model.SettlementReceipt, error) {
	if caller == "" {
		return nil, ErrUnauthenticated
	}
	goal, err := s.ledger.Refresh(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal.Owner != caller {
		return nil, ErrNotOwner
	}
	return s.settlement.Settle(ctx, goalID, caller, timeout)
}

// Settle settles a finalized goal without an owner check. It is reserved for
// operators so forfeited value is never stranded by an absent owner.
func (s *GoalService) Settle(ctx context.Context, goalID, operator string, timeout time.Duration) (*model.SettlementReceipt, error) {
	if _, err := s.ledger.Refresh(ctx, goalID); err != nil {
		return nil, err
	}
	return s.settlement.Settle(ctx, goalID, operator, timeout)
}

func (s *GoalService) Goal(ctx context.Context, goalID string) (*model.Goal, error) {
	return s.ledger.Refresh(ctx, goalID)
}

// Goals lists goals newest first, applying lazy expiry to each. An empty
// owner lists every goal.
func (s *GoalService) Goals(ctx context.Context, owner string) ([]*model.Goal, error) {
	goals, err := s.goals.Goals(owner)
	if err != nil {
		return nil, fromRepo(err, "list goals")
	}

	now := s.now().UTC()
	for i, g := range goals {
		if expiryChange(g, now) == nil {
			continue
		}
		if goals[i], err = s.ledger.Refresh(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

func (s *GoalService) Verification(ctx context.Context, goalID string) (*Verification, error) {
	return s.ledger.Verification(ctx, goalID)
}

func (s *GoalService) Stats(ctx context.Context, owner string) (*model.OwnerStats, error) {
	if _, err := s.Goals(ctx, owner); err != nil {
		return nil, err
	}
	stats, err := s.goals.Stats(owner)
	if err != nil {
		return nil, fromRepo(err, "get owner stats")
	}
	return stats, nil
}

func (s *GoalService) Receipt(goalID string) (*model.SettlementReceipt, error) {
	return s.settlement.Receipt(goalID)
}

// Expire fails every undecided goal whose deadline has passed.
func (s *GoalService) Expire(ctx context.Context) ([]*model.Goal, error) {
	return s.ledger.Expire(ctx)
}
