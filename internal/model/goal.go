package model

import (
	"time"
)

type GoalStatus string

const (
	GoalStatusPending  GoalStatus = "pending"
	GoalStatusActive   GoalStatus = "active"
	GoalStatusVerified GoalStatus = "verified"
	GoalStatusFailed   GoalStatus = "failed"
	GoalStatusClaimed  GoalStatus = "claimed"
)

// Open reports whether the goal still counts against its owner's open-goal limit.
func (s GoalStatus) Open() bool {
	return s != GoalStatusClaimed && s != GoalStatusFailed
}

// Finalized reports whether verification has produced an outcome for the goal.
func (s GoalStatus) Finalized() bool {
	return s == GoalStatusVerified || s == GoalStatusFailed || s == GoalStatusClaimed
}

// transitions lists the only legal status edges. Nothing skips a state and
// nothing moves backwards.
var transitions = map[GoalStatus][]GoalStatus{
	GoalStatusPending:  {GoalStatusActive},
	GoalStatusActive:   {GoalStatusVerified, GoalStatusFailed},
	GoalStatusVerified: {GoalStatusClaimed},
	GoalStatusFailed:   {GoalStatusClaimed},
}

// CanTransition reports whether a goal may move directly from s to next.
func (s GoalStatus) CanTransition(next GoalStatus) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type VerificationType string

const (
	VerificationCommunityPanel VerificationType = "community_panel"
	VerificationSingleVerifier VerificationType = "single_verifier"
)

func (t VerificationType) Valid() bool {
	return t == VerificationCommunityPanel || t == VerificationSingleVerifier
}

type FailDestination string

const (
	FailDestinationBurn     FailDestination = "burn"
	FailDestinationTreasury FailDestination = "treasury"
)

func (d FailDestination) Valid() bool {
	return d == FailDestinationBurn || d == FailDestinationTreasury
}

type Goal struct {
	ID                   string           `db:"id" json:"id"`
	Owner                string           `db:"owner" json:"owner"`
	Sequence             int              `db:"sequence" json:"sequence"`
	Title                string           `db:"title" json:"title"`
	Description          string           `db:"description" json:"description"`
	LockedAmount         int64            `db:"locked_amount" json:"locked_amount"`
	Deadline             time.Time        `db:"deadline" json:"deadline"`
	VerificationType     VerificationType `db:"verification_type" json:"verification_type"`
	RequiredVotes        int              `db:"required_votes" json:"required_votes"`
	FailDestination      FailDestination  `db:"fail_destination" json:"fail_destination"`
	Status               GoalStatus       `db:"status" json:"status"`
	// TransferRejections counts payouts the transfer provider refused outright.
	TransferRejections   int              `db:"transfer_rejections" json:"-"`
	SubmittedAt          *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	VerificationDeadline *time.Time       `db:"verification_deadline" json:"verification_deadline,omitempty"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`

	// Panel is the verifier set snapshotted for this goal at creation.
	Panel []string `db:"-" json:"panel"`
}

// HasVerifier reports whether identity sits on the goal's panel.
func (g *Goal) HasVerifier(identity string) bool {
	for _, v := range g.Panel {
		if v == identity {
			return true
		}
	}
	return false
}

// ExpiresAt returns the instant after which the goal fails if still undecided.
// Active goals use the verification deadline recorded at submission; pending
// goals use their own deadline.
func (g *Goal) ExpiresAt() time.Time {
	if g.Status == GoalStatusActive && g.VerificationDeadline != nil {
		return *g.VerificationDeadline
	}
	return g.Deadline
}

// GoalSpec is the caller-supplied part of a new goal.
type GoalSpec struct {
	Title            string           `json:"title"`
	Description      string           `json:"description"`
	LockedAmount     int64            `json:"locked_amount"`
	Deadline         time.Time        `json:"deadline"`
	VerificationType VerificationType `json:"verification_type"`
	FailDestination  FailDestination  `json:"fail_destination"`
	// Verifier names the chosen verifier for single-verifier goals.
	Verifier string `json:"verifier,omitempty"`
}

// OwnerStats summarises an owner's goals.
type OwnerStats struct {
	Owner          string `db:"owner" json:"owner"`
	TotalGoals     int    `db:"total_goals" json:"total_goals"`
	OpenGoals      int    `db:"open_goals" json:"open_goals"`
	Succeeded      int    `db:"succeeded" json:"succeeded"`
	Failed         int    `db:"failed" json:"failed"`
	Settled        int    `db:"settled" json:"settled"`
	EscrowedAmount int64  `db:"escrowed_amount" json:"escrowed_amount"`
}
