package model

import (
	"time"
)

type VoteChoice string

const (
	VoteYes VoteChoice = "yes"
	VoteNo  VoteChoice = "no"
)

func (c VoteChoice) Valid() bool {
	return c == VoteYes || c == VoteNo
}

type VerificationResult string

const (
	ResultUndetermined VerificationResult = "undetermined"
	ResultSuccess      VerificationResult = "success"
	ResultFailure      VerificationResult = "failure"
)

type Vote struct {
	GoalID   string     `db:"goal_id" json:"-"`
	Verifier string     `db:"verifier" json:"verifier"`
	Choice   VoteChoice `db:"choice" json:"choice"`
	CastAt   time.Time  `db:"cast_at" json:"cast_at"`
}

// VerificationRecord is the per-goal vote ledger. Exactly one exists per goal.
type VerificationRecord struct {
	GoalID      string             `db:"goal_id" json:"goal_id"`
	Finalized   bool               `db:"finalized" json:"finalized"`
	Result      VerificationResult `db:"result" json:"result"`
	FinalizedAt *time.Time         `db:"finalized_at" json:"finalized_at,omitempty"`

	Votes []Vote `db:"-" json:"votes"`
}

// Tally counts the current votes of a record.
func (r *VerificationRecord) Tally() (yes, no int) {
	for _, v := range r.Votes {
		switch v.Choice {
		case VoteYes:
			yes++
		case VoteNo:
			no++
		}
	}
	return yes, no
}

type Tally struct {
	Yes           int `json:"yes"`
	No            int `json:"no"`
	RequiredVotes int `json:"required_votes"`
	PanelSize     int `json:"panel_size"`
}

// VoteOutcome is returned to a verifier after an accepted vote.
type VoteOutcome struct {
	GoalID     string             `json:"goal_id"`
	Tally      Tally              `json:"tally"`
	Finalized  bool               `json:"finalized"`
	Result     VerificationResult `json:"result"`
	GoalStatus GoalStatus         `json:"goal_status"`
	// CausedFinalization is true only for the single vote that finalized the record.
	CausedFinalization bool `json:"caused_finalization"`
}
