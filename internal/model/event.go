package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type EventType string

const (
	EventGoalCreated           EventType = "goal_created"
	EventVerificationRequested EventType = "verification_requested"
	EventGoalVerified          EventType = "goal_verified"
	EventGoalFailed            EventType = "goal_failed"
	EventGoalClaimed           EventType = "goal_claimed"
)

// Event is a feed entry produced for the presentation layer.
type Event struct {
	ID        string         `db:"id" json:"id"`
	Type      EventType      `db:"type" json:"type"`
	GoalID    string         `db:"goal_id" json:"goal_id"`
	Owner     string         `db:"owner" json:"owner"`
	Data      types.JSONText `db:"data" json:"data,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
