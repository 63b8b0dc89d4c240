package model

import "testing"

func TestGoalStatusCanTransition(t *testing.T) {
	statuses := []GoalStatus{GoalStatusPending, GoalStatusActive, GoalStatusVerified, GoalStatusFailed, GoalStatusClaimed}
	legal := map[[2]GoalStatus]bool{
		{GoalStatusPending, GoalStatusActive}:   true,
		{GoalStatusActive, GoalStatusVerified}:  true,
		{GoalStatusActive, GoalStatusFailed}:    true,
		{GoalStatusVerified, GoalStatusClaimed}: true,
		{GoalStatusFailed, GoalStatusClaimed}:   true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := legal[[2]GoalStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s.CanTransition(%s) = %v, want %v", from, to, got, want)
			}
		}
	}
}
