package service

import (
	"fmt"

	"github.com/templui/bullseye/internal/model"
)

func settlementAlertTemplate(goal *model.Goal, recipient string, cause error, goalURL, appName string) (string, string) {
	subject := fmt.Sprintf("[%s] Settlement unconfirmed for goal %s", appName, goal.ID)
	body := fmt.Sprintf(`A settlement transfer could not be confirmed.

Goal:      %s
Owner:     %s
Status:    %s
Recipient: %s
Amount:    %d
Error:     %v

The goal keeps its pre-settlement status and the claim can be retried safely.
Retry with:  do settle %s

%s

The %s Team`, goal.ID, goal.Owner, goal.Status, recipient, goal.LockedAmount, cause, goal.ID, goalURL, appName)

	return subject, body
}
