package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
	"github.com/templui/bullseye/internal/model"
)

// EmailService sends operator alerts. Owners and verifiers are identity keys,
// not mailboxes, so nothing here addresses them.
type EmailService struct {
	client    *resend.Client
	fromEmail string
	opsEmail  string
	isDev     bool
	appURL    string
	appName   string
}

func NewEmailService(apiKey, fromEmail, opsEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		opsEmail:  opsEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

// SendSettlementAlert tells operators that a payout could not be confirmed
// and the goal is waiting for a retried claim.
func (s *EmailService) SendSettlementAlert(ctx context.Context, goal *model.Goal, recipient string, cause error) error {
	goalURL := fmt.Sprintf("%s/api/goals/%s", s.appURL, goal.ID)
	subject, body := settlementAlertTemplate(goal, recipient, cause, goalURL, s.appName)

	if s.opsEmail == "" {
		slog.Warn("settlement alert (no OPS_ALERT_EMAIL)", "goal_id", goal.ID, "subject", subject)
		return nil
	}

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "settlement_alert", "to", s.opsEmail, "subject", subject, "url", goalURL)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{s.opsEmail},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err == nil {
		slog.Info("email sent", "type", "settlement_alert", "to", s.opsEmail, "goal_id", goal.ID)
	}
	return err
}
