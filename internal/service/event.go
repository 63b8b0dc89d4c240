package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/oklog/ulid/v2"
	standardwebhooks "github.com/standard-webhooks/standard-webhooks/libraries/go"
	"github.com/templui/bullseye/internal/model"
	"github.com/templui/bullseye/internal/repository"
)

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 200
)

// Publisher records goal lifecycle events. Publishing never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, eventType model.EventType, goal *model.Goal, data map[string]any)
}

// EventService stores events for the feed and forwards them to an optional
// webhook signed per the Standard Webhooks scheme.
type EventService struct {
	repo       repository.EventRepository
	webhookURL string
	webhook    *standardwebhooks.Webhook
	client     *http.Client
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewEventService(repo repository.EventRepository, webhookURL, webhookSecret string) (*EventService, error) {
	s := &EventService{
		repo:       repo,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}

	if webhookURL != "" {
		if webhookSecret == "" {
			slog.Warn("event webhook configured without secret, deliveries will be unsigned")
		} else {
			wh, err := standardwebhooks.NewWebhookRaw([]byte(webhookSecret))
			if err != nil {
				return nil, fmt.Errorf("failed to create webhook signer: %w", err)
			}
			s.webhook = wh
		}
	}

	return s, nil
}

func (s *EventService) Publish(ctx context.Context, eventType model.EventType, goal *model.Goal, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode event data", "type", eventType, "goal_id", goal.ID, "error", err)
		raw = []byte("{}")
	}

	now := s.now().UTC()
	event := &model.Event{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Type:      eventType,
		GoalID:    goal.ID,
		Owner:     goal.Owner,
		Data:      types.JSONText(raw),
		CreatedAt: now,
	}

	if err := s.repo.Create(event); err != nil {
		slog.Warn("failed to store event", "type", eventType, "goal_id", goal.ID, "error", err)
	}

	if s.webhookURL == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.deliver(context.WithoutCancel(ctx), event); err != nil {
			slog.Warn("event webhook delivery failed", "type", eventType, "goal_id", goal.ID, "event_id", event.ID, "error", err)
		}
	}()
}

func (s *EventService) deliver(ctx context.Context, event *model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if s.webhook != nil {
		ts := s.now()
		signature, err := s.webhook.Sign(event.ID, ts, payload)
		if err != nil {
			return fmt.Errorf("failed to sign event: %w", err)
		}
		req.Header.Set("webhook-id", event.ID)
		req.Header.Set("webhook-timestamp", fmt.Sprintf("%d", ts.Unix()))
		req.Header.Set("webhook-signature", signature)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// Events returns feed entries newest first.
func (s *EventService) Events(limit int, before string) ([]*model.Event, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}
	events, err := s.repo.Events(limit, before)
	if err != nil {
		return nil, fromRepo(err, "list events")
	}
	return events, nil
}

// Wait blocks until in-flight webhook deliveries finish.
func (s *EventService) Wait() {
	s.wg.Wait()
}
