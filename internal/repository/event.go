package repository

import (
	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/model"
)

type EventRepository interface {
	Create(event *model.Event) error
	// Events returns up to limit events newest first. A non-empty before
	// returns only events whose id sorts before it.
	Events(limit int, before string) ([]*model.Event, error)
}

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(event *model.Event) error {
	query := `INSERT INTO events (id, type, goal_id, owner, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(query,
		event.ID,
		event.Type,
		event.GoalID,
		event.Owner,
		event.Data,
		event.CreatedAt,
	)
	return err
}

func (r *eventRepository) Events(limit int, before string) ([]*model.Event, error) {
	var events []*model.Event
	var err error
	if before == "" {
		err = r.db.Select(&events, `SELECT * FROM events ORDER BY id DESC LIMIT $1`, limit)
	} else {
		err = r.db.Select(&events, `SELECT * FROM events WHERE id < $1 ORDER BY id DESC LIMIT $2`, before, limit)
	}
	if err != nil {
		return nil, err
	}
	return events, nil
}
