package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/model"
)

var (
	ErrGoalNotFound      = errors.New("goal not found")
	ErrOwnerHasOpenGoal  = errors.New("owner has an open goal")
	ErrStatusConflict    = errors.New("goal status changed concurrently")
	// ErrIllegalTransition matches ErrStatusConflict as well.
	ErrIllegalTransition = fmt.Errorf("%w: illegal status transition", ErrStatusConflict)
)

type GoalRepository interface {
	// Create inserts the goal with its panel snapshot and an empty verification
	// record in one transaction. It assigns goal.Sequence.
	Create(goal *model.Goal, maxOpen int) error
	ByID(id string) (*model.Goal, error)
	// Goals lists goals newest first; an empty owner lists every goal.
	Goals(owner string) ([]*model.Goal, error)
	// Undecided lists goals still awaiting a verification outcome.
	Undecided() ([]*model.Goal, error)
	Transition(id string, from, to model.GoalStatus, at time.Time) error
	Activate(id string, submittedAt, verificationDeadline time.Time) error
	// RecordRejection counts a transfer the provider refused for a finalized goal.
	RecordRejection(id string, at time.Time) error
	Stats(owner string) (*model.OwnerStats, error)
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(goal *model.Goal, maxOpen int) error {
	return withTx(r.db, func(tx *sqlx.Tx) error {
		var open int
		err := tx.Get(&open,
			`SELECT COUNT(*) FROM goals WHERE owner = $1 AND status NOT IN ($2, $3)`,
			goal.Owner, model.GoalStatusClaimed, model.GoalStatusFailed)
		if err != nil {
			return fmt.Errorf("failed to count open goals: %w", err)
		}
		if open >= maxOpen {
			return ErrOwnerHasOpenGoal
		}

		var last int
		err = tx.Get(&last, `SELECT COALESCE(MAX(sequence), 0) FROM goals WHERE owner = $1`, goal.Owner)
		if err != nil {
			return fmt.Errorf("failed to read goal sequence: %w", err)
		}
		goal.Sequence = last + 1

		query := `
			INSERT INTO goals (
				id, owner, sequence, title, description, locked_amount, deadline,
				verification_type, required_votes, fail_destination, status,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err = tx.Exec(query,
			goal.ID,
			goal.Owner,
			goal.Sequence,
			goal.Title,
			goal.Description,
			goal.LockedAmount,
			goal.Deadline,
			goal.VerificationType,
			goal.RequiredVotes,
			goal.FailDestination,
			goal.Status,
			goal.CreatedAt,
			goal.UpdatedAt,
		)
		if err != nil {
			// A concurrent create in another process took the same sequence.
			if isUniqueViolation(err) {
				return ErrOwnerHasOpenGoal
			}
			return fmt.Errorf("failed to insert goal: %w", err)
		}

		for i, verifier := range goal.Panel {
			_, err = tx.Exec(`INSERT INTO goal_panel (goal_id, verifier, position) VALUES ($1, $2, $3)`,
				goal.ID, verifier, i)
			if err != nil {
				return fmt.Errorf("failed to insert panel member: %w", err)
			}
		}

		_, err = tx.Exec(`INSERT INTO verifications (goal_id, finalized, result) VALUES ($1, $2, $3)`,
			goal.ID, false, model.ResultUndetermined)
		if err != nil {
			return fmt.Errorf("failed to insert verification record: %w", err)
		}
		return nil
	})
}

func (r *goalRepository) ByID(id string) (*model.Goal, error) {
	goal, err := goalByID(r.db, id, "")
	if err != nil {
		return nil, err
	}
	if err := loadPanels(r.db, goal); err != nil {
		return nil, err
	}
	return goal, nil
}

func (r *goalRepository) Goals(owner string) ([]*model.Goal, error) {
	var goals []*model.Goal
	var err error
	if owner == "" {
		err = r.db.Select(&goals, `SELECT * FROM goals ORDER BY created_at DESC, id DESC`)
	} else {
		err = r.db.Select(&goals, `SELECT * FROM goals WHERE owner = $1 ORDER BY sequence DESC`, owner)
	}
	if err != nil {
		return nil, err
	}

	if err := loadPanels(r.db, goals...); err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepository) Undecided() ([]*model.Goal, error) {
	var goals []*model.Goal
	err := r.db.Select(&goals,
		`SELECT * FROM goals WHERE status IN ($1, $2) ORDER BY created_at ASC`,
		model.GoalStatusPending, model.GoalStatusActive)
	if err != nil {
		return nil, err
	}

	if err := loadPanels(r.db, goals...); err != nil {
		return nil, err
	}
	return goals, nil
}

// Transition moves the goal from one status to the next only if it is still
// in the expected status and the edge is legal.
func (r *goalRepository) Transition(id string, from, to model.GoalStatus, at time.Time) error {
	swapped, err := swapStatus(r.db, id, from, to, at)
	if err != nil {
		return err
	}
	if !swapped {
		return notSwapped(r.db, id)
	}
	return nil
}

func (r *goalRepository) Activate(id string, submittedAt, verificationDeadline time.Time) error {
	return withTx(r.db, func(tx *sqlx.Tx) error {
		swapped, err := swapStatus(tx, id, model.GoalStatusPending, model.GoalStatusActive, submittedAt)
		if err != nil {
			return err
		}
		if !swapped {
			return notSwapped(tx, id)
		}

		_, err = tx.Exec(`UPDATE goals SET submitted_at = $1, verification_deadline = $2 WHERE id = $3`,
			submittedAt, verificationDeadline, id)
		if err != nil {
			return fmt.Errorf("failed to record verification deadline: %w", err)
		}
		return nil
	})
}

func (r *goalRepository) RecordRejection(id string, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE goals SET transfer_rejections = transfer_rejections + 1, updated_at = $1
		WHERE id = $2 AND status IN ($3, $4)
	`, at, id, model.GoalStatusVerified, model.GoalStatusFailed)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		return notSwapped(r.db, id)
	}
	return nil
}

// swapStatus moves a goal along one legal edge as a compare-and-swap. It
// reports false when the goal is not in from.
func swapStatus(ex sqlx.Execer, id string, from, to model.GoalStatus, at time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("%w: %s to %s", ErrIllegalTransition, from, to)
	}
	result, err := ex.Exec(`UPDATE goals SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		to, at, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition goal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// notSwapped tells a missing goal apart from one whose status moved on.
func notSwapped(q sqlx.Queryer, id string) error {
	var exists int
	err := sqlx.Get(q, &exists, `SELECT COUNT(*) FROM goals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrGoalNotFound
	}
	return ErrStatusConflict
}

func (r *goalRepository) Stats(owner string) (*model.OwnerStats, error) {
	stats := &model.OwnerStats{}
	query := `
		SELECT
			COUNT(*) AS total_goals,
			CAST(COALESCE(SUM(CASE WHEN g.status NOT IN ($2, $3) THEN 1 ELSE 0 END), 0) AS BIGINT) AS open_goals,
			CAST(COALESCE(SUM(CASE WHEN v.result = $4 THEN 1 ELSE 0 END), 0) AS BIGINT) AS succeeded,
			CAST(COALESCE(SUM(CASE WHEN v.result = $5 THEN 1 ELSE 0 END), 0) AS BIGINT) AS failed,
			CAST(COALESCE(SUM(CASE WHEN g.status = $2 THEN 1 ELSE 0 END), 0) AS BIGINT) AS settled,
			CAST(COALESCE(SUM(CASE WHEN g.status <> $2 THEN g.locked_amount ELSE 0 END), 0) AS BIGINT) AS escrowed_amount
		FROM goals g
		LEFT JOIN verifications v ON v.goal_id = g.id
		WHERE g.owner = $1
	`
	err := r.db.Get(stats, query,
		owner,
		model.GoalStatusClaimed,
		model.GoalStatusFailed,
		model.ResultSuccess,
		model.ResultFailure,
	)
	if err != nil {
		return nil, err
	}
	stats.Owner = owner
	return stats, nil
}

// goalByID reads one goal row. lock is appended to the query for row locking
// inside a transaction.
func goalByID(q sqlx.Queryer, id, lock string) (*model.Goal, error) {
	goal := &model.Goal{}
	err := sqlx.Get(q, goal, `SELECT * FROM goals WHERE id = $1`+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

type panelRow struct {
	GoalID   string `db:"goal_id"`
	Verifier string `db:"verifier"`
}

func loadPanels(q sqlx.Queryer, goals ...*model.Goal) error {
	if len(goals) == 0 {
		return nil
	}

	ids := make([]string, len(goals))
	byID := make(map[string]*model.Goal, len(goals))
	for i, g := range goals {
		ids[i] = g.ID
		byID[g.ID] = g
		g.Panel = []string{}
	}

	query, args, err := sqlx.In(`SELECT goal_id, verifier FROM goal_panel WHERE goal_id IN (?) ORDER BY goal_id, position`, ids)
	if err != nil {
		return err
	}

	var rows []panelRow
	if err := sqlx.Select(q, &rows, rebind(q, query), args...); err != nil {
		return fmt.Errorf("failed to load panels: %w", err)
	}
	for _, row := range rows {
		if g, ok := byID[row.GoalID]; ok {
			g.Panel = append(g.Panel, row.Verifier)
		}
	}
	return nil
}

type rebinder interface {
	Rebind(string) string
}

func rebind(q sqlx.Queryer, query string) string {
	if rb, ok := q.(rebinder); ok {
		return rb.Rebind(query)
	}
	return query
}
