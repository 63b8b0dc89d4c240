package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/model"
)

var ErrTransferNotFound = errors.New("transfer not found")

// TransferRepository backs the built-in ledger transfer provider.
type TransferRepository interface {
	// CreateOnce stores t unless a transfer for t.GoalID already exists, in
	// which case the existing transfer is returned with created = false.
	CreateOnce(t *model.Transfer) (stored *model.Transfer, created bool, err error)
	ByGoalID(goalID string) (*model.Transfer, error)
	Count() (int, error)
}

type transferRepository struct {
	db *sqlx.DB
}

func NewTransferRepository(db *sqlx.DB) TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) CreateOnce(t *model.Transfer) (*model.Transfer, bool, error) {
	existing, err := r.ByGoalID(t.GoalID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrTransferNotFound) {
		return nil, false, err
	}

	_, err = r.db.Exec(`INSERT INTO transfers (id, goal_id, recipient, amount, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.GoalID, t.Recipient, t.Amount, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, err := r.ByGoalID(t.GoalID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert transfer: %w", err)
	}
	return t, true, nil
}

func (r *transferRepository) ByGoalID(goalID string) (*model.Transfer, error) {
	t := &model.Transfer{}
	err := r.db.Get(t, `SELECT * FROM transfers WHERE goal_id = $1`, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *transferRepository) Count() (int, error) {
	var n int
	err := r.db.Get(&n, `SELECT COUNT(*) FROM transfers`)
	return n, err
}
