package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/templui/bullseye/internal/model"
)

var (
	ErrReceiptNotFound = errors.New("settlement receipt not found")
	ErrAlreadySettled  = errors.New("goal already settled")
)

type SettlementRepository interface {
	// Record marks the goal claimed and stores its receipt atomically. The goal
	// must still be in receipt.Outcome, which must be verified or failed.
	Record(receipt *model.SettlementReceipt) error
	ByGoalID(goalID string) (*model.SettlementReceipt, error)
	Receipts(limit int) ([]*model.SettlementReceipt, error)
}

type settlementRepository struct {
	db *sqlx.DB
}

func NewSettlementRepository(db *sqlx.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) Record(receipt *model.SettlementReceipt) error {
	return withTx(r.db, func(tx *sqlx.Tx) error {
		swapped, err := swapStatus(tx, receipt.GoalID, receipt.Outcome, model.GoalStatusClaimed, receipt.SettledAt)
		if err != nil {
			return err
		}
		if !swapped {
			return ErrAlreadySettled
		}

		query := `
			INSERT INTO settlements (
				id, goal_id, owner, outcome, recipient, recipient_kind,
				amount, provider, transfer_ref, settled_by, settled_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err = tx.Exec(query,
			receipt.ID,
			receipt.GoalID,
			receipt.Owner,
			receipt.Outcome,
			receipt.Recipient,
			receipt.RecipientKind,
			receipt.Amount,
			receipt.Provider,
			receipt.TransferRef,
			receipt.SettledBy,
			receipt.SettledAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySettled
			}
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
		return nil
	})
}

func (r *settlementRepository) ByGoalID(goalID string) (*model.SettlementReceipt, error) {
	receipt := &model.SettlementReceipt{}
	err := r.db.Get(receipt, `SELECT * FROM settlements WHERE goal_id = $1`, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (r *settlementRepository) Receipts(limit int) ([]*model.SettlementReceipt, error) {
	var receipts []*model.SettlementReceipt
	err := r.db.Select(&receipts, `SELECT * FROM settlements ORDER BY settled_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return receipts, nil
}
