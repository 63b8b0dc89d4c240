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
	ErrVerificationNotFound = errors.New("verification record not found")
	ErrAlreadyFinalized     = errors.New("verification record already finalized")
)

// LedgerChange is what a LedgerFunc decides to write for one goal.
type LedgerChange struct {
	// Vote is upserted when non-nil; a verifier's earlier vote is replaced.
	Vote *model.Vote
	// Result finalizes the record unless it is empty or undetermined.
	Result model.VerificationResult
	// Path lists the statuses the goal walks through, starting after its
	// current status. Each step is applied as a compare-and-swap.
	Path []model.GoalStatus
	At   time.Time
}

// LedgerFunc inspects the locked goal and its record and returns the change to
// persist. A nil change writes nothing; an error aborts the transaction.
type LedgerFunc func(goal *model.Goal, record *model.VerificationRecord) (*LedgerChange, error)

type VerificationRepository interface {
	ByGoalID(goalID string) (*model.VerificationRecord, error)
	// Apply runs fn against a consistent snapshot of the goal and its record
	// and persists the returned change in the same transaction. It returns the
	// goal and record as committed.
	Apply(goalID string, fn LedgerFunc) (*model.Goal, *model.VerificationRecord, error)
}

type verificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) ByGoalID(goalID string) (*model.VerificationRecord, error) {
	return recordByGoalID(r.db, goalID, "")
}

func (r *verificationRepository) Apply(goalID string, fn LedgerFunc) (*model.Goal, *model.VerificationRecord, error) {
	var goal *model.Goal
	var record *model.VerificationRecord

	err := withTx(r.db, func(tx *sqlx.Tx) error {
		var err error
		goal, err = goalByID(tx, goalID, lockRows(r.db))
		if err != nil {
			return err
		}
		if err = loadPanels(tx, goal); err != nil {
			return err
		}
		record, err = recordByGoalID(tx, goalID, lockRows(r.db))
		if err != nil {
			return err
		}

		change, err := fn(goal, record)
		if err != nil {
			return err
		}
		if change == nil {
			return nil
		}

		if change.Vote != nil {
			if record.Finalized {
				return ErrAlreadyFinalized
			}
			if err = upsertVote(tx, change.Vote); err != nil {
				return err
			}
			record.Votes = replaceVote(record.Votes, *change.Vote)
		}

		if change.Result != "" && change.Result != model.ResultUndetermined {
			result, err := tx.Exec(`
				UPDATE verifications SET finalized = $1, result = $2, finalized_at = $3
				WHERE goal_id = $4 AND finalized = $5
			`, true, change.Result, change.At, goalID, false)
			if err != nil {
				return fmt.Errorf("failed to finalize verification: %w", err)
			}
			rows, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rows != 1 {
				return ErrAlreadyFinalized
			}
			at := change.At
			record.Finalized = true
			record.Result = change.Result
			record.FinalizedAt = &at
		}

		from := goal.Status
		for _, to := range change.Path {
			swapped, err := swapStatus(tx, goalID, from, to, change.At)
			if err != nil {
				return err
			}
			if !swapped {
				return ErrStatusConflict
			}
			from = to
		}
		if from != goal.Status {
			goal.Status = from
			goal.UpdatedAt = change.At
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return goal, record, nil
}

func recordByGoalID(q sqlx.Queryer, goalID, lock string) (*model.VerificationRecord, error) {
	record := &model.VerificationRecord{}
	err := sqlx.Get(q, record, `SELECT goal_id, finalized, result, finalized_at FROM verifications WHERE goal_id = $1`+lock, goalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, err
	}

	record.Votes = []model.Vote{}
	err = sqlx.Select(q, &record.Votes,
		`SELECT goal_id, verifier, choice, cast_at FROM votes WHERE goal_id = $1 ORDER BY cast_at, verifier`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	return record, nil
}

func upsertVote(tx *sqlx.Tx, vote *model.Vote) error {
	query := `
		INSERT INTO votes (goal_id, verifier, choice, cast_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (goal_id, verifier) DO UPDATE SET choice = excluded.choice, cast_at = excluded.cast_at
	`
	_, err := tx.Exec(query, vote.GoalID, vote.Verifier, vote.Choice, vote.CastAt)
	if err != nil {
		return fmt.Errorf("failed to store vote: %w", err)
	}
	return nil
}

func replaceVote(votes []model.Vote, vote model.Vote) []model.Vote {
	for i := range votes {
		if votes[i].Verifier == vote.Verifier {
			votes[i] = vote
			return votes
		}
	}
	return append(votes, vote)
}
