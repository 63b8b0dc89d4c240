package model

import (
	"time"
)

type RecipientKind string

const (
	RecipientOwner    RecipientKind = "owner"
	RecipientBurn     RecipientKind = "burn"
	RecipientTreasury RecipientKind = "treasury"
)

type SettlementReceipt struct {
	ID            string        `db:"id" json:"id"`
	GoalID        string        `db:"goal_id" json:"goal_id"`
	Owner         string        `db:"owner" json:"owner"`
	Outcome       GoalStatus    `db:"outcome" json:"outcome"`
	Recipient     string        `db:"recipient" json:"recipient"`
	RecipientKind RecipientKind `db:"recipient_kind" json:"recipient_kind"`
	Amount        int64         `db:"amount" json:"amount"`
	Provider      string        `db:"provider" json:"provider"`
	TransferRef   string        `db:"transfer_ref" json:"transfer_ref"`
	SettledBy     string        `db:"settled_by" json:"settled_by"`
	SettledAt     time.Time     `db:"settled_at" json:"settled_at"`
}

// Transfer is a value movement recorded by the built-in ledger provider.
type Transfer struct {
	ID        string    `db:"id" json:"id"`
	GoalID    string    `db:"goal_id" json:"goal_id"`
	Recipient string    `db:"recipient" json:"recipient"`
	Amount    int64     `db:"amount" json:"amount"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
