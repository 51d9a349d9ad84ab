package models

import (
	"database/sql"
	"time"
)

// Typed IDs for entity references. They are plain int64 row ids underneath,
// but distinct types keep an AccountID from being passed where a DebtID is
// expected.
type (
	AccountID     int64
	TransactionID int64
	DebtID        int64
	PaymentID     int64
	BudgetID      int64
)

type AccountKind string

const (
	AccountKindCash    AccountKind = "cash"
	AccountKindCard    AccountKind = "card"
	AccountKindSavings AccountKind = "savings"
	AccountKindCustom  AccountKind = "custom"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case AccountKindCash, AccountKindCard, AccountKindSavings, AccountKindCustom:
		return true
	}
	return false
}

// Account holds money in a single currency. CurrentBalance always equals
// InitialBalance plus the signed sum of every non-reversed transaction effect
// applied to this account. Accounts referenced by transactions are never
// deleted, only archived.
type Account struct {
	ID             AccountID   `json:"id"`
	OwnerID        int64       `json:"owner_id"`
	Name           string      `json:"name"`
	Kind           AccountKind `json:"kind"`
	Currency       Currency    `json:"currency"`
	InitialBalance float64     `json:"initial_balance"`
	CurrentBalance float64     `json:"current_balance"`
	IsArchived     bool        `json:"is_archived"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// NullTime is an alias for sql.NullTime for better JSON handling.
type NullTime sql.NullTime

func (nt NullTime) MarshalJSON() ([]byte, error) {
	if !nt.Valid {
		return []byte("null"), nil
	}
	return nt.Time.MarshalJSON()
}
