package models

import "time"

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIncome, TransactionTypeExpense, TransactionTypeTransfer:
		return true
	}
	return false
}

// Transaction is a single ledger movement. Amount is always positive and
// expressed in the transaction's own currency; the sign of the balance effect
// comes from Type. RateUsedToBase and ConvertedAmountToBase are frozen
// snapshots taken at creation time and are never recomputed from live rates.
type Transaction struct {
	ID                    TransactionID   `json:"id"`
	Type                  TransactionType `json:"type"`
	AccountID             AccountID       `json:"account_id"`
	ToAccountID           AccountID       `json:"to_account_id,omitempty"` // transfers only
	Amount                float64         `json:"amount"`
	Currency              Currency        `json:"currency"`
	BaseCurrency          Currency        `json:"base_currency"`
	RateUsedToBase        float64         `json:"rate_used_to_base"`
	ConvertedAmountToBase float64         `json:"converted_amount_to_base"`
	CategoryID            string          `json:"category_id,omitempty"`
	Description           string          `json:"description,omitempty"`
	Date                  time.Time       `json:"date"`
	RelatedDebtID         DebtID          `json:"related_debt_id,omitempty"`
	RelatedBudgetID       BudgetID        `json:"related_budget_id,omitempty"`
	IdempotencyKey        string          `json:"idempotency_key,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
