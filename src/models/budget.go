package models

import "time"

type BudgetState string

const (
	BudgetStateWithin    BudgetState = "within"
	BudgetStateFixed     BudgetState = "fixed"
	BudgetStateExceeding BudgetState = "exceeding"
)

// Budget caps spending (or tracks income) for one account over a period.
// SpentAmount, RemainingAmount and State are derived fields, recomputed from
// the transaction log by the reconciler after every mutation that could
// affect them.
type Budget struct {
	ID              BudgetID        `json:"id"`
	Name            string          `json:"name"`
	Categories      []string        `json:"categories"` // empty = all categories
	AccountID       AccountID       `json:"account_id"`
	TransactionType TransactionType `json:"transaction_type"` // income or expense, never transfer
	LimitAmount     float64         `json:"limit_amount"`
	Currency        Currency        `json:"currency"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	SpentAmount     float64         `json:"spent_amount"`
	RemainingAmount float64         `json:"remaining_amount"`
	State           BudgetState     `json:"state"`
	NotifyOnExceed  bool            `json:"notify_on_exceed"`
	LastNotifiedAt  NullTime        `json:"last_notified_at"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// MatchesCategory reports whether a transaction category falls under this
// budget. An empty category set matches everything.
func (b *Budget) MatchesCategory(categoryID string) bool {
	if len(b.Categories) == 0 {
		return true
	}
	for _, c := range b.Categories {
		if c == categoryID {
			return true
		}
	}
	return false
}
