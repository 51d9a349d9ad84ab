package models

import "time"

type DebtDirection string

const (
	DebtDirectionIOwe      DebtDirection = "i_owe"
	DebtDirectionTheyOweMe DebtDirection = "they_owe_me"
)

func (d DebtDirection) IsValid() bool {
	return d == DebtDirectionIOwe || d == DebtDirectionTheyOweMe
}

type DebtStatus string

const (
	DebtStatusActive  DebtStatus = "active"
	DebtStatusOverdue DebtStatus = "overdue"
	DebtStatusSettled DebtStatus = "settled"
)

// Debt tracks money owed to or by the owner. RateOnStart and
// PrincipalBaseValue are frozen snapshots from the moment the debt was
// opened. Status is derived from RemainingAmount and DueDate, never stored as
// independently-settable truth.
type Debt struct {
	ID                   DebtID        `json:"id"`
	Direction            DebtDirection `json:"direction"`
	CounterpartyID       string        `json:"counterparty_id"`
	PrincipalAmount      float64       `json:"principal_amount"`
	PrincipalCurrency    Currency      `json:"principal_currency"`
	BaseCurrency         Currency      `json:"base_currency"`
	RateOnStart          float64       `json:"rate_on_start"`
	PrincipalBaseValue   float64       `json:"principal_base_value"`
	RepaymentCurrency    Currency      `json:"repayment_currency,omitempty"`
	RepaymentRateOnStart float64       `json:"repayment_rate_on_start,omitempty"`
	FundingAccountID     AccountID     `json:"funding_account_id"`
	FundingTransactionID TransactionID `json:"funding_transaction_id"`
	RemainingAmount      float64       `json:"remaining_amount"`
	Status               DebtStatus    `json:"status"`
	DueDate              NullTime      `json:"due_date"`
	Note                 string        `json:"note,omitempty"`
	IdempotencyKey       string        `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// DeriveStatus recomputes the status from remaining amount and due date.
// The due-date comparison is date-only: a debt is overdue once its due date
// is strictly before today.
func (d *Debt) DeriveStatus(now time.Time) DebtStatus {
	if d.RemainingAmount <= 0 {
		return DebtStatusSettled
	}
	if d.DueDate.Valid {
		y1, m1, day1 := d.DueDate.Time.Date()
		y2, m2, day2 := now.Date()
		due := time.Date(y1, m1, day1, 0, 0, 0, 0, time.UTC)
		today := time.Date(y2, m2, day2, 0, 0, 0, 0, time.UTC)
		if due.Before(today) {
			return DebtStatusOverdue
		}
	}
	return DebtStatusActive
}

// DebtPayment is an append-only record of one repayment against a debt.
// It is never mutated or removed independently of its owning Debt.
type DebtPayment struct {
	ID                    PaymentID     `json:"id"`
	DebtID                DebtID        `json:"debt_id"`
	Amount                float64       `json:"amount"`
	Currency              Currency      `json:"currency"`
	RateUsedToDebt        float64       `json:"rate_used_to_debt"`
	ConvertedAmountToDebt float64       `json:"converted_amount_to_debt"`
	AccountID             AccountID     `json:"account_id"`
	RelatedTransactionID  TransactionID `json:"related_transaction_id"`
	PaymentDate           time.Time     `json:"payment_date"`
	Note                  string        `json:"note,omitempty"`
	CreatedAt             time.Time     `json:"created_at"`
}
