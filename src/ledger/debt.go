package ledger

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
)

var (
	// ErrDebtSettled is returned when a payment targets a debt whose
	// remaining amount is already zero.
	ErrDebtSettled = errors.New("debt is already settled")
)

// DebtLedger owns debts and their payments. Money movement always goes
// through the Engine: opening a debt books a funding transaction, every
// payment books the opposite-sign transaction, and the converted amounts come
// from the rate resolver with snapshot semantics.
type DebtLedger struct {
	mu      sync.Mutex
	store   store.Store
	fx      *fx.Resolver
	engine  *Engine
	base    models.Currency
	guard   *IdempotencyGuard
	epsilon float64
}

func NewDebtLedger(s store.Store, resolver *fx.Resolver, engine *Engine, base models.Currency, rateEpsilon float64) *DebtLedger {
	return &DebtLedger{
		store:   s,
		fx:      resolver,
		engine:  engine,
		base:    base,
		guard:   engine.Guard(),
		epsilon: rateEpsilon,
	}
}

type OpenDebtInput struct {
	Direction         models.DebtDirection `json:"direction"`
	CounterpartyID    string               `json:"counterparty_id"`
	PrincipalAmount   float64              `json:"principal_amount"`
	PrincipalCurrency models.Currency      `json:"principal_currency"`
	FundingAccountID  models.AccountID     `json:"funding_account_id"`
	DueDate           *time.Time           `json:"due_date,omitempty"`
	Note              string               `json:"note,omitempty"`
	IdempotencyKey    string               `json:"idempotency_key,omitempty"`
}

// OpenDebt creates a debt together with its funding transaction. Borrowed
// money arriving (i_owe) is booked as income into the funding account;
// lending money out (they_owe_me) is booked as an expense from it. The
// principal's base-currency value is snapshotted once at the rate on start.
func (dl *DebtLedger) OpenDebt(in OpenDebtInput) (*models.Debt, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if !dl.guard.ShouldApply(ScopeDebts, in.IdempotencyKey) {
		existing := dl.guard.ExistingDebt(in.IdempotencyKey)
		logger.L.Info("Duplicate open-debt command replayed, returning stored record",
			"idempotencyKey", in.IdempotencyKey, "debtID", existing.ID)
		return dl.withDerivedStatus(existing), nil
	}

	if !in.Direction.IsValid() {
		return nil, fmt.Errorf("%w: unknown debt direction %q", validation.ErrValidationFailed, in.Direction)
	}
	if err := validation.ValidateAmountPositive(in.PrincipalAmount, "principal amount"); err != nil {
		return nil, err
	}
	if err := validation.ValidateCurrencyCode(string(in.PrincipalCurrency)); err != nil {
		return nil, err
	}
	if _, err := dl.store.GetAccount(in.FundingAccountID); err != nil {
		return nil, fmt.Errorf("%w: funding account %d", validation.ErrValidationFailed, in.FundingAccountID)
	}

	rateOnStart := 1.0
	if in.PrincipalCurrency != dl.base {
		rateOnStart = dl.fx.GetRate(in.PrincipalCurrency, dl.base, time.Now())
	}

	debt := &models.Debt{
		Direction:          in.Direction,
		CounterpartyID:     in.CounterpartyID,
		PrincipalAmount:    in.PrincipalAmount,
		PrincipalCurrency:  in.PrincipalCurrency,
		BaseCurrency:       dl.base,
		RateOnStart:        rateOnStart,
		PrincipalBaseValue: in.PrincipalAmount * rateOnStart,
		FundingAccountID:   in.FundingAccountID,
		RemainingAmount:    in.PrincipalAmount,
		Note:               validation.SanitizeText(in.Note),
		IdempotencyKey:     in.IdempotencyKey,
	}
	if in.DueDate != nil {
		debt.DueDate = models.NullTime{Time: *in.DueDate, Valid: true}
	}
	debt.Status = debt.DeriveStatus(time.Now())

	if err := dl.store.CreateDebt(debt); err != nil {
		return nil, err
	}

	fundingType := models.TransactionTypeExpense
	if in.Direction == models.DebtDirectionIOwe {
		fundingType = models.TransactionTypeIncome
	}
	fundingKey := ""
	if in.IdempotencyKey != "" {
		fundingKey = in.IdempotencyKey + ":funding"
	}
	tx, err := dl.engine.CreateTransaction(CreateTransactionInput{
		Type:           fundingType,
		AccountID:      in.FundingAccountID,
		Amount:         in.PrincipalAmount,
		Currency:       in.PrincipalCurrency,
		CategoryID:     "Debt",
		Description:    fmt.Sprintf("Debt %s: %s", in.Direction, in.CounterpartyID),
		Date:           time.Now(),
		RelatedDebtID:  debt.ID,
		IdempotencyKey: fundingKey,
	})
	if err != nil {
		// Roll the debt record back; opening must be all-or-nothing.
		if delErr := dl.store.DeleteDebt(debt.ID); delErr != nil {
			logger.L.Error("Failed to remove debt after funding transaction error", "debtID", debt.ID, "error", delErr)
		}
		return nil, fmt.Errorf("creating funding transaction: %w", err)
	}

	debt.FundingTransactionID = tx.ID
	if err := dl.store.UpdateDebt(debt); err != nil {
		// Unwind the funding transaction and the debt record; an unlinked
		// half-open debt must never survive.
		if delErr := dl.engine.DeleteTransaction(tx.ID); delErr != nil {
			logger.L.Error("Failed to reverse funding transaction after persist error", "debtID", debt.ID, "transactionID", tx.ID, "error", delErr)
		}
		if delErr := dl.store.DeleteDebt(debt.ID); delErr != nil {
			logger.L.Error("Failed to remove debt after persist error", "debtID", debt.ID, "error", delErr)
		}
		return nil, err
	}
	logger.L.Info("Debt opened", "debtID", debt.ID, "direction", debt.Direction,
		"principal", debt.PrincipalAmount, "currency", debt.PrincipalCurrency, "fundingTransactionID", tx.ID)
	return debt, nil
}

type PaymentInput struct {
	Amount         float64          `json:"amount"`
	Currency       models.Currency  `json:"currency"`
	AccountID      models.AccountID `json:"account_id"`
	Date           time.Time        `json:"date"`
	Note           string           `json:"note,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
}

// RecordPayment converts the paid amount into the debt's principal currency,
// reduces the remaining balance (floored at zero), books the opposite-sign
// transaction through the Engine and appends an immutable payment record. A
// replayed idempotency key returns the stored debt and payment unchanged.
func (dl *DebtLedger) RecordPayment(debtID models.DebtID, in PaymentInput) (*models.Debt, *models.DebtPayment, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	debt, err := dl.store.GetDebt(debtID)
	if err != nil {
		return nil, nil, err
	}

	txKey := ""
	if in.IdempotencyKey != "" {
		txKey = in.IdempotencyKey + ":payment"
	}
	// The replay check runs before the settled check: a retried payment that
	// settled the debt the first time must still return the stored result.
	if !dl.guard.ShouldApply(ScopeTransactions, txKey) {
		existingTx := dl.guard.ExistingTransaction(txKey)
		logger.L.Info("Duplicate payment command replayed, returning stored record",
			"idempotencyKey", in.IdempotencyKey, "debtID", debtID, "transactionID", existingTx.ID)
		return dl.withDerivedStatus(debt), dl.paymentForTransaction(debtID, existingTx.ID), nil
	}

	if debt.RemainingAmount <= 0 {
		return nil, nil, fmt.Errorf("%w (debt %d)", ErrDebtSettled, debtID)
	}
	if err := validation.ValidateAmountPositive(in.Amount, "payment amount"); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateCurrencyCode(string(in.Currency)); err != nil {
		return nil, nil, err
	}
	if _, err := dl.store.GetAccount(in.AccountID); err != nil {
		return nil, nil, fmt.Errorf("%w: account %d", validation.ErrValidationFailed, in.AccountID)
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}

	rate := dl.fx.GetRate(in.Currency, debt.PrincipalCurrency, date)
	converted := in.Amount * rate

	// Paying back borrowed money is an expense; collecting what others owe
	// is income — the opposite sign of the funding transaction.
	paymentType := models.TransactionTypeIncome
	if debt.Direction == models.DebtDirectionIOwe {
		paymentType = models.TransactionTypeExpense
	}
	tx, err := dl.engine.CreateTransaction(CreateTransactionInput{
		Type:           paymentType,
		AccountID:      in.AccountID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		CategoryID:     "Debt",
		Description:    fmt.Sprintf("Debt payment: %s", debt.CounterpartyID),
		Date:           date,
		RelatedDebtID:  debt.ID,
		IdempotencyKey: txKey,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating payment transaction: %w", err)
	}

	payment := &models.DebtPayment{
		DebtID:                debt.ID,
		Amount:                in.Amount,
		Currency:              in.Currency,
		RateUsedToDebt:        rate,
		ConvertedAmountToDebt: converted,
		AccountID:             in.AccountID,
		RelatedTransactionID:  tx.ID,
		PaymentDate:           date,
		Note:                  validation.SanitizeText(in.Note),
	}
	if err := dl.store.CreateDebtPayment(payment); err != nil {
		// Reverse the booked transaction; the command must be all-or-nothing.
		if delErr := dl.engine.DeleteTransaction(tx.ID); delErr != nil {
			logger.L.Error("Failed to reverse payment transaction after persist error", "debtID", debtID, "transactionID", tx.ID, "error", delErr)
		}
		return nil, nil, err
	}

	debt.RemainingAmount = math.Max(debt.RemainingAmount-converted, 0)
	debt.Status = debt.DeriveStatus(time.Now())
	if err := dl.store.UpdateDebt(debt); err != nil {
		if delErr := dl.store.DeleteDebtPayment(payment.ID); delErr != nil {
			logger.L.Error("Failed to remove payment record after persist error", "debtID", debtID, "paymentID", payment.ID, "error", delErr)
		}
		if delErr := dl.engine.DeleteTransaction(tx.ID); delErr != nil {
			logger.L.Error("Failed to reverse payment transaction after persist error", "debtID", debtID, "transactionID", tx.ID, "error", delErr)
		}
		return nil, nil, err
	}
	logger.L.Info("Debt payment recorded", "debtID", debt.ID, "paymentID", payment.ID,
		"amount", in.Amount, "currency", in.Currency, "remaining", debt.RemainingAmount, "status", debt.Status)
	return debt, payment, nil
}

// SetRepaymentCurrency stores a second currency for repayment tracking. The
// rate is snapshotted once: replacing a previously-stored rate with a
// materially different one (beyond the configured epsilon) requires
// confirm=true.
func (dl *DebtLedger) SetRepaymentCurrency(debtID models.DebtID, repaymentCurrency models.Currency, rate *float64, confirm bool) (*models.Debt, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	debt, err := dl.store.GetDebt(debtID)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateCurrencyCode(string(repaymentCurrency)); err != nil {
		return nil, err
	}

	newRate := 0.0
	if rate != nil {
		if *rate <= 0 {
			return nil, fmt.Errorf("%w: repayment rate must be positive", validation.ErrValidationFailed)
		}
		newRate = *rate
	} else {
		newRate = dl.fx.GetRate(repaymentCurrency, debt.PrincipalCurrency, time.Now())
	}

	if debt.RepaymentCurrency != "" && debt.RepaymentRateOnStart != 0 && !confirm {
		if math.Abs(debt.RepaymentRateOnStart-newRate) > dl.epsilon {
			logger.L.Info("Repayment rate change blocked pending confirmation",
				"debtID", debtID, "stored", debt.RepaymentRateOnStart, "requested", newRate)
			return nil, fx.ErrConfirmationRequired
		}
	}

	debt.RepaymentCurrency = repaymentCurrency
	debt.RepaymentRateOnStart = newRate
	if err := dl.store.UpdateDebt(debt); err != nil {
		return nil, err
	}
	logger.L.Info("Repayment currency set", "debtID", debtID, "currency", repaymentCurrency, "rate", newRate)
	return debt, nil
}

type DebtPatch struct {
	CounterpartyID *string            `json:"counterparty_id,omitempty"`
	DueDate        *time.Time         `json:"due_date,omitempty"`
	Note           *string            `json:"note,omitempty"`
	ForceStatus    *models.DebtStatus `json:"force_status,omitempty"`
}

// UpdateDebt mutates debt metadata. Remaining amount is never settable here;
// status is derived, except when the owner force-sets it explicitly.
func (dl *DebtLedger) UpdateDebt(id models.DebtID, patch DebtPatch) (*models.Debt, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	debt, err := dl.store.GetDebt(id)
	if err != nil {
		return nil, err
	}
	if patch.CounterpartyID != nil {
		debt.CounterpartyID = validation.SanitizeText(*patch.CounterpartyID)
	}
	if patch.DueDate != nil {
		debt.DueDate = models.NullTime{Time: *patch.DueDate, Valid: true}
	}
	if patch.Note != nil {
		debt.Note = validation.SanitizeText(*patch.Note)
	}
	if patch.ForceStatus != nil {
		debt.Status = *patch.ForceStatus
	} else {
		debt.Status = debt.DeriveStatus(time.Now())
	}
	if err := dl.store.UpdateDebt(debt); err != nil {
		return nil, err
	}
	return debt, nil
}

// DeleteDebt removes the debt and its payment records and reverses the
// funding transaction. Payment transactions stay in the ledger as ordinary
// history.
func (dl *DebtLedger) DeleteDebt(id models.DebtID) error {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	debt, err := dl.store.GetDebt(id)
	if err != nil {
		return err
	}
	if debt.FundingTransactionID != 0 {
		if err := dl.engine.DeleteTransaction(debt.FundingTransactionID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reversing funding transaction: %w", err)
		}
	}
	if err := dl.store.DeleteDebtPayments(id); err != nil {
		return err
	}
	if err := dl.store.DeleteDebt(id); err != nil {
		return err
	}
	logger.L.Info("Debt deleted", "debtID", id)
	return nil
}

// GetDebt returns the debt with its status freshly derived.
func (dl *DebtLedger) GetDebt(id models.DebtID) (*models.Debt, error) {
	debt, err := dl.store.GetDebt(id)
	if err != nil {
		return nil, err
	}
	return dl.withDerivedStatus(debt), nil
}

// ListDebts returns all debts with statuses freshly derived.
func (dl *DebtLedger) ListDebts() ([]models.Debt, error) {
	debts, err := dl.store.ListDebts()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range debts {
		debts[i].Status = debts[i].DeriveStatus(now)
	}
	return debts, nil
}

func (dl *DebtLedger) ListPayments(debtID models.DebtID) ([]models.DebtPayment, error) {
	return dl.store.ListDebtPayments(debtID)
}

func (dl *DebtLedger) withDerivedStatus(d *models.Debt) *models.Debt {
	d.Status = d.DeriveStatus(time.Now())
	return d
}

// paymentForTransaction finds the payment record booked together with the
// given ledger transaction.
func (dl *DebtLedger) paymentForTransaction(debtID models.DebtID, txID models.TransactionID) *models.DebtPayment {
	payments, err := dl.store.ListDebtPayments(debtID)
	if err != nil {
		return nil
	}
	for i := range payments {
		if payments[i].RelatedTransactionID == txID {
			return &payments[i]
		}
	}
	return nil
}
