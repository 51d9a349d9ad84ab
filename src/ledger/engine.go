package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
)

var (
	// ErrAccountArchived is returned when a command targets an archived account.
	ErrAccountArchived = errors.New("account is archived")
)

// Engine owns accounts and transactions. Every command runs to completion
// under the engine mutex: reads, balance arithmetic and persistence are never
// interleaved with another writer. Reversal-then-reapply on edits is not safe
// under concurrent writers, so the serialization here is load-bearing.
type Engine struct {
	mu    sync.Mutex
	store store.Store
	fx    *fx.Resolver
	base  models.Currency
	guard *IdempotencyGuard
}

func NewEngine(s store.Store, resolver *fx.Resolver, base models.Currency) *Engine {
	return &Engine{
		store: s,
		fx:    resolver,
		base:  base,
		guard: NewIdempotencyGuard(s),
	}
}

// Guard exposes the engine's idempotency guard so sibling services share one
// deduplication layer.
func (e *Engine) Guard() *IdempotencyGuard {
	return e.guard
}

type CreateAccountInput struct {
	OwnerID        int64              `json:"owner_id"`
	Name           string             `json:"name"`
	Kind           models.AccountKind `json:"kind"`
	Currency       models.Currency    `json:"currency"`
	InitialBalance float64            `json:"initial_balance"`
}

func (e *Engine) CreateAccount(in CreateAccountInput) (*models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validation.ValidateStringNotEmpty(in.Name, "account name"); err != nil {
		return nil, err
	}
	if err := validation.ValidateCurrencyCode(string(in.Currency)); err != nil {
		return nil, err
	}
	if !in.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown account kind %q", validation.ErrValidationFailed, in.Kind)
	}
	ownerID := in.OwnerID
	if ownerID == 0 {
		ownerID = 1
	}

	acc := &models.Account{
		OwnerID:        ownerID,
		Name:           validation.SanitizeText(in.Name),
		Kind:           in.Kind,
		Currency:       in.Currency,
		InitialBalance: in.InitialBalance,
		CurrentBalance: in.InitialBalance,
	}
	if err := e.store.CreateAccount(acc); err != nil {
		return nil, err
	}
	logger.L.Info("Account created", "accountID", acc.ID, "currency", acc.Currency, "initialBalance", acc.InitialBalance)
	return acc, nil
}

type AccountPatch struct {
	Name *string             `json:"name,omitempty"`
	Kind *models.AccountKind `json:"kind,omitempty"`
}

func (e *Engine) UpdateAccount(id models.AccountID, patch AccountPatch) (*models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := e.store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := validation.ValidateStringNotEmpty(*patch.Name, "account name"); err != nil {
			return nil, err
		}
		acc.Name = validation.SanitizeText(*patch.Name)
	}
	if patch.Kind != nil {
		if !patch.Kind.IsValid() {
			return nil, fmt.Errorf("%w: unknown account kind %q", validation.ErrValidationFailed, *patch.Kind)
		}
		acc.Kind = *patch.Kind
	}
	if err := e.store.UpdateAccount(acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// ArchiveAccount soft-archives an account. Accounts referenced by
// transactions are never deleted; archiving keeps history intact while
// rejecting new movements.
func (e *Engine) ArchiveAccount(id models.AccountID) (*models.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	acc, err := e.store.GetAccount(id)
	if err != nil {
		return nil, err
	}
	acc.IsArchived = true
	if err := e.store.UpdateAccount(acc); err != nil {
		return nil, err
	}
	logger.L.Info("Account archived", "accountID", acc.ID)
	return acc, nil
}

func (e *Engine) GetAccount(id models.AccountID) (*models.Account, error) {
	return e.store.GetAccount(id)
}

func (e *Engine) ListAccounts() ([]models.Account, error) {
	return e.store.ListAccounts()
}

type CreateTransactionInput struct {
	Type            models.TransactionType `json:"type"`
	AccountID       models.AccountID       `json:"account_id"`
	ToAccountID     models.AccountID       `json:"to_account_id,omitempty"`
	Amount          float64                `json:"amount"`
	Currency        models.Currency        `json:"currency"`
	CategoryID      string                 `json:"category_id,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Date            time.Time              `json:"date"`
	RelatedDebtID   models.DebtID          `json:"related_debt_id,omitempty"`
	RelatedBudgetID models.BudgetID        `json:"related_budget_id,omitempty"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty"`
}

// CreateTransaction validates the input, freezes the base-currency snapshot,
// applies the balance delta and persists the record. A replayed idempotency
// key returns the stored transaction unchanged.
func (e *Engine) CreateTransaction(in CreateTransactionInput) (*models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.guard.ShouldApply(ScopeTransactions, in.IdempotencyKey) {
		existing := e.guard.ExistingTransaction(in.IdempotencyKey)
		logger.L.Info("Duplicate transaction command replayed, returning stored record",
			"idempotencyKey", in.IdempotencyKey, "transactionID", existing.ID)
		return existing, nil
	}

	if err := e.validateTransactionFields(in.Type, in.AccountID, in.ToAccountID, in.Amount, in.Currency); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	rate := e.fx.GetRate(in.Currency, e.base, date)

	t := &models.Transaction{
		Type:                  in.Type,
		AccountID:             in.AccountID,
		Amount:                in.Amount,
		Currency:              in.Currency,
		BaseCurrency:          e.base,
		RateUsedToBase:        rate,
		ConvertedAmountToBase: in.Amount * rate,
		CategoryID:            in.CategoryID,
		Description:           validation.SanitizeText(in.Description),
		Date:                  date,
		RelatedDebtID:         in.RelatedDebtID,
		RelatedBudgetID:       in.RelatedBudgetID,
		IdempotencyKey:        in.IdempotencyKey,
	}
	if in.Type == models.TransactionTypeTransfer {
		t.ToAccountID = in.ToAccountID
	}

	if err := e.applyDelta(t, +1); err != nil {
		return nil, err
	}
	if err := e.store.CreateTransaction(t); err != nil {
		// Undo the balance effect so a failed persist is a full no-op.
		if revErr := e.applyDelta(t, -1); revErr != nil {
			logger.L.Error("Failed to revert balance after persist error", "error", revErr)
		}
		return nil, err
	}
	logger.L.Info("Transaction created", "transactionID", t.ID, "type", t.Type, "amount", t.Amount, "currency", t.Currency)
	return t, nil
}

type TransactionPatch struct {
	Type        *models.TransactionType `json:"type,omitempty"`
	AccountID   *models.AccountID       `json:"account_id,omitempty"`
	ToAccountID *models.AccountID       `json:"to_account_id,omitempty"`
	Amount      *float64                `json:"amount,omitempty"`
	Currency    *models.Currency        `json:"currency,omitempty"`
	CategoryID  *string                 `json:"category_id,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Date        *time.Time              `json:"date,omitempty"`
}

// UpdateTransaction reverses the stored balance effect, merges the patch and
// re-applies. The reverse-then-reapply path is uniform for every edit, even
// metadata-only ones, so balances stay correct whenever amount, account or
// type change. The base-rate snapshot is frozen: amount edits recompute the
// converted amount from the stored rate; only a currency change takes a new
// snapshot.
func (e *Engine) UpdateTransaction(id models.TransactionID, patch TransactionPatch) (*models.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.GetTransaction(id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if patch.Type != nil {
		updated.Type = *patch.Type
	}
	if patch.AccountID != nil {
		updated.AccountID = *patch.AccountID
	}
	if patch.ToAccountID != nil {
		updated.ToAccountID = *patch.ToAccountID
	}
	if patch.Amount != nil {
		updated.Amount = *patch.Amount
	}
	if patch.Currency != nil && *patch.Currency != existing.Currency {
		updated.Currency = *patch.Currency
		// New currency invalidates the old snapshot by definition.
		updated.RateUsedToBase = e.fx.GetRate(updated.Currency, e.base, updated.Date)
	}
	if patch.CategoryID != nil {
		updated.CategoryID = *patch.CategoryID
	}
	if patch.Description != nil {
		updated.Description = validation.SanitizeText(*patch.Description)
	}
	if patch.Date != nil {
		updated.Date = *patch.Date
	}
	if updated.Type != models.TransactionTypeTransfer {
		updated.ToAccountID = 0
	}
	updated.ConvertedAmountToBase = updated.Amount * updated.RateUsedToBase

	if err := e.validateTransactionFields(updated.Type, updated.AccountID, updated.ToAccountID, updated.Amount, updated.Currency); err != nil {
		return nil, err
	}

	if err := e.applyDelta(existing, -1); err != nil {
		return nil, err
	}
	if err := e.applyDelta(&updated, +1); err != nil {
		// Restore the original effect; the command must be a no-op on failure.
		if revErr := e.applyDelta(existing, +1); revErr != nil {
			logger.L.Error("Failed to restore balance after update error", "transactionID", id, "error", revErr)
		}
		return nil, err
	}
	if err := e.store.UpdateTransaction(&updated); err != nil {
		if revErr := e.applyDelta(&updated, -1); revErr == nil {
			if revErr = e.applyDelta(existing, +1); revErr != nil {
				logger.L.Error("Failed to restore balance after persist error", "transactionID", id, "error", revErr)
			}
		}
		return nil, err
	}
	logger.L.Info("Transaction updated", "transactionID", id)
	return &updated, nil
}

// DeleteTransaction reverses the balance effect and removes the record from
// history.
func (e *Engine) DeleteTransaction(id models.TransactionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteTransactionLocked(id)
}

func (e *Engine) deleteTransactionLocked(id models.TransactionID) error {
	t, err := e.store.GetTransaction(id)
	if err != nil {
		return err
	}
	if err := e.applyDelta(t, -1); err != nil {
		return err
	}
	if err := e.store.DeleteTransaction(id); err != nil {
		if revErr := e.applyDelta(t, +1); revErr != nil {
			logger.L.Error("Failed to restore balance after delete error", "transactionID", id, "error", revErr)
		}
		return err
	}
	logger.L.Info("Transaction deleted", "transactionID", id)
	return nil
}

func (e *Engine) GetTransaction(id models.TransactionID) (*models.Transaction, error) {
	return e.store.GetTransaction(id)
}

func (e *Engine) ListTransactions() ([]models.Transaction, error) {
	return e.store.ListTransactions()
}

func (e *Engine) validateTransactionFields(txType models.TransactionType, accountID, toAccountID models.AccountID, amount float64, currency models.Currency) error {
	if !txType.IsValid() {
		return fmt.Errorf("%w: unknown transaction type %q", validation.ErrValidationFailed, txType)
	}
	if err := validation.ValidateAmountPositive(amount, "amount"); err != nil {
		return err
	}
	if err := validation.ValidateCurrencyCode(string(currency)); err != nil {
		return err
	}
	acc, err := e.store.GetAccount(accountID)
	if err != nil {
		return fmt.Errorf("%w: account %d", validation.ErrValidationFailed, accountID)
	}
	if acc.IsArchived {
		return fmt.Errorf("%w (account %d)", ErrAccountArchived, accountID)
	}
	if txType == models.TransactionTypeTransfer {
		if toAccountID == accountID {
			return fmt.Errorf("%w: transfer to the same account", validation.ErrValidationFailed)
		}
		dst, err := e.store.GetAccount(toAccountID)
		if err != nil {
			return fmt.Errorf("%w: destination account %d", validation.ErrValidationFailed, toAccountID)
		}
		if dst.IsArchived {
			return fmt.Errorf("%w (account %d)", ErrAccountArchived, toAccountID)
		}
	}
	return nil
}

// applyDelta applies (direction=+1) or reverses (direction=-1) the balance
// effect of a transaction. Income adds to the account, expense subtracts,
// transfer moves the amount from the source to the destination. The amount is
// expressed in the source account's currency and is applied unconverted to
// both transfer legs; see DESIGN.md for the cross-currency note.
func (e *Engine) applyDelta(t *models.Transaction, direction float64) error {
	acc, err := e.store.GetAccount(t.AccountID)
	if err != nil {
		return err
	}
	switch t.Type {
	case models.TransactionTypeIncome:
		acc.CurrentBalance += direction * t.Amount
	case models.TransactionTypeExpense:
		acc.CurrentBalance -= direction * t.Amount
	case models.TransactionTypeTransfer:
		acc.CurrentBalance -= direction * t.Amount
		dst, err := e.store.GetAccount(t.ToAccountID)
		if err != nil {
			return err
		}
		dst.CurrentBalance += direction * t.Amount
		if err := e.store.UpdateAccount(dst); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", validation.ErrValidationFailed, t.Type)
	}
	return e.store.UpdateAccount(acc)
}
