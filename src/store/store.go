package store

import (
	"errors"
	"time"

	"github.com/username/hamyon/backend/src/models"
)

// ErrNotFound is returned when a record id or lookup key matches nothing.
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator for the ledger core. Every call
// either fully applies or leaves the backing state untouched; the ledger
// never observes a torn write.
type Store interface {
	CreateAccount(a *models.Account) error
	UpdateAccount(a *models.Account) error
	GetAccount(id models.AccountID) (*models.Account, error)
	ListAccounts() ([]models.Account, error)

	CreateTransaction(t *models.Transaction) error
	UpdateTransaction(t *models.Transaction) error
	DeleteTransaction(id models.TransactionID) error
	GetTransaction(id models.TransactionID) (*models.Transaction, error)
	ListTransactions() ([]models.Transaction, error)
	FindTransactionByKey(idempotencyKey string) (*models.Transaction, error)

	CreateDebt(d *models.Debt) error
	UpdateDebt(d *models.Debt) error
	DeleteDebt(id models.DebtID) error
	GetDebt(id models.DebtID) (*models.Debt, error)
	ListDebts() ([]models.Debt, error)
	FindDebtByKey(idempotencyKey string) (*models.Debt, error)

	CreateDebtPayment(p *models.DebtPayment) error
	ListDebtPayments(debtID models.DebtID) ([]models.DebtPayment, error)
	DeleteDebtPayment(id models.PaymentID) error
	DeleteDebtPayments(debtID models.DebtID) error

	CreateBudget(b *models.Budget) error
	UpdateBudget(b *models.Budget) error
	DeleteBudget(id models.BudgetID) error
	GetBudget(id models.BudgetID) (*models.Budget, error)
	ListBudgets() ([]models.Budget, error)
	FindBudgetByKey(idempotencyKey string) (*models.Budget, error)

	SaveFxRate(r *models.FxRate) error
	// FindFxRate returns the most recent rate record for the exact
	// from/to pair dated at or before asOf.
	FindFxRate(from, to models.Currency, asOf time.Time) (*models.FxRate, error)
	// FindFxRateOverride returns the most recent overridden pairwise record
	// for the exact from/to pair, regardless of date.
	FindFxRateOverride(from, to models.Currency) (*models.FxRate, error)
	ListFxRates() ([]models.FxRate, error)
}
