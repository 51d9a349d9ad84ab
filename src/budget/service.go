package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/username/hamyon/backend/src/ledger"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
)

// Service carries the budget commands and keeps derived fields consistent by
// reconciling after every write.
type Service struct {
	mu         sync.Mutex
	store      store.Store
	reconciler *Reconciler
	guard      *ledger.IdempotencyGuard
}

func NewService(s store.Store, r *Reconciler, guard *ledger.IdempotencyGuard) *Service {
	return &Service{store: s, reconciler: r, guard: guard}
}

type CreateBudgetInput struct {
	Name            string                 `json:"name"`
	Categories      []string               `json:"categories,omitempty"`
	AccountID       models.AccountID       `json:"account_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
	LimitAmount     float64                `json:"limit_amount"`
	Currency        models.Currency        `json:"currency"`
	PeriodStart     time.Time              `json:"period_start"`
	PeriodEnd       time.Time              `json:"period_end"`
	NotifyOnExceed  bool                   `json:"notify_on_exceed"`
	IdempotencyKey  string                 `json:"idempotency_key,omitempty"`
}

func (s *Service) Create(in CreateBudgetInput) (*models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.guard.ShouldApply(ledger.ScopeBudgets, in.IdempotencyKey) {
		existing := s.guard.ExistingBudget(in.IdempotencyKey)
		logger.L.Info("Duplicate budget command replayed, returning stored record",
			"idempotencyKey", in.IdempotencyKey, "budgetID", existing.ID)
		return existing, nil
	}

	if err := s.validate(in.Name, in.TransactionType, in.LimitAmount, in.Currency, in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(in.AccountID); err != nil {
		return nil, fmt.Errorf("%w: account %d", validation.ErrValidationFailed, in.AccountID)
	}

	b := &models.Budget{
		Name:            validation.SanitizeText(in.Name),
		Categories:      in.Categories,
		AccountID:       in.AccountID,
		TransactionType: in.TransactionType,
		LimitAmount:     in.LimitAmount,
		Currency:        in.Currency,
		PeriodStart:     in.PeriodStart,
		PeriodEnd:       in.PeriodEnd,
		RemainingAmount: in.LimitAmount,
		State:           models.BudgetStateWithin,
		NotifyOnExceed:  in.NotifyOnExceed,
		IdempotencyKey:  in.IdempotencyKey,
	}
	if err := s.store.CreateBudget(b); err != nil {
		return nil, err
	}
	logger.L.Info("Budget created", "budgetID", b.ID, "limit", b.LimitAmount, "currency", b.Currency)
	return s.reconcileOne(b.ID)
}

type BudgetPatch struct {
	Name           *string    `json:"name,omitempty"`
	Categories     *[]string  `json:"categories,omitempty"`
	LimitAmount    *float64   `json:"limit_amount,omitempty"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	NotifyOnExceed *bool      `json:"notify_on_exceed,omitempty"`
}

func (s *Service) Update(id models.BudgetID, patch BudgetPatch) (*models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.store.GetBudget(id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if err := validation.ValidateStringNotEmpty(*patch.Name, "budget name"); err != nil {
			return nil, err
		}
		b.Name = validation.SanitizeText(*patch.Name)
	}
	if patch.Categories != nil {
		b.Categories = *patch.Categories
	}
	if patch.LimitAmount != nil {
		if err := validation.ValidateAmountPositive(*patch.LimitAmount, "limit amount"); err != nil {
			return nil, err
		}
		b.LimitAmount = *patch.LimitAmount
	}
	if patch.PeriodStart != nil {
		b.PeriodStart = *patch.PeriodStart
	}
	if patch.PeriodEnd != nil {
		b.PeriodEnd = *patch.PeriodEnd
	}
	if b.PeriodEnd.Before(b.PeriodStart) {
		return nil, fmt.Errorf("%w: period end before period start", validation.ErrValidationFailed)
	}
	if patch.NotifyOnExceed != nil {
		b.NotifyOnExceed = *patch.NotifyOnExceed
	}
	if err := s.store.UpdateBudget(b); err != nil {
		return nil, err
	}
	return s.reconcileOne(id)
}

func (s *Service) Delete(id models.BudgetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteBudget(id); err != nil {
		return err
	}
	logger.L.Info("Budget deleted", "budgetID", id)
	return nil
}

func (s *Service) Get(id models.BudgetID) (*models.Budget, error) {
	return s.store.GetBudget(id)
}

func (s *Service) List() ([]models.Budget, error) {
	return s.store.ListBudgets()
}

// ReconcileAll re-derives every budget from the current transaction log and
// persists the ones whose derived fields changed. Callers run it after any
// transaction mutation that could affect a budget.
func (s *Service) ReconcileAll() ([]models.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileAllLocked()
}

func (s *Service) reconcileAllLocked() ([]models.Budget, error) {
	budgets, err := s.store.ListBudgets()
	if err != nil {
		return nil, err
	}
	if len(budgets) == 0 {
		return budgets, nil
	}
	transactions, err := s.store.ListTransactions()
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.ListAccounts()
	if err != nil {
		return nil, err
	}

	updated := s.reconciler.Reconcile(budgets, transactions, accounts, time.Now())
	for i := range updated {
		if budgetDerivedEqual(&budgets[i], &updated[i]) {
			continue
		}
		if err := s.store.UpdateBudget(&updated[i]); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

func (s *Service) reconcileOne(id models.BudgetID) (*models.Budget, error) {
	updated, err := s.reconcileAllLocked()
	if err != nil {
		return nil, err
	}
	for i := range updated {
		if updated[i].ID == id {
			return &updated[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Service) validate(name string, txType models.TransactionType, limit float64, currency models.Currency, start, end time.Time) error {
	if err := validation.ValidateStringNotEmpty(name, "budget name"); err != nil {
		return err
	}
	if txType != models.TransactionTypeIncome && txType != models.TransactionTypeExpense {
		return fmt.Errorf("%w: budget transaction type must be income or expense", validation.ErrValidationFailed)
	}
	if err := validation.ValidateAmountPositive(limit, "limit amount"); err != nil {
		return err
	}
	if err := validation.ValidateCurrencyCode(string(currency)); err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: period end before period start", validation.ErrValidationFailed)
	}
	return nil
}

func budgetDerivedEqual(a, b *models.Budget) bool {
	return a.SpentAmount == b.SpentAmount &&
		a.RemainingAmount == b.RemainingAmount &&
		a.State == b.State &&
		a.LastNotifiedAt.Valid == b.LastNotifiedAt.Valid
}
