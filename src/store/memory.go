package store

import (
	"sort"
	"sync"
	"time"

	"github.com/username/hamyon/backend/src/models"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suites
// and can serve as a throwaway backend; the sqlite store is the durable one.
type MemoryStore struct {
	mu sync.RWMutex

	accounts     map[models.AccountID]models.Account
	transactions map[models.TransactionID]models.Transaction
	debts        map[models.DebtID]models.Debt
	payments     map[models.PaymentID]models.DebtPayment
	budgets      map[models.BudgetID]models.Budget
	fxRates      []models.FxRate

	nextAccountID     models.AccountID
	nextTransactionID models.TransactionID
	nextDebtID        models.DebtID
	nextPaymentID     models.PaymentID
	nextBudgetID      models.BudgetID
	nextFxRateID      int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:     make(map[models.AccountID]models.Account),
		transactions: make(map[models.TransactionID]models.Transaction),
		debts:        make(map[models.DebtID]models.Debt),
		payments:     make(map[models.PaymentID]models.DebtPayment),
		budgets:      make(map[models.BudgetID]models.Budget),
	}
}

func (s *MemoryStore) CreateAccount(a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAccountID++
	a.ID = s.nextAccountID
	s.accounts[a.ID] = *a
	return nil
}

func (s *MemoryStore) UpdateAccount(a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return ErrNotFound
	}
	s.accounts[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAccount(id models.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAccounts() ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateTransaction(t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTransactionID++
	t.ID = s.nextTransactionID
	s.transactions[t.ID] = *t
	return nil
}

func (s *MemoryStore) UpdateTransaction(t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return ErrNotFound
	}
	s.transactions[t.ID] = *t
	return nil
}

func (s *MemoryStore) DeleteTransaction(id models.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *MemoryStore) GetTransaction(id models.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) ListTransactions() ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindTransactionByKey(key string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.IdempotencyKey != "" && t.IdempotencyKey == key {
			tt := t
			return &tt, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateDebt(d *models.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDebtID++
	d.ID = s.nextDebtID
	s.debts[d.ID] = *d
	return nil
}

func (s *MemoryStore) UpdateDebt(d *models.Debt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[d.ID]; !ok {
		return ErrNotFound
	}
	s.debts[d.ID] = *d
	return nil
}

func (s *MemoryStore) DeleteDebt(id models.DebtID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.debts[id]; !ok {
		return ErrNotFound
	}
	delete(s.debts, id)
	return nil
}

func (s *MemoryStore) GetDebt(id models.DebtID) (*models.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDebts() ([]models.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Debt, 0, len(s.debts))
	for _, d := range s.debts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindDebtByKey(key string) (*models.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.debts {
		if d.IdempotencyKey != "" && d.IdempotencyKey == key {
			dd := d
			return &dd, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateDebtPayment(p *models.DebtPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPaymentID++
	p.ID = s.nextPaymentID
	s.payments[p.ID] = *p
	return nil
}

func (s *MemoryStore) ListDebtPayments(debtID models.DebtID) ([]models.DebtPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DebtPayment
	for _, p := range s.payments {
		if p.DebtID == debtID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) DeleteDebtPayment(id models.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return ErrNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s *MemoryStore) DeleteDebtPayments(debtID models.DebtID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if p.DebtID == debtID {
			delete(s.payments, id)
		}
	}
	return nil
}

func (s *MemoryStore) CreateBudget(b *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBudgetID++
	b.ID = s.nextBudgetID
	s.budgets[b.ID] = *b
	return nil
}

func (s *MemoryStore) UpdateBudget(b *models.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[b.ID]; !ok {
		return ErrNotFound
	}
	s.budgets[b.ID] = *b
	return nil
}

func (s *MemoryStore) DeleteBudget(id models.BudgetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[id]; !ok {
		return ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *MemoryStore) GetBudget(id models.BudgetID) (*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.budgets[id]
	if !ok {
		return nil, ErrNotFound
	}
	bb := b
	bb.Categories = append([]string(nil), b.Categories...)
	return &bb, nil
}

func (s *MemoryStore) ListBudgets() ([]models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		bb := b
		bb.Categories = append([]string(nil), b.Categories...)
		out = append(out, bb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindBudgetByKey(key string) (*models.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.budgets {
		if b.IdempotencyKey != "" && b.IdempotencyKey == key {
			bb := b
			bb.Categories = append([]string(nil), b.Categories...)
			return &bb, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SaveFxRate(r *models.FxRate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFxRateID++
	r.ID = s.nextFxRateID
	s.fxRates = append(s.fxRates, *r)
	return nil
}

func (s *MemoryStore) FindFxRate(from, to models.Currency, asOf time.Time) (*models.FxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.FxRate
	for i := range s.fxRates {
		r := s.fxRates[i]
		if r.FromCurrency != from || r.ToCurrency != to || r.Date.After(asOf) {
			continue
		}
		if best == nil || r.Date.After(best.Date) || (r.Date.Equal(best.Date) && r.ID > best.ID) {
			rr := r
			best = &rr
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) FindFxRateOverride(from, to models.Currency) (*models.FxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.FxRate
	for i := range s.fxRates {
		r := s.fxRates[i]
		if r.FromCurrency != from || r.ToCurrency != to || !r.IsOverridden {
			continue
		}
		if best == nil || r.ID > best.ID {
			rr := r
			best = &rr
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) ListFxRates() ([]models.FxRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FxRate, len(s.fxRates))
	copy(out, s.fxRates)
	return out, nil
}
