package ledger

import (
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/store"
)

// EntityScope namespaces idempotency keys. A key is unique within one scope
// but may collide harmlessly with a key used for another entity type.
type EntityScope string

const (
	ScopeTransactions EntityScope = "transactions"
	ScopeDebts        EntityScope = "debts"
	ScopeBudgets      EntityScope = "budgets"
)

// IdempotencyGuard detects replayed commands. It is backed by the persisted
// entity's own idempotency column rather than a separate table: a duplicate
// command is found by querying for an existing record with the same key.
// Recording happens implicitly when the entity is persisted.
type IdempotencyGuard struct {
	store store.Store
}

func NewIdempotencyGuard(s store.Store) *IdempotencyGuard {
	return &IdempotencyGuard{store: s}
}

// ShouldApply reports whether a command carrying the given key has not been
// applied yet within the scope. An empty key always applies.
func (g *IdempotencyGuard) ShouldApply(scope EntityScope, key string) bool {
	if key == "" {
		return true
	}
	switch scope {
	case ScopeTransactions:
		_, err := g.store.FindTransactionByKey(key)
		return err != nil
	case ScopeDebts:
		_, err := g.store.FindDebtByKey(key)
		return err != nil
	case ScopeBudgets:
		_, err := g.store.FindBudgetByKey(key)
		return err != nil
	}
	return true
}

// ExistingTransaction returns the previously-created transaction for a
// replayed key, or nil.
func (g *IdempotencyGuard) ExistingTransaction(key string) *models.Transaction {
	if key == "" {
		return nil
	}
	t, err := g.store.FindTransactionByKey(key)
	if err != nil {
		return nil
	}
	return t
}

// ExistingDebt returns the previously-created debt for a replayed key, or nil.
func (g *IdempotencyGuard) ExistingDebt(key string) *models.Debt {
	if key == "" {
		return nil
	}
	d, err := g.store.FindDebtByKey(key)
	if err != nil {
		return nil
	}
	return d
}

// ExistingBudget returns the previously-created budget for a replayed key, or nil.
func (g *IdempotencyGuard) ExistingBudget(key string) *models.Budget {
	if key == "" {
		return nil
	}
	b, err := g.store.FindBudgetByKey(key)
	if err != nil {
		return nil
	}
	return b
}
