package budget

import (
	"math"
	"time"

	"github.com/username/hamyon/backend/src/models"
)

// Notifier receives budget-exceeded signals. Delivery is fire-and-forget;
// the reconciler never waits on it or reads a result.
type Notifier interface {
	NotifyBudgetExceeded(budget models.Budget, account models.Account, exceededAmount float64)
}

// Reconciler re-derives budget usage from the transaction log. Reconcile is
// pure and repeatable: the same inputs yield identical budgets, and the
// exceeded notification fires only on the edge into the exceeding state,
// never again while the budget stays exceeded.
type Reconciler struct {
	notifier Notifier
}

func NewReconciler(n Notifier) *Reconciler {
	return &Reconciler{notifier: n}
}

// Reconcile recomputes spent/remaining/state for every budget from the given
// transactions. Inputs are not mutated; the returned slice carries the new
// derived fields.
func (r *Reconciler) Reconcile(budgets []models.Budget, transactions []models.Transaction, accounts []models.Account, now time.Time) []models.Budget {
	accountsByID := make(map[models.AccountID]models.Account, len(accounts))
	for _, a := range accounts {
		accountsByID[a.ID] = a
	}

	out := make([]models.Budget, len(budgets))
	for i, b := range budgets {
		updated := b
		updated.Categories = append([]string(nil), b.Categories...)

		spent := 0.0
		for _, t := range transactions {
			if matches(&b, &t) {
				spent += math.Abs(t.Amount)
			}
		}
		updated.SpentAmount = spent
		updated.RemainingAmount = math.Max(b.LimitAmount-spent, 0)
		updated.State = deriveState(spent, b.LimitAmount)

		if updated.State == models.BudgetStateExceeding && b.State != models.BudgetStateExceeding && b.NotifyOnExceed {
			updated.LastNotifiedAt = models.NullTime{Time: now, Valid: true}
			if r.notifier != nil {
				r.notifier.NotifyBudgetExceeded(updated, accountsByID[b.AccountID], spent-b.LimitAmount)
			}
		}
		out[i] = updated
	}
	return out
}

// matches reports whether a transaction counts against a budget: same type,
// same account, dated inside the period window, category inside the set
// (empty set = all).
func matches(b *models.Budget, t *models.Transaction) bool {
	if t.Type != b.TransactionType {
		return false
	}
	if t.AccountID != b.AccountID {
		return false
	}
	if t.Date.Before(b.PeriodStart) || t.Date.After(b.PeriodEnd) {
		return false
	}
	return b.MatchesCategory(t.CategoryID)
}

// deriveState is the pure state rule: exceeding once spent passes the limit,
// fixed when spent sits within one unit of the limit, within otherwise.
func deriveState(spent, limit float64) models.BudgetState {
	if spent > limit {
		return models.BudgetStateExceeding
	}
	if limit-spent <= 1 {
		return models.BudgetStateFixed
	}
	return models.BudgetStateWithin
}
