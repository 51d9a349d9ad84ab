package services

import (
	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/logger"
	"github.com/username/hamyon/backend/src/models"
)

// BudgetNotifier is the default budget.Notifier implementation. Delivery
// mechanics (push, email) live outside the ledger; this one emits a
// structured log line that an external notifier tails.
type BudgetNotifier struct{}

func NewBudgetNotifier() *BudgetNotifier {
	return &BudgetNotifier{}
}

func (n *BudgetNotifier) NotifyBudgetExceeded(budget models.Budget, account models.Account, exceededAmount float64) {
	logger.L.Warn("Budget exceeded",
		"budgetID", budget.ID,
		"budget", budget.Name,
		"limit", budget.LimitAmount,
		"spent", budget.SpentAmount,
		"exceededAmount", fx.RoundAmount(budget.Currency, exceededAmount),
		"currency", budget.Currency,
		"account", account.Name,
		"accountCurrency", account.Currency,
	)
}
