package store

import (
	"errors"
	"testing"
	"time"

	"github.com/username/hamyon/backend/src/models"
)

func TestMemoryStoreAccountLifecycle(t *testing.T) {
	s := NewMemoryStore()

	a := &models.Account{Name: "Cash", Currency: models.CurrencyUZS}
	if err := s.CreateAccount(a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if a.ID == 0 {
		t.Fatal("CreateAccount did not assign an ID")
	}

	got, err := s.GetAccount(a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	// Stored value is a copy; mutating the result must not leak back.
	got.Name = "Changed"
	again, _ := s.GetAccount(a.ID)
	if again.Name != "Cash" {
		t.Errorf("stored account mutated through returned pointer: %q", again.Name)
	}

	if _, err := s.GetAccount(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateAccount(&models.Account{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateAccount(missing) expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListOrdering(t *testing.T) {
	s := NewMemoryStore()
	for _, name := range []string{"A", "B", "C"} {
		if err := s.CreateAccount(&models.Account{Name: name, Currency: models.CurrencyUZS}); err != nil {
			t.Fatalf("CreateAccount(%s): %v", name, err)
		}
	}
	out, err := s.ListAccounts()
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, expected 3", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].ID <= out[i-1].ID {
			t.Errorf("accounts not ordered by ID: %v", out)
		}
	}
}

func TestMemoryStoreFindByIdempotencyKey(t *testing.T) {
	s := NewMemoryStore()

	tx := &models.Transaction{Type: models.TransactionTypeExpense, Amount: 10, IdempotencyKey: "k-1"}
	if err := s.CreateTransaction(tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if err := s.CreateTransaction(&models.Transaction{Type: models.TransactionTypeExpense, Amount: 20}); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	found, err := s.FindTransactionByKey("k-1")
	if err != nil {
		t.Fatalf("FindTransactionByKey: %v", err)
	}
	if found.ID != tx.ID {
		t.Errorf("found ID %d, expected %d", found.ID, tx.ID)
	}
	if _, err := s.FindTransactionByKey("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// An empty key never matches keyless records.
	if _, err := s.FindTransactionByKey(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty key expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreDebtPayments(t *testing.T) {
	s := NewMemoryStore()
	d := &models.Debt{Direction: models.DebtDirectionIOwe, PrincipalAmount: 100}
	if err := s.CreateDebt(d); err != nil {
		t.Fatalf("CreateDebt: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.CreateDebtPayment(&models.DebtPayment{DebtID: d.ID, Amount: float64(10 * (i + 1))}); err != nil {
			t.Fatalf("CreateDebtPayment: %v", err)
		}
	}
	if err := s.CreateDebtPayment(&models.DebtPayment{DebtID: 999, Amount: 5}); err != nil {
		t.Fatalf("CreateDebtPayment(other): %v", err)
	}

	payments, err := s.ListDebtPayments(d.ID)
	if err != nil {
		t.Fatalf("ListDebtPayments: %v", err)
	}
	if len(payments) != 3 {
		t.Fatalf("len = %d, expected 3", len(payments))
	}

	if err := s.DeleteDebtPayment(payments[0].ID); err != nil {
		t.Fatalf("DeleteDebtPayment: %v", err)
	}
	payments, _ = s.ListDebtPayments(d.ID)
	if len(payments) != 2 {
		t.Fatalf("len after single delete = %d, expected 2", len(payments))
	}
	if err := s.DeleteDebtPayment(12345); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDebtPayment(missing) expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteDebtPayments(d.ID); err != nil {
		t.Fatalf("DeleteDebtPayments: %v", err)
	}
	payments, _ = s.ListDebtPayments(d.ID)
	if len(payments) != 0 {
		t.Errorf("payments after delete = %d, expected 0", len(payments))
	}
	// Other debts' payments are untouched.
	other, _ := s.ListDebtPayments(999)
	if len(other) != 1 {
		t.Errorf("other debt payments = %d, expected 1", len(other))
	}
}

func TestMemoryStoreBudgetCategoriesCopied(t *testing.T) {
	s := NewMemoryStore()
	b := &models.Budget{Name: "Food", Categories: []string{"Food & Dining"}}
	if err := s.CreateBudget(b); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	got, err := s.GetBudget(b.ID)
	if err != nil {
		t.Fatalf("GetBudget: %v", err)
	}
	got.Categories[0] = "changed"
	again, _ := s.GetBudget(b.ID)
	if again.Categories[0] != "Food & Dining" {
		t.Errorf("stored categories mutated through returned slice: %v", again.Categories)
	}
}

func TestMemoryStoreFxRateSelection(t *testing.T) {
	s := NewMemoryStore()
	day := func(d int) time.Time { return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC) }

	rates := []models.FxRate{
		{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyUZS, Rate: 12400, Date: day(1)},
		{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyUZS, Rate: 12500, Date: day(10)},
		{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyUZS, Rate: 12999, Date: day(20)},
	}
	for i := range rates {
		if err := s.SaveFxRate(&rates[i]); err != nil {
			t.Fatalf("SaveFxRate: %v", err)
		}
	}

	// Latest record at or before the asOf date wins.
	got, err := s.FindFxRate(models.CurrencyUSD, models.CurrencyUZS, day(15))
	if err != nil {
		t.Fatalf("FindFxRate: %v", err)
	}
	if got.Rate != 12500 {
		t.Errorf("Rate = %v, expected 12500", got.Rate)
	}

	if _, err := s.FindFxRate(models.CurrencyUSD, models.CurrencyUZS, day(1).AddDate(0, 0, -1)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before the first record, got %v", err)
	}
	if _, err := s.FindFxRate(models.CurrencyEUR, models.CurrencyUZS, day(15)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unseen pair, got %v", err)
	}
}

func TestMemoryStoreFxRateOverrideSelection(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	if err := s.SaveFxRate(&models.FxRate{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyEUR, Rate: 0.9, Date: now}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}
	if _, err := s.FindFxRateOverride(models.CurrencyUSD, models.CurrencyEUR); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-override record must not match, got %v", err)
	}

	if err := s.SaveFxRate(&models.FxRate{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyEUR, Rate: 0.95, Date: now, IsOverridden: true}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}
	if err := s.SaveFxRate(&models.FxRate{FromCurrency: models.CurrencyUSD, ToCurrency: models.CurrencyEUR, Rate: 0.80, Date: now, IsOverridden: true}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	// The newest override wins.
	got, err := s.FindFxRateOverride(models.CurrencyUSD, models.CurrencyEUR)
	if err != nil {
		t.Fatalf("FindFxRateOverride: %v", err)
	}
	if got.Rate != 0.80 {
		t.Errorf("Rate = %v, expected latest override 0.80", got.Rate)
	}
}
