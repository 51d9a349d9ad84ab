package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/username/hamyon/backend/src/fx"
	"github.com/username/hamyon/backend/src/models"
	"github.com/username/hamyon/backend/src/security/validation"
	"github.com/username/hamyon/backend/src/store"
)

func newTestDebtLedger(t *testing.T) (*DebtLedger, *Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	resolver := fx.NewResolver(s, models.CurrencyUZS, 0.0001)
	engine := NewEngine(s, resolver, models.CurrencyUZS)
	dl := NewDebtLedger(s, resolver, engine, models.CurrencyUZS, 0.0001)
	return dl, engine, s
}

func TestOpenDebtBooksFundingTransaction(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 500000)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	// Borrowed money arrives as income into the funding account.
	if got := accountBalance(t, e, acc.ID); got != 2500000 {
		t.Errorf("funding account balance = %v, expected 2500000", got)
	}
	if debt.RemainingAmount != 2000000 {
		t.Errorf("RemainingAmount = %v, expected full principal", debt.RemainingAmount)
	}
	if debt.Status != models.DebtStatusActive {
		t.Errorf("Status = %s, expected active", debt.Status)
	}
	if debt.FundingTransactionID == 0 {
		t.Fatal("FundingTransactionID not set")
	}

	tx, err := e.GetTransaction(debt.FundingTransactionID)
	if err != nil {
		t.Fatalf("GetTransaction(funding): %v", err)
	}
	if tx.Type != models.TransactionTypeIncome {
		t.Errorf("funding transaction type = %s, expected income", tx.Type)
	}
	if tx.RelatedDebtID != debt.ID {
		t.Errorf("funding transaction RelatedDebtID = %d, expected %d", tx.RelatedDebtID, debt.ID)
	}
}

func TestOpenDebtTheyOweMeBooksExpense(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 3000000)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionTheyOweMe,
		CounterpartyID:    "Bekzod",
		PrincipalAmount:   1000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	// Lending money out leaves the funding account as an expense.
	if got := accountBalance(t, e, acc.ID); got != 2000000 {
		t.Errorf("funding account balance = %v, expected 2000000", got)
	}
	tx, err := e.GetTransaction(debt.FundingTransactionID)
	if err != nil {
		t.Fatalf("GetTransaction(funding): %v", err)
	}
	if tx.Type != models.TransactionTypeExpense {
		t.Errorf("funding transaction type = %s, expected expense", tx.Type)
	}
}

func TestOpenDebtSnapshotsRateOnStart(t *testing.T) {
	dl, e, s := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "USD Card", models.CurrencyUSD, 0)

	if err := s.SaveFxRate(&models.FxRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CurrencyUZS,
		Rate:         12600,
		Date:         time.Now().AddDate(0, 0, -1),
		Source:       models.RateSourceBank,
	}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Bank",
		PrincipalAmount:   100,
		PrincipalCurrency: models.CurrencyUSD,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}
	if debt.RateOnStart != 12600 {
		t.Errorf("RateOnStart = %v, expected 12600", debt.RateOnStart)
	}
	if debt.PrincipalBaseValue != 100*12600 {
		t.Errorf("PrincipalBaseValue = %v, expected %v", debt.PrincipalBaseValue, 100*12600.0)
	}
}

func TestRecordPaymentReducesRemaining(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 500000)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	updated, payment, err := dl.RecordPayment(debt.ID, PaymentInput{
		Amount:    500000,
		Currency:  models.CurrencyUZS,
		AccountID: acc.ID,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	if updated.RemainingAmount != 1500000 {
		t.Errorf("RemainingAmount = %v, expected 1500000", updated.RemainingAmount)
	}
	if updated.Status != models.DebtStatusActive {
		t.Errorf("Status = %s, expected active", updated.Status)
	}
	if payment.ConvertedAmountToDebt != 500000 {
		t.Errorf("ConvertedAmountToDebt = %v, expected 500000", payment.ConvertedAmountToDebt)
	}

	// Paying back an i_owe debt is an expense from the paying account.
	// Balance: 500000 initial + 2000000 funding - 500000 payment.
	if got := accountBalance(t, e, acc.ID); got != 2000000 {
		t.Errorf("account balance = %v, expected 2000000", got)
	}
	tx, err := e.GetTransaction(payment.RelatedTransactionID)
	if err != nil {
		t.Fatalf("GetTransaction(payment): %v", err)
	}
	if tx.Type != models.TransactionTypeExpense {
		t.Errorf("payment transaction type = %s, expected expense", tx.Type)
	}
}

func TestRecordPaymentSettlesAtExactZero(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	if _, _, err := dl.RecordPayment(debt.ID, PaymentInput{Amount: 500000, Currency: models.CurrencyUZS, AccountID: acc.ID}); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	updated, _, err := dl.RecordPayment(debt.ID, PaymentInput{Amount: 1500000, Currency: models.CurrencyUZS, AccountID: acc.ID})
	if err != nil {
		t.Fatalf("settling payment: %v", err)
	}

	if updated.RemainingAmount != 0 {
		t.Errorf("RemainingAmount = %v, expected exactly 0", updated.RemainingAmount)
	}
	if updated.Status != models.DebtStatusSettled {
		t.Errorf("Status = %s, expected settled", updated.Status)
	}

	// Settled debts take no further payments.
	_, _, err = dl.RecordPayment(debt.ID, PaymentInput{Amount: 1, Currency: models.CurrencyUZS, AccountID: acc.ID})
	if !errors.Is(err, ErrDebtSettled) {
		t.Errorf("expected ErrDebtSettled, got %v", err)
	}
}

func TestRecordPaymentOverpaymentFloorsAtZero(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	updated, _, err := dl.RecordPayment(debt.ID, PaymentInput{Amount: 150000, Currency: models.CurrencyUZS, AccountID: acc.ID})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if updated.RemainingAmount != 0 {
		t.Errorf("RemainingAmount = %v, expected floor at 0", updated.RemainingAmount)
	}
	if updated.Status != models.DebtStatusSettled {
		t.Errorf("Status = %s, expected settled", updated.Status)
	}
}

func TestRecordPaymentCrossCurrency(t *testing.T) {
	dl, e, s := newTestDebtLedger(t)
	usdAcc := mustCreateAccount(t, e, "USD Card", models.CurrencyUSD, 0)
	uzsAcc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 500000)

	if err := s.SaveFxRate(&models.FxRate{
		FromCurrency: models.CurrencyUSD,
		ToCurrency:   models.CurrencyUZS,
		Rate:         12500,
		Date:         time.Now().AddDate(0, 0, -1),
		Source:       models.RateSourceBank,
	}); err != nil {
		t.Fatalf("SaveFxRate: %v", err)
	}

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Bank",
		PrincipalAmount:   100,
		PrincipalCurrency: models.CurrencyUSD,
		FundingAccountID:  usdAcc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	// Paying 125000 UZS against a 100 USD principal at 12500 clears 10 USD.
	updated, payment, err := dl.RecordPayment(debt.ID, PaymentInput{
		Amount:    125000,
		Currency:  models.CurrencyUZS,
		AccountID: uzsAcc.ID,
	})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if math.Abs(payment.ConvertedAmountToDebt-10) > 1e-9 {
		t.Errorf("ConvertedAmountToDebt = %v, expected 10", payment.ConvertedAmountToDebt)
	}
	if math.Abs(updated.RemainingAmount-90) > 1e-9 {
		t.Errorf("RemainingAmount = %v, expected 90", updated.RemainingAmount)
	}
}

func TestDebtOverdueDerivation(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	yesterday := time.Now().AddDate(0, 0, -1)
	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
		DueDate:           &yesterday,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}
	if debt.Status != models.DebtStatusOverdue {
		t.Errorf("Status = %s, expected overdue for a past due date", debt.Status)
	}

	// Settlement wins over the due date.
	settled, _, err := dl.RecordPayment(debt.ID, PaymentInput{Amount: 100000, Currency: models.CurrencyUZS, AccountID: acc.ID})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if settled.Status != models.DebtStatusSettled {
		t.Errorf("Status = %s, expected settled even when past due", settled.Status)
	}
}

func TestDebtDueTodayIsNotOverdue(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	today := time.Now()
	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
		DueDate:           &today,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}
	if debt.Status != models.DebtStatusActive {
		t.Errorf("Status = %s, expected active when due today", debt.Status)
	}
}

func TestOpenDebtIdempotentReplay(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	in := OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
		IdempotencyKey:    "debt-cmd-1",
	}
	first, err := dl.OpenDebt(in)
	if err != nil {
		t.Fatalf("first OpenDebt: %v", err)
	}
	second, err := dl.OpenDebt(in)
	if err != nil {
		t.Fatalf("replayed OpenDebt: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("replay created a new debt: %d vs %d", first.ID, second.ID)
	}
	// The funding transaction was booked exactly once.
	if got := accountBalance(t, e, acc.ID); got != 2000000 {
		t.Errorf("balance after replay = %v, expected 2000000", got)
	}
}

func TestRecordPaymentIdempotentReplay(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	in := PaymentInput{
		Amount:         500000,
		Currency:       models.CurrencyUZS,
		AccountID:      acc.ID,
		IdempotencyKey: "pay-1",
	}
	first, firstPayment, err := dl.RecordPayment(debt.ID, in)
	if err != nil {
		t.Fatalf("first RecordPayment: %v", err)
	}
	second, secondPayment, err := dl.RecordPayment(debt.ID, in)
	if err != nil {
		t.Fatalf("replayed RecordPayment: %v", err)
	}

	// The replay returns the stored result and applies nothing.
	if second.RemainingAmount != 1500000 {
		t.Errorf("remaining after replay = %v, expected 1500000", second.RemainingAmount)
	}
	if first.RemainingAmount != second.RemainingAmount {
		t.Errorf("replay changed remaining: %v vs %v", first.RemainingAmount, second.RemainingAmount)
	}
	if secondPayment == nil || secondPayment.ID != firstPayment.ID {
		t.Errorf("replay did not return the stored payment: %+v vs %+v", firstPayment, secondPayment)
	}
	payments, err := dl.ListPayments(debt.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 1 {
		t.Errorf("payment records after replay = %d, expected 1", len(payments))
	}
	// Balance: +2000000 funding, -500000 payment applied exactly once.
	if got := accountBalance(t, e, acc.ID); got != 1500000 {
		t.Errorf("balance after replay = %v, expected 1500000", got)
	}
}

func TestRecordPaymentReplayAfterSettlement(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	in := PaymentInput{
		Amount:         100000,
		Currency:       models.CurrencyUZS,
		AccountID:      acc.ID,
		IdempotencyKey: "pay-settle",
	}
	if _, _, err := dl.RecordPayment(debt.ID, in); err != nil {
		t.Fatalf("settling RecordPayment: %v", err)
	}

	// A retry of the settling payment returns the stored result instead of
	// rejecting the now-settled debt.
	replayed, payment, err := dl.RecordPayment(debt.ID, in)
	if err != nil {
		t.Fatalf("replayed settling RecordPayment: %v", err)
	}
	if replayed.Status != models.DebtStatusSettled {
		t.Errorf("Status after replay = %s, expected settled", replayed.Status)
	}
	if replayed.RemainingAmount != 0 {
		t.Errorf("remaining after replay = %v, expected 0", replayed.RemainingAmount)
	}
	if payment == nil {
		t.Fatal("replay did not return the stored payment")
	}
	if got := accountBalance(t, e, acc.ID); got != 0 {
		t.Errorf("balance after replay = %v, expected 0", got)
	}
}

func TestSetRepaymentCurrencyConfirmation(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	firstRate := 12600.0
	if _, err := dl.SetRepaymentCurrency(debt.ID, models.CurrencyUSD, &firstRate, false); err != nil {
		t.Fatalf("initial SetRepaymentCurrency: %v", err)
	}

	// A materially different rate without confirmation is blocked.
	changed := 13000.0
	_, err = dl.SetRepaymentCurrency(debt.ID, models.CurrencyUSD, &changed, false)
	if !errors.Is(err, fx.ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	stored, err := dl.GetDebt(debt.ID)
	if err != nil {
		t.Fatalf("GetDebt: %v", err)
	}
	if stored.RepaymentRateOnStart != 12600 {
		t.Errorf("blocked change must keep stored rate, got %v", stored.RepaymentRateOnStart)
	}

	// Confirmed change goes through.
	updated, err := dl.SetRepaymentCurrency(debt.ID, models.CurrencyUSD, &changed, true)
	if err != nil {
		t.Fatalf("confirmed SetRepaymentCurrency: %v", err)
	}
	if updated.RepaymentRateOnStart != 13000 {
		t.Errorf("RepaymentRateOnStart = %v, expected 13000", updated.RepaymentRateOnStart)
	}
}

func TestSetRepaymentCurrencyRejectsNonPositiveRate(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   100000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}

	zero := 0.0
	if _, err := dl.SetRepaymentCurrency(debt.ID, models.CurrencyUSD, &zero, false); !errors.Is(err, validation.ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed for zero rate, got %v", err)
	}
}

func TestDeleteDebtReversesFundingKeepsPaymentHistory(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 500000)

	debt, err := dl.OpenDebt(OpenDebtInput{
		Direction:         models.DebtDirectionIOwe,
		CounterpartyID:    "Aziz",
		PrincipalAmount:   2000000,
		PrincipalCurrency: models.CurrencyUZS,
		FundingAccountID:  acc.ID,
	})
	if err != nil {
		t.Fatalf("OpenDebt: %v", err)
	}
	_, payment, err := dl.RecordPayment(debt.ID, PaymentInput{Amount: 500000, Currency: models.CurrencyUZS, AccountID: acc.ID})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}

	if err := dl.DeleteDebt(debt.ID); err != nil {
		t.Fatalf("DeleteDebt: %v", err)
	}

	// Funding (+2000000) is reversed; the payment expense (-500000) stays.
	if got := accountBalance(t, e, acc.ID); got != 0 {
		t.Errorf("balance after delete = %v, expected 0", got)
	}
	if _, err := dl.GetDebt(debt.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted debt, got %v", err)
	}
	payments, err := dl.ListPayments(debt.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("payment records = %d, expected 0 after delete", len(payments))
	}
	// The payment's ledger transaction survives as ordinary history.
	if _, err := e.GetTransaction(payment.RelatedTransactionID); err != nil {
		t.Errorf("payment transaction should remain, got %v", err)
	}
}

func TestOpenDebtValidation(t *testing.T) {
	dl, e, _ := newTestDebtLedger(t)
	acc := mustCreateAccount(t, e, "Cash", models.CurrencyUZS, 0)

	tests := []struct {
		name string
		in   OpenDebtInput
	}{
		{"unknown direction", OpenDebtInput{Direction: "mutual", PrincipalAmount: 100, PrincipalCurrency: models.CurrencyUZS, FundingAccountID: acc.ID}},
		{"zero principal", OpenDebtInput{Direction: models.DebtDirectionIOwe, PrincipalAmount: 0, PrincipalCurrency: models.CurrencyUZS, FundingAccountID: acc.ID}},
		{"unknown currency", OpenDebtInput{Direction: models.DebtDirectionIOwe, PrincipalAmount: 100, PrincipalCurrency: "XYZ", FundingAccountID: acc.ID}},
		{"missing account", OpenDebtInput{Direction: models.DebtDirectionIOwe, PrincipalAmount: 100, PrincipalCurrency: models.CurrencyUZS, FundingAccountID: 999}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := dl.OpenDebt(tt.in); !errors.Is(err, validation.ErrValidationFailed) {
				t.Errorf("expected ErrValidationFailed, got %v", err)
			}
		})
	}
}
