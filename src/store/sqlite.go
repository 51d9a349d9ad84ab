package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/username/hamyon/backend/src/models"
)

// SQLiteStore implements Store on the shared sqlite connection. Queries use
// the same raw-SQL style as the rest of the codebase; each method is a single
// statement (or a single implicit sqlite transaction), so it is atomic.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) CreateAccount(a *models.Account) error {
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	res, err := s.db.Exec(`
		INSERT INTO accounts (owner_id, name, kind, currency, initial_balance, current_balance, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.OwnerID, a.Name, string(a.Kind), string(a.Currency), a.InitialBalance, a.CurrentBalance, a.IsArchived, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = models.AccountID(id)
	return nil
}

func (s *SQLiteStore) UpdateAccount(a *models.Account) error {
	a.UpdatedAt = time.Now()
	res, err := s.db.Exec(`
		UPDATE accounts
		SET owner_id = ?, name = ?, kind = ?, currency = ?, initial_balance = ?, current_balance = ?, is_archived = ?, updated_at = ?
		WHERE id = ?`,
		a.OwnerID, a.Name, string(a.Kind), string(a.Currency), a.InitialBalance, a.CurrentBalance, a.IsArchived, a.UpdatedAt, int64(a.ID))
	if err != nil {
		return fmt.Errorf("updating account %d: %w", a.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetAccount(id models.AccountID) (*models.Account, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_id, name, kind, currency, initial_balance, current_balance, is_archived, created_at, updated_at
		FROM accounts WHERE id = ?`, int64(id))
	return scanAccount(row)
}

func (s *SQLiteStore) ListAccounts() ([]models.Account, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_id, name, kind, currency, initial_balance, current_balance, is_archived, created_at, updated_at
		FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*models.Account, error) {
	var a models.Account
	err := r.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Kind, &a.Currency,
		&a.InitialBalance, &a.CurrentBalance, &a.IsArchived, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const transactionColumns = `id, type, account_id, to_account_id, amount, currency, base_currency,
	rate_used_to_base, converted_amount_to_base, category_id, description, date,
	related_debt_id, related_budget_id, idempotency_key, created_at, updated_at`

func (s *SQLiteStore) CreateTransaction(t *models.Transaction) error {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	res, err := s.db.Exec(`
		INSERT INTO transactions (type, account_id, to_account_id, amount, currency, base_currency,
			rate_used_to_base, converted_amount_to_base, category_id, description, date,
			related_debt_id, related_budget_id, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), int64(t.AccountID), int64(t.ToAccountID), t.Amount, string(t.Currency), string(t.BaseCurrency),
		t.RateUsedToBase, t.ConvertedAmountToBase, t.CategoryID, t.Description, t.Date,
		int64(t.RelatedDebtID), int64(t.RelatedBudgetID), nullableString(t.IdempotencyKey), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = models.TransactionID(id)
	return nil
}

func (s *SQLiteStore) UpdateTransaction(t *models.Transaction) error {
	t.UpdatedAt = time.Now()
	res, err := s.db.Exec(`
		UPDATE transactions
		SET type = ?, account_id = ?, to_account_id = ?, amount = ?, currency = ?, base_currency = ?,
			rate_used_to_base = ?, converted_amount_to_base = ?, category_id = ?, description = ?, date = ?,
			related_debt_id = ?, related_budget_id = ?, updated_at = ?
		WHERE id = ?`,
		string(t.Type), int64(t.AccountID), int64(t.ToAccountID), t.Amount, string(t.Currency), string(t.BaseCurrency),
		t.RateUsedToBase, t.ConvertedAmountToBase, t.CategoryID, t.Description, t.Date,
		int64(t.RelatedDebtID), int64(t.RelatedBudgetID), t.UpdatedAt, int64(t.ID))
	if err != nil {
		return fmt.Errorf("updating transaction %d: %w", t.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteTransaction(id models.TransactionID) error {
	res, err := s.db.Exec(`DELETE FROM transactions WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetTransaction(id models.TransactionID) (*models.Transaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, int64(id))
	return scanTransaction(row)
}

func (s *SQLiteStore) ListTransactions() ([]models.Transaction, error) {
	rows, err := s.db.Query(`SELECT ` + transactionColumns + ` FROM transactions ORDER BY date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindTransactionByKey(key string) (*models.Transaction, error) {
	row := s.db.QueryRow(`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = ?`, key)
	return scanTransaction(row)
}

func scanTransaction(r rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var key sql.NullString
	err := r.Scan(&t.ID, &t.Type, &t.AccountID, &t.ToAccountID, &t.Amount, &t.Currency, &t.BaseCurrency,
		&t.RateUsedToBase, &t.ConvertedAmountToBase, &t.CategoryID, &t.Description, &t.Date,
		&t.RelatedDebtID, &t.RelatedBudgetID, &key, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.IdempotencyKey = key.String
	return &t, nil
}

const debtColumns = `id, direction, counterparty_id, principal_amount, principal_currency, base_currency,
	rate_on_start, principal_base_value, repayment_currency, repayment_rate_on_start,
	funding_account_id, funding_transaction_id, remaining_amount, status, due_date, note,
	idempotency_key, created_at, updated_at`

func (s *SQLiteStore) CreateDebt(d *models.Debt) error {
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	res, err := s.db.Exec(`
		INSERT INTO debts (direction, counterparty_id, principal_amount, principal_currency, base_currency,
			rate_on_start, principal_base_value, repayment_currency, repayment_rate_on_start,
			funding_account_id, funding_transaction_id, remaining_amount, status, due_date, note,
			idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(d.Direction), d.CounterpartyID, d.PrincipalAmount, string(d.PrincipalCurrency), string(d.BaseCurrency),
		d.RateOnStart, d.PrincipalBaseValue, string(d.RepaymentCurrency), d.RepaymentRateOnStart,
		int64(d.FundingAccountID), int64(d.FundingTransactionID), d.RemainingAmount, string(d.Status), nullableTime(d.DueDate), d.Note,
		nullableString(d.IdempotencyKey), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = models.DebtID(id)
	return nil
}

func (s *SQLiteStore) UpdateDebt(d *models.Debt) error {
	d.UpdatedAt = time.Now()
	res, err := s.db.Exec(`
		UPDATE debts
		SET direction = ?, counterparty_id = ?, principal_amount = ?, principal_currency = ?, base_currency = ?,
			rate_on_start = ?, principal_base_value = ?, repayment_currency = ?, repayment_rate_on_start = ?,
			funding_account_id = ?, funding_transaction_id = ?, remaining_amount = ?, status = ?, due_date = ?, note = ?,
			updated_at = ?
		WHERE id = ?`,
		string(d.Direction), d.CounterpartyID, d.PrincipalAmount, string(d.PrincipalCurrency), string(d.BaseCurrency),
		d.RateOnStart, d.PrincipalBaseValue, string(d.RepaymentCurrency), d.RepaymentRateOnStart,
		int64(d.FundingAccountID), int64(d.FundingTransactionID), d.RemainingAmount, string(d.Status), nullableTime(d.DueDate), d.Note,
		d.UpdatedAt, int64(d.ID))
	if err != nil {
		return fmt.Errorf("updating debt %d: %w", d.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteDebt(id models.DebtID) error {
	res, err := s.db.Exec(`DELETE FROM debts WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetDebt(id models.DebtID) (*models.Debt, error) {
	row := s.db.QueryRow(`SELECT `+debtColumns+` FROM debts WHERE id = ?`, int64(id))
	return scanDebt(row)
}

func (s *SQLiteStore) ListDebts() ([]models.Debt, error) {
	rows, err := s.db.Query(`SELECT ` + debtColumns + ` FROM debts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindDebtByKey(key string) (*models.Debt, error) {
	row := s.db.QueryRow(`SELECT `+debtColumns+` FROM debts WHERE idempotency_key = ?`, key)
	return scanDebt(row)
}

func scanDebt(r rowScanner) (*models.Debt, error) {
	var d models.Debt
	var repayCur, key sql.NullString
	var due sql.NullTime
	err := r.Scan(&d.ID, &d.Direction, &d.CounterpartyID, &d.PrincipalAmount, &d.PrincipalCurrency, &d.BaseCurrency,
		&d.RateOnStart, &d.PrincipalBaseValue, &repayCur, &d.RepaymentRateOnStart,
		&d.FundingAccountID, &d.FundingTransactionID, &d.RemainingAmount, &d.Status, &due, &d.Note,
		&key, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.RepaymentCurrency = models.Currency(repayCur.String)
	d.DueDate = models.NullTime(due)
	d.IdempotencyKey = key.String
	return &d, nil
}

func (s *SQLiteStore) CreateDebtPayment(p *models.DebtPayment) error {
	p.CreatedAt = time.Now()
	res, err := s.db.Exec(`
		INSERT INTO debt_payments (debt_id, amount, currency, rate_used_to_debt, converted_amount_to_debt,
			account_id, related_transaction_id, payment_date, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(p.DebtID), p.Amount, string(p.Currency), p.RateUsedToDebt, p.ConvertedAmountToDebt,
		int64(p.AccountID), int64(p.RelatedTransactionID), p.PaymentDate, p.Note, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting debt payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = models.PaymentID(id)
	return nil
}

func (s *SQLiteStore) ListDebtPayments(debtID models.DebtID) ([]models.DebtPayment, error) {
	rows, err := s.db.Query(`
		SELECT id, debt_id, amount, currency, rate_used_to_debt, converted_amount_to_debt,
			account_id, related_transaction_id, payment_date, note, created_at
		FROM debt_payments WHERE debt_id = ? ORDER BY id`, int64(debtID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DebtPayment
	for rows.Next() {
		var p models.DebtPayment
		if err := rows.Scan(&p.ID, &p.DebtID, &p.Amount, &p.Currency, &p.RateUsedToDebt, &p.ConvertedAmountToDebt,
			&p.AccountID, &p.RelatedTransactionID, &p.PaymentDate, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDebtPayment(id models.PaymentID) error {
	res, err := s.db.Exec(`DELETE FROM debt_payments WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteDebtPayments(debtID models.DebtID) error {
	_, err := s.db.Exec(`DELETE FROM debt_payments WHERE debt_id = ?`, int64(debtID))
	return err
}

const budgetColumns = `id, name, categories, account_id, transaction_type, limit_amount, currency,
	period_start, period_end, spent_amount, remaining_amount, state, notify_on_exceed,
	last_notified_at, idempotency_key, created_at, updated_at`

func (s *SQLiteStore) CreateBudget(b *models.Budget) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cats, err := json.Marshal(b.Categories)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		INSERT INTO budgets (name, categories, account_id, transaction_type, limit_amount, currency,
			period_start, period_end, spent_amount, remaining_amount, state, notify_on_exceed,
			last_notified_at, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, string(cats), int64(b.AccountID), string(b.TransactionType), b.LimitAmount, string(b.Currency),
		b.PeriodStart, b.PeriodEnd, b.SpentAmount, b.RemainingAmount, string(b.State), b.NotifyOnExceed,
		nullableTime(b.LastNotifiedAt), nullableString(b.IdempotencyKey), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = models.BudgetID(id)
	return nil
}

func (s *SQLiteStore) UpdateBudget(b *models.Budget) error {
	b.UpdatedAt = time.Now()
	cats, err := json.Marshal(b.Categories)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE budgets
		SET name = ?, categories = ?, account_id = ?, transaction_type = ?, limit_amount = ?, currency = ?,
			period_start = ?, period_end = ?, spent_amount = ?, remaining_amount = ?, state = ?, notify_on_exceed = ?,
			last_notified_at = ?, updated_at = ?
		WHERE id = ?`,
		b.Name, string(cats), int64(b.AccountID), string(b.TransactionType), b.LimitAmount, string(b.Currency),
		b.PeriodStart, b.PeriodEnd, b.SpentAmount, b.RemainingAmount, string(b.State), b.NotifyOnExceed,
		nullableTime(b.LastNotifiedAt), b.UpdatedAt, int64(b.ID))
	if err != nil {
		return fmt.Errorf("updating budget %d: %w", b.ID, err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) DeleteBudget(id models.BudgetID) error {
	res, err := s.db.Exec(`DELETE FROM budgets WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *SQLiteStore) GetBudget(id models.BudgetID) (*models.Budget, error) {
	row := s.db.QueryRow(`SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, int64(id))
	return scanBudget(row)
}

func (s *SQLiteStore) ListBudgets() ([]models.Budget, error) {
	rows, err := s.db.Query(`SELECT ` + budgetColumns + ` FROM budgets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindBudgetByKey(key string) (*models.Budget, error) {
	row := s.db.QueryRow(`SELECT `+budgetColumns+` FROM budgets WHERE idempotency_key = ?`, key)
	return scanBudget(row)
}

func scanBudget(r rowScanner) (*models.Budget, error) {
	var b models.Budget
	var cats string
	var key sql.NullString
	var notified sql.NullTime
	err := r.Scan(&b.ID, &b.Name, &cats, &b.AccountID, &b.TransactionType, &b.LimitAmount, &b.Currency,
		&b.PeriodStart, &b.PeriodEnd, &b.SpentAmount, &b.RemainingAmount, &b.State, &b.NotifyOnExceed,
		&notified, &key, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if cats != "" {
		if err := json.Unmarshal([]byte(cats), &b.Categories); err != nil {
			return nil, fmt.Errorf("decoding budget %d categories: %w", b.ID, err)
		}
	}
	b.LastNotifiedAt = models.NullTime(notified)
	b.IdempotencyKey = key.String
	return &b, nil
}

func (s *SQLiteStore) SaveFxRate(r *models.FxRate) error {
	r.CreatedAt = time.Now()
	res, err := s.db.Exec(`
		INSERT INTO fx_rates (from_currency, to_currency, rate, date, source, is_overridden, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.FromCurrency), string(r.ToCurrency), r.Rate, r.Date, string(r.Source), r.IsOverridden, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting fx rate: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

func (s *SQLiteStore) FindFxRate(from, to models.Currency, asOf time.Time) (*models.FxRate, error) {
	row := s.db.QueryRow(`
		SELECT id, from_currency, to_currency, rate, date, source, is_overridden, created_at
		FROM fx_rates
		WHERE from_currency = ? AND to_currency = ? AND date <= ?
		ORDER BY date DESC, id DESC LIMIT 1`,
		string(from), string(to), asOf)
	return scanFxRate(row)
}

func (s *SQLiteStore) FindFxRateOverride(from, to models.Currency) (*models.FxRate, error) {
	row := s.db.QueryRow(`
		SELECT id, from_currency, to_currency, rate, date, source, is_overridden, created_at
		FROM fx_rates
		WHERE from_currency = ? AND to_currency = ? AND is_overridden = 1
		ORDER BY id DESC LIMIT 1`,
		string(from), string(to))
	return scanFxRate(row)
}

func (s *SQLiteStore) ListFxRates() ([]models.FxRate, error) {
	rows, err := s.db.Query(`
		SELECT id, from_currency, to_currency, rate, date, source, is_overridden, created_at
		FROM fx_rates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.FxRate
	for rows.Next() {
		r, err := scanFxRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanFxRate(r rowScanner) (*models.FxRate, error) {
	var fr models.FxRate
	err := r.Scan(&fr.ID, &fr.FromCurrency, &fr.ToCurrency, &fr.Rate, &fr.Date, &fr.Source, &fr.IsOverridden, &fr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &fr, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(nt models.NullTime) any {
	if !nt.Valid {
		return nil
	}
	return nt.Time
}
