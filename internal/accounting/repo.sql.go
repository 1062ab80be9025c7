package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists the ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

var _ TxRepository = (*txRepository)(nil)

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.pool == nil {
		return fmt.Errorf("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// where accumulates filter clauses and their positional arguments.
type where struct {
	parts []string
	args  []any
}

// add appends expr, whose single %d verb receives the next placeholder index.
func (w *where) add(expr string, arg any) {
	w.args = append(w.args, arg)
	w.parts = append(w.parts, fmt.Sprintf(expr, len(w.args)))
}

func (w *where) raw(expr string) {
	w.parts = append(w.parts, expr)
}

func (w *where) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func execOne(ctx context.Context, tx pgx.Tx, sql string, args ...any) error {
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func accountTypeStrings(types []AccountType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func transactionTypeStrings(types []TransactionType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func (r *txRepository) InsertEntity(ctx context.Context, e Entity) (Entity, error) {
	var currency any
	if e.CurrencyID != 0 {
		currency = e.CurrencyID
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO entities (name, currency_id, year_start, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, e.Name, currency, int16(e.YearStart), e.CreatedAt).Scan(&e.ID)
	return e, err
}

func (r *txRepository) UpdateEntity(ctx context.Context, e Entity) error {
	return execOne(ctx, r.tx, `UPDATE entities SET name = $2, currency_id = $3, year_start = $4 WHERE id = $1`,
		e.ID, e.Name, e.CurrencyID, int16(e.YearStart))
}

func (r *txRepository) GetEntity(ctx context.Context, entityID int64) (Entity, error) {
	var (
		e        Entity
		currency *int64
		month    int16
	)
	err := r.tx.QueryRow(ctx, `SELECT id, name, currency_id, year_start, created_at FROM entities WHERE id = $1`, entityID).
		Scan(&e.ID, &e.Name, &currency, &month, &e.CreatedAt)
	if err != nil {
		return Entity{}, notFound(err)
	}
	if currency != nil {
		e.CurrencyID = *currency
	}
	e.YearStart = time.Month(month)
	return e, nil
}

func (r *txRepository) ListEntities(ctx context.Context) ([]Entity, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name, COALESCE(currency_id, 0), year_start, created_at FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var (
			e     Entity
			month int16
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.CurrencyID, &month, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.YearStart = time.Month(month)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LockEntity serialises writers of one entity on its row lock.
func (r *txRepository) LockEntity(ctx context.Context, entityID int64) error {
	var id int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM entities WHERE id = $1 FOR UPDATE`, entityID).Scan(&id)
	return notFound(err)
}

func (r *txRepository) InsertCurrency(ctx context.Context, c Currency) (Currency, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO currencies (entity_id, name, currency_code, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, c.EntityID, c.Name, c.CurrencyCode, c.CreatedAt).Scan(&c.ID)
	return c, err
}

func (r *txRepository) GetCurrency(ctx context.Context, entityID, id int64) (Currency, error) {
	var c Currency
	err := r.tx.QueryRow(ctx, `SELECT id, entity_id, name, currency_code, created_at FROM currencies
WHERE entity_id = $1 AND id = $2`, entityID, id).Scan(&c.ID, &c.EntityID, &c.Name, &c.CurrencyCode, &c.CreatedAt)
	return c, notFound(err)
}

const exchangeRateColumns = `id, entity_id, currency_id, rate, valid_from, valid_to, created_at`

func scanExchangeRate(row pgx.Row) (ExchangeRate, error) {
	var r ExchangeRate
	err := row.Scan(&r.ID, &r.EntityID, &r.CurrencyID, &r.Rate, &r.ValidFrom, &r.ValidTo, &r.CreatedAt)
	return r, notFound(err)
}

func (r *txRepository) InsertExchangeRate(ctx context.Context, rate ExchangeRate) (ExchangeRate, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO exchange_rates (entity_id, currency_id, rate, valid_from, valid_to, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, rate.EntityID, rate.CurrencyID, rate.Rate, rate.ValidFrom, rate.ValidTo, rate.CreatedAt).
		Scan(&rate.ID)
	return rate, err
}

func (r *txRepository) GetExchangeRate(ctx context.Context, entityID, id int64) (ExchangeRate, error) {
	return scanExchangeRate(r.tx.QueryRow(ctx, `SELECT `+exchangeRateColumns+` FROM exchange_rates
WHERE entity_id = $1 AND id = $2`, entityID, id))
}

func (r *txRepository) FindExchangeRate(ctx context.Context, entityID, currencyID int64, day time.Time) (ExchangeRate, error) {
	return scanExchangeRate(r.tx.QueryRow(ctx, `SELECT `+exchangeRateColumns+` FROM exchange_rates
WHERE entity_id = $1 AND currency_id = $2 AND valid_from <= $3 AND (valid_to IS NULL OR valid_to >= $3)
ORDER BY valid_from DESC, id DESC LIMIT 1`, entityID, currencyID, day))
}

func (r *txRepository) InsertCategory(ctx context.Context, c Category) (Category, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO categories (entity_id, name, category_type) VALUES ($1,$2,$3) RETURNING id`,
		c.EntityID, c.Name, c.CategoryType).Scan(&c.ID)
	return c, err
}

func (r *txRepository) GetCategory(ctx context.Context, entityID, id int64) (Category, error) {
	var c Category
	err := r.tx.QueryRow(ctx, `SELECT id, entity_id, name, category_type, deleted_at FROM categories
WHERE entity_id = $1 AND id = $2 AND deleted_at IS NULL`, entityID, id).
		Scan(&c.ID, &c.EntityID, &c.Name, &c.CategoryType, &c.DeletedAt)
	return c, notFound(err)
}

func (r *txRepository) InsertCostCenter(ctx context.Context, c CostCenter) (CostCenter, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO cost_centers (entity_id, code, name, description, active)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, c.EntityID, c.Code, c.Name, c.Description, c.Active).Scan(&c.ID)
	return c, err
}

func (r *txRepository) GetCostCenter(ctx context.Context, entityID, id int64) (CostCenter, error) {
	var c CostCenter
	err := r.tx.QueryRow(ctx, `SELECT id, entity_id, code, name, description, active, deleted_at FROM cost_centers
WHERE entity_id = $1 AND id = $2 AND deleted_at IS NULL`, entityID, id).
		Scan(&c.ID, &c.EntityID, &c.Code, &c.Name, &c.Description, &c.Active, &c.DeletedAt)
	return c, notFound(err)
}

func (r *txRepository) InsertVat(ctx context.Context, v Vat) (Vat, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO vats (entity_id, code, name, rate, account_id) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		v.EntityID, v.Code, v.Name, v.Rate, v.AccountID).Scan(&v.ID)
	return v, err
}

func (r *txRepository) GetVat(ctx context.Context, entityID, id int64) (Vat, error) {
	var v Vat
	err := r.tx.QueryRow(ctx, `SELECT id, entity_id, code, name, rate, account_id, deleted_at FROM vats
WHERE entity_id = $1 AND id = $2`, entityID, id).
		Scan(&v.ID, &v.EntityID, &v.Code, &v.Name, &v.Rate, &v.AccountID, &v.DeletedAt)
	return v, notFound(err)
}

const accountColumns = `id, entity_id, name, description, code, account_type, currency_id, category_id, cost_center_id,
created_at, updated_at, deleted_at, destroyed_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.EntityID, &a.Name, &a.Description, &a.Code, &a.AccountType, &a.CurrencyID,
		&a.CategoryID, &a.CostCenterID, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt, &a.DestroyedAt)
	return a, err
}

func (r *txRepository) InsertAccount(ctx context.Context, a Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (entity_id, name, description, code, account_type, currency_id,
category_id, cost_center_id, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		a.EntityID, a.Name, a.Description, a.Code, a.AccountType, a.CurrencyID, a.CategoryID, a.CostCenterID,
		a.CreatedAt, a.UpdatedAt).Scan(&a.ID)
	return a, err
}

func (r *txRepository) UpdateAccount(ctx context.Context, a Account) error {
	return execOne(ctx, r.tx, `UPDATE accounts SET name = $3, description = $4, code = $5, account_type = $6,
currency_id = $7, category_id = $8, cost_center_id = $9, updated_at = $10, deleted_at = $11, destroyed_at = $12
WHERE entity_id = $1 AND id = $2`,
		a.EntityID, a.ID, a.Name, a.Description, a.Code, a.AccountType, a.CurrencyID, a.CategoryID, a.CostCenterID,
		a.UpdatedAt, a.DeletedAt, a.DestroyedAt)
}

func (r *txRepository) GetAccount(ctx context.Context, entityID, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE entity_id = $1 AND id = $2 AND destroyed_at IS NULL`, entityID, id))
	return a, notFound(err)
}

func (r *txRepository) ListAccounts(ctx context.Context, f AccountFilter) ([]Account, error) {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	if !f.IncludeDeleted {
		w.raw("deleted_at IS NULL AND destroyed_at IS NULL")
	}
	if len(f.Types) > 0 {
		w.add("account_type = ANY($%d)", accountTypeStrings(f.Types))
	}
	if f.CurrencyID != nil {
		w.add("currency_id = $%d", *f.CurrencyID)
	}
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts`+w.String()+` ORDER BY code, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertRecycledObject(ctx context.Context, o RecycledObject) (RecycledObject, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO recycled_objects (entity_id, actor_id, recyclable_kind, recyclable_id, created_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, o.EntityID, o.ActorID, o.RecyclableKind, o.RecyclableID, o.CreatedAt).Scan(&o.ID)
	return o, err
}

func (r *txRepository) DeleteRecycledObject(ctx context.Context, entityID int64, kind string, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM recycled_objects WHERE entity_id = $1 AND recyclable_kind = $2 AND recyclable_id = $3`,
		entityID, kind, id)
	return err
}

const periodColumns = `id, entity_id, calendar_year, period_count, status, closing_date, created_at, updated_at`

func scanPeriod(row pgx.Row) (ReportingPeriod, error) {
	var p ReportingPeriod
	err := row.Scan(&p.ID, &p.EntityID, &p.CalendarYear, &p.PeriodCount, &p.Status, &p.ClosingDate, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *txRepository) InsertPeriod(ctx context.Context, p ReportingPeriod) (ReportingPeriod, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO reporting_periods (entity_id, calendar_year, period_count, status, closing_date,
created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		p.EntityID, p.CalendarYear, p.PeriodCount, p.Status, p.ClosingDate, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	return p, err
}

func (r *txRepository) UpdatePeriod(ctx context.Context, p ReportingPeriod) error {
	return execOne(ctx, r.tx, `UPDATE reporting_periods SET status = $3, closing_date = $4, updated_at = $5
WHERE entity_id = $1 AND id = $2`, p.EntityID, p.ID, p.Status, p.ClosingDate, p.UpdatedAt)
}

func (r *txRepository) GetPeriod(ctx context.Context, entityID, id int64) (ReportingPeriod, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods
WHERE entity_id = $1 AND id = $2`, entityID, id))
	return p, notFound(err)
}

func (r *txRepository) GetPeriodForUpdate(ctx context.Context, entityID, id int64) (ReportingPeriod, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods
WHERE entity_id = $1 AND id = $2 FOR UPDATE`, entityID, id))
	return p, notFound(err)
}

func (r *txRepository) GetPeriodByYear(ctx context.Context, entityID int64, year int) (ReportingPeriod, error) {
	p, err := scanPeriod(r.tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM reporting_periods
WHERE entity_id = $1 AND calendar_year = $2`, entityID, year))
	return p, notFound(err)
}

func (r *txRepository) ListPeriods(ctx context.Context, entityID int64) ([]ReportingPeriod, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+periodColumns+` FROM reporting_periods WHERE entity_id = $1 ORDER BY calendar_year`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportingPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const transactionColumns = `id, entity_id, account_id, currency_id, exchange_rate_id, transaction_date, transaction_no,
transaction_type, reference, narration, credited, compound, main_account_amount, posted, posted_at, created_at,
updated_at, deleted_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.EntityID, &t.AccountID, &t.CurrencyID, &t.ExchangeRateID, &t.TransactionDate,
		&t.TransactionNo, &t.TransactionType, &t.Reference, &t.Narration, &t.Credited, &t.Compound,
		&t.MainAccountAmount, &t.Posted, &t.PostedAt, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	return t, err
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (entity_id, account_id, currency_id, exchange_rate_id,
transaction_date, transaction_no, transaction_type, reference, narration, credited, compound, main_account_amount,
posted, posted_at, created_at, updated_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		t.EntityID, t.AccountID, t.CurrencyID, t.ExchangeRateID, t.TransactionDate, t.TransactionNo, t.TransactionType,
		t.Reference, t.Narration, t.Credited, t.Compound, t.MainAccountAmount, t.Posted, t.PostedAt, t.CreatedAt,
		t.UpdatedAt).Scan(&t.ID)
	return t, err
}

func (r *txRepository) UpdateTransaction(ctx context.Context, t Transaction) error {
	return execOne(ctx, r.tx, `UPDATE transactions SET account_id = $3, currency_id = $4, exchange_rate_id = $5,
transaction_date = $6, reference = $7, narration = $8, credited = $9, compound = $10, main_account_amount = $11,
posted = $12, posted_at = $13, updated_at = $14, deleted_at = $15 WHERE entity_id = $1 AND id = $2`,
		t.EntityID, t.ID, t.AccountID, t.CurrencyID, t.ExchangeRateID, t.TransactionDate, t.Reference, t.Narration,
		t.Credited, t.Compound, t.MainAccountAmount, t.Posted, t.PostedAt, t.UpdatedAt, t.DeletedAt)
}

func (r *txRepository) GetTransaction(ctx context.Context, entityID, id int64) (Transaction, error) {
	t, err := scanTransaction(r.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions
WHERE entity_id = $1 AND id = $2 AND deleted_at IS NULL`, entityID, id))
	return t, notFound(err)
}

func (r *txRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	w.raw("deleted_at IS NULL")
	if f.AccountID != nil {
		w.add("account_id = $%d", *f.AccountID)
	}
	if f.CurrencyID != nil {
		w.add("currency_id = $%d", *f.CurrencyID)
	}
	if len(f.Types) > 0 {
		w.add("transaction_type = ANY($%d)", transactionTypeStrings(f.Types))
	}
	if f.PostedOnly {
		w.raw("posted")
	}
	if f.From != nil {
		w.add("transaction_date >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("transaction_date <= $%d", *f.To)
	}
	rows, err := r.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions`+w.String()+
		` ORDER BY transaction_date, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions includes soft deleted rows so numbers are never reused.
func (r *txRepository) CountTransactions(ctx context.Context, entityID int64, t TransactionType, from, to time.Time) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions
WHERE entity_id = $1 AND transaction_type = $2 AND transaction_date BETWEEN $3 AND $4`, entityID, t, from, to).Scan(&count)
	return count, err
}

func (r *txRepository) InsertLineItem(ctx context.Context, l LineItem) (LineItem, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO line_items (entity_id, transaction_id, account_id, vat_id, narration, amount,
quantity, compound_vat, credited, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		l.EntityID, l.TransactionID, l.AccountID, l.VatID, l.Narration, l.Amount, l.Quantity, l.CompoundVat, l.Credited,
		l.CreatedAt).Scan(&l.ID)
	return l, err
}

func (r *txRepository) DeleteLineItem(ctx context.Context, entityID, id int64) error {
	return execOne(ctx, r.tx, `DELETE FROM line_items WHERE entity_id = $1 AND id = $2`, entityID, id)
}

func (r *txRepository) ListLineItems(ctx context.Context, entityID, transactionID int64) ([]LineItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entity_id, transaction_id, account_id, vat_id, narration, amount, quantity,
compound_vat, credited, created_at FROM line_items WHERE entity_id = $1 AND transaction_id = $2 ORDER BY id`,
		entityID, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.EntityID, &l.TransactionID, &l.AccountID, &l.VatID, &l.Narration, &l.Amount,
			&l.Quantity, &l.CompoundVat, &l.Credited, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const ledgerColumns = `id, entity_id, transaction_id, line_item_id, vat_id, currency_id, post_account_id,
folio_account_id, posting_date, entry_type, amount, rate, batch_id, hash, created_at`

func scanLedger(row pgx.Row) (Ledger, error) {
	var l Ledger
	err := row.Scan(&l.ID, &l.EntityID, &l.TransactionID, &l.LineItemID, &l.VatID, &l.CurrencyID, &l.PostAccountID,
		&l.FolioAccountID, &l.PostingDate, &l.EntryType, &l.Amount, &l.Rate, &l.BatchID, &l.Hash, &l.CreatedAt)
	return l, err
}

// InsertLedgers writes rows one by one so ids follow the hash chain order.
func (r *txRepository) InsertLedgers(ctx context.Context, rows []Ledger) ([]Ledger, error) {
	out := make([]Ledger, 0, len(rows))
	for _, row := range rows {
		err := r.tx.QueryRow(ctx, `INSERT INTO ledgers (entity_id, transaction_id, line_item_id, vat_id, currency_id,
post_account_id, folio_account_id, posting_date, entry_type, amount, rate, batch_id, hash, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id`,
			row.EntityID, row.TransactionID, row.LineItemID, row.VatID, row.CurrencyID, row.PostAccountID,
			row.FolioAccountID, row.PostingDate, row.EntryType, row.Amount, row.Rate, row.BatchID, row.Hash,
			row.CreatedAt).Scan(&row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func ledgerWhere(f LedgerFilter) where {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	if f.TransactionID != nil {
		w.add("transaction_id = $%d", *f.TransactionID)
	}
	if f.AccountID != nil {
		w.add("post_account_id = $%d", *f.AccountID)
	}
	if f.AnyAccountID != nil {
		w.add("(post_account_id = $%[1]d OR folio_account_id = $%[1]d)", *f.AnyAccountID)
	}
	if f.CurrencyID != nil {
		w.add("currency_id = $%d", *f.CurrencyID)
	}
	if f.BatchID != nil {
		w.add("batch_id = $%d", *f.BatchID)
	}
	if f.From != nil {
		w.add("posting_date >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("posting_date <= $%d", *f.To)
	}
	return w
}

func (r *txRepository) ListLedgers(ctx context.Context, f LedgerFilter) ([]Ledger, error) {
	w := ledgerWhere(f)
	rows, err := r.tx.Query(ctx, `SELECT `+ledgerColumns+` FROM ledgers`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) SumLedger(ctx context.Context, f LedgerFilter) (LedgerTotals, error) {
	w := ledgerWhere(f)
	var totals LedgerTotals
	err := r.tx.QueryRow(ctx, `SELECT
COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0),
COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0),
COALESCE(SUM(amount / rate) FILTER (WHERE entry_type = 'DEBIT'), 0),
COALESCE(SUM(amount / rate) FILTER (WHERE entry_type = 'CREDIT'), 0)
FROM ledgers`+w.String(), w.args...).Scan(&totals.Debit, &totals.Credit, &totals.ForeignDebit, &totals.ForeignCredit)
	return totals, err
}

func (r *txRepository) LastLedger(ctx context.Context, entityID int64) (Ledger, bool, error) {
	l, err := scanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers WHERE entity_id = $1
ORDER BY id DESC LIMIT 1`, entityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Ledger{}, false, nil
	}
	if err != nil {
		return Ledger{}, false, err
	}
	return l, true, nil
}

const balanceColumns = `id, entity_id, account_id, reporting_period_id, currency_id, exchange_rate_id, transaction_type,
transaction_no, transaction_date, reference, balance_type, amount, created_at, deleted_at`

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	err := row.Scan(&b.ID, &b.EntityID, &b.AccountID, &b.ReportingPeriodID, &b.CurrencyID, &b.ExchangeRateID,
		&b.TransactionType, &b.TransactionNo, &b.TransactionDate, &b.Reference, &b.BalanceType, &b.Amount,
		&b.CreatedAt, &b.DeletedAt)
	return b, err
}

func (r *txRepository) InsertBalance(ctx context.Context, b Balance) (Balance, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO balances (entity_id, account_id, reporting_period_id, currency_id,
exchange_rate_id, transaction_type, transaction_no, transaction_date, reference, balance_type, amount, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		b.EntityID, b.AccountID, b.ReportingPeriodID, b.CurrencyID, b.ExchangeRateID, b.TransactionType,
		b.TransactionNo, b.TransactionDate, b.Reference, b.BalanceType, b.Amount, b.CreatedAt).Scan(&b.ID)
	return b, err
}

func (r *txRepository) GetBalance(ctx context.Context, entityID, id int64) (Balance, error) {
	b, err := scanBalance(r.tx.QueryRow(ctx, `SELECT `+balanceColumns+` FROM balances
WHERE entity_id = $1 AND id = $2 AND deleted_at IS NULL`, entityID, id))
	return b, notFound(err)
}

func (r *txRepository) ListBalances(ctx context.Context, f BalanceFilter) ([]Balance, error) {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	w.raw("deleted_at IS NULL")
	if f.AccountID != nil {
		w.add("account_id = $%d", *f.AccountID)
	}
	if f.PeriodID != nil {
		w.add("reporting_period_id = $%d", *f.PeriodID)
	}
	if f.CurrencyID != nil {
		w.add("currency_id = $%d", *f.CurrencyID)
	}
	rows, err := r.tx.Query(ctx, `SELECT `+balanceColumns+` FROM balances`+w.String()+` ORDER BY transaction_date, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const assignmentColumns = `id, entity_id, transaction_id, cleared_kind, cleared_id, assignment_date, amount,
forex_account_id, forex_batch_id, created_at`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.EntityID, &a.TransactionID, &a.Cleared.Kind, &a.Cleared.ID, &a.AssignmentDate, &a.Amount,
		&a.ForexAccountID, &a.ForexBatchID, &a.CreatedAt)
	return a, err
}

func (r *txRepository) InsertAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO assignments (entity_id, transaction_id, cleared_kind, cleared_id,
assignment_date, amount, forex_account_id, forex_batch_id, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		a.EntityID, a.TransactionID, a.Cleared.Kind, a.Cleared.ID, a.AssignmentDate, a.Amount, a.ForexAccountID,
		a.ForexBatchID, a.CreatedAt).Scan(&a.ID)
	return a, err
}

func (r *txRepository) GetAssignment(ctx context.Context, entityID, id int64) (Assignment, error) {
	a, err := scanAssignment(r.tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments
WHERE entity_id = $1 AND id = $2`, entityID, id))
	return a, notFound(err)
}

func (r *txRepository) DeleteAssignment(ctx context.Context, entityID, id int64) error {
	return execOne(ctx, r.tx, `DELETE FROM assignments WHERE entity_id = $1 AND id = $2`, entityID, id)
}

func (r *txRepository) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error) {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	if f.TransactionID != nil {
		w.add("transaction_id = $%d", *f.TransactionID)
	}
	if f.Cleared != nil {
		w.add("cleared_kind = $%d", f.Cleared.Kind)
		w.add("cleared_id = $%d", f.Cleared.ID)
	}
	rows, err := r.tx.Query(ctx, `SELECT `+assignmentColumns+` FROM assignments`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertClosingRate(ctx context.Context, c ClosingRate) (ClosingRate, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO closing_rates (entity_id, reporting_period_id, exchange_rate_id, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, c.EntityID, c.ReportingPeriodID, c.ExchangeRateID, c.CreatedAt).Scan(&c.ID)
	return c, err
}

func (r *txRepository) ListClosingRates(ctx context.Context, entityID, periodID int64) ([]ClosingRate, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entity_id, reporting_period_id, exchange_rate_id, created_at FROM closing_rates
WHERE entity_id = $1 AND reporting_period_id = $2 ORDER BY id`, entityID, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClosingRate
	for rows.Next() {
		var c ClosingRate
		if err := rows.Scan(&c.ID, &c.EntityID, &c.ReportingPeriodID, &c.ExchangeRateID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *txRepository) InsertClosingTransaction(ctx context.Context, c ClosingTransaction) (ClosingTransaction, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO closing_transactions (entity_id, reporting_period_id, account_id, currency_id,
transaction_id, created_at) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		c.EntityID, c.ReportingPeriodID, c.AccountID, c.CurrencyID, c.TransactionID, c.CreatedAt).Scan(&c.ID)
	return c, err
}

func (r *txRepository) ListClosingTransactions(ctx context.Context, f ClosingFilter) ([]ClosingTransaction, error) {
	var w where
	w.add("entity_id = $%d", f.EntityID)
	if f.AccountID != nil {
		w.add("account_id = $%d", *f.AccountID)
	}
	if f.PeriodID != nil {
		w.add("reporting_period_id = $%d", *f.PeriodID)
	}
	rows, err := r.tx.Query(ctx, `SELECT id, entity_id, reporting_period_id, account_id, currency_id, transaction_id,
created_at FROM closing_transactions`+w.String()+` ORDER BY id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ClosingTransaction
	for rows.Next() {
		var c ClosingTransaction
		if err := rows.Scan(&c.ID, &c.EntityID, &c.ReportingPeriodID, &c.AccountID, &c.CurrencyID, &c.TransactionID,
			&c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
