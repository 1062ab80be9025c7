// Package memstore is an in-memory accounting repository. Each WithTx call
// works on a copy of the data that replaces the live copy only on success.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

type state struct {
	next         int64
	entities     map[int64]accounting.Entity
	currencies   map[int64]accounting.Currency
	rates        map[int64]accounting.ExchangeRate
	categories   map[int64]accounting.Category
	costCenters  map[int64]accounting.CostCenter
	vats         map[int64]accounting.Vat
	accounts     map[int64]accounting.Account
	recycled     map[int64]accounting.RecycledObject
	periods      map[int64]accounting.ReportingPeriod
	transactions map[int64]accounting.Transaction
	lines        map[int64]accounting.LineItem
	ledgers      []accounting.Ledger
	balances     map[int64]accounting.Balance
	assignments  map[int64]accounting.Assignment
	closingRates map[int64]accounting.ClosingRate
	closingTxs   map[int64]accounting.ClosingTransaction
}

func newState() *state {
	return &state{
		entities:     map[int64]accounting.Entity{},
		currencies:   map[int64]accounting.Currency{},
		rates:        map[int64]accounting.ExchangeRate{},
		categories:   map[int64]accounting.Category{},
		costCenters:  map[int64]accounting.CostCenter{},
		vats:         map[int64]accounting.Vat{},
		accounts:     map[int64]accounting.Account{},
		recycled:     map[int64]accounting.RecycledObject{},
		periods:      map[int64]accounting.ReportingPeriod{},
		transactions: map[int64]accounting.Transaction{},
		lines:        map[int64]accounting.LineItem{},
		balances:     map[int64]accounting.Balance{},
		assignments:  map[int64]accounting.Assignment{},
		closingRates: map[int64]accounting.ClosingRate{},
		closingTxs:   map[int64]accounting.ClosingTransaction{},
	}
}

func cloneMap[V any](in map[int64]V) map[int64]V {
	out := make(map[int64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		next:         s.next,
		entities:     cloneMap(s.entities),
		currencies:   cloneMap(s.currencies),
		rates:        cloneMap(s.rates),
		categories:   cloneMap(s.categories),
		costCenters:  cloneMap(s.costCenters),
		vats:         cloneMap(s.vats),
		accounts:     cloneMap(s.accounts),
		recycled:     cloneMap(s.recycled),
		periods:      cloneMap(s.periods),
		transactions: cloneMap(s.transactions),
		lines:        cloneMap(s.lines),
		ledgers:      append([]accounting.Ledger(nil), s.ledgers...),
		balances:     cloneMap(s.balances),
		assignments:  cloneMap(s.assignments),
		closingRates: cloneMap(s.closingRates),
		closingTxs:   cloneMap(s.closingTxs),
	}
}

func (s *state) id() int64 {
	s.next++
	return s.next
}

// Store implements accounting.RepositoryPort in memory. Units of work are
// serialised, so WithTx must not be nested.
type Store struct {
	mu   sync.Mutex
	data *state
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState()}
}

// WithTx runs fn against a private copy and commits it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, &txRepo{st: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// LedgerRows returns a copy of every ledger row, for inspection in tests.
func (s *Store) LedgerRows() []accounting.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]accounting.Ledger(nil), s.data.ledgers...)
}

// Tamper overwrites the amount of a stored ledger row, for integrity tests.
func (s *Store) Tamper(rowID int64, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.ledgers {
		if s.data.ledgers[i].ID == rowID {
			s.data.ledgers[i].Amount = amount
		}
	}
}

type txRepo struct {
	st *state
}

var _ accounting.TxRepository = (*txRepo)(nil)

func inRange(day time.Time, from, to *time.Time) bool {
	if from != nil && day.Before(*from) {
		return false
	}
	if to != nil && day.After(*to) {
		return false
	}
	return true
}

func sortByID[V any](items []V, id func(V) int64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) < id(items[j]) })
}

func (r *txRepo) InsertEntity(_ context.Context, e accounting.Entity) (accounting.Entity, error) {
	e.ID = r.st.id()
	r.st.entities[e.ID] = e
	return e, nil
}

func (r *txRepo) UpdateEntity(_ context.Context, e accounting.Entity) error {
	if _, ok := r.st.entities[e.ID]; !ok {
		return accounting.ErrNotFound
	}
	r.st.entities[e.ID] = e
	return nil
}

func (r *txRepo) GetEntity(_ context.Context, entityID int64) (accounting.Entity, error) {
	e, ok := r.st.entities[entityID]
	if !ok {
		return accounting.Entity{}, accounting.ErrNotFound
	}
	return e, nil
}

func (r *txRepo) ListEntities(context.Context) ([]accounting.Entity, error) {
	out := make([]accounting.Entity, 0, len(r.st.entities))
	for _, e := range r.st.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *txRepo) LockEntity(ctx context.Context, entityID int64) error {
	_, err := r.GetEntity(ctx, entityID)
	return err
}

func (r *txRepo) InsertCurrency(_ context.Context, c accounting.Currency) (accounting.Currency, error) {
	c.ID = r.st.id()
	r.st.currencies[c.ID] = c
	return c, nil
}

func (r *txRepo) GetCurrency(_ context.Context, entityID, id int64) (accounting.Currency, error) {
	c, ok := r.st.currencies[id]
	if !ok || c.EntityID != entityID {
		return accounting.Currency{}, accounting.ErrNotFound
	}
	return c, nil
}

func (r *txRepo) InsertExchangeRate(_ context.Context, rate accounting.ExchangeRate) (accounting.ExchangeRate, error) {
	rate.ID = r.st.id()
	r.st.rates[rate.ID] = rate
	return rate, nil
}

func (r *txRepo) GetExchangeRate(_ context.Context, entityID, id int64) (accounting.ExchangeRate, error) {
	rate, ok := r.st.rates[id]
	if !ok || rate.EntityID != entityID {
		return accounting.ExchangeRate{}, accounting.ErrNotFound
	}
	return rate, nil
}

func (r *txRepo) FindExchangeRate(_ context.Context, entityID, currencyID int64, day time.Time) (accounting.ExchangeRate, error) {
	var (
		best  accounting.ExchangeRate
		found bool
	)
	for _, rate := range r.st.rates {
		if rate.EntityID != entityID || rate.CurrencyID != currencyID || !rate.ValidAt(day) {
			continue
		}
		if !found || rate.ValidFrom.After(best.ValidFrom) || (rate.ValidFrom.Equal(best.ValidFrom) && rate.ID > best.ID) {
			best, found = rate, true
		}
	}
	if !found {
		return accounting.ExchangeRate{}, accounting.ErrNotFound
	}
	return best, nil
}

func (r *txRepo) InsertCategory(_ context.Context, c accounting.Category) (accounting.Category, error) {
	c.ID = r.st.id()
	r.st.categories[c.ID] = c
	return c, nil
}

func (r *txRepo) GetCategory(_ context.Context, entityID, id int64) (accounting.Category, error) {
	c, ok := r.st.categories[id]
	if !ok || c.EntityID != entityID || c.DeletedAt != nil {
		return accounting.Category{}, accounting.ErrNotFound
	}
	return c, nil
}

func (r *txRepo) InsertCostCenter(_ context.Context, c accounting.CostCenter) (accounting.CostCenter, error) {
	c.ID = r.st.id()
	r.st.costCenters[c.ID] = c
	return c, nil
}

func (r *txRepo) GetCostCenter(_ context.Context, entityID, id int64) (accounting.CostCenter, error) {
	c, ok := r.st.costCenters[id]
	if !ok || c.EntityID != entityID || c.DeletedAt != nil {
		return accounting.CostCenter{}, accounting.ErrNotFound
	}
	return c, nil
}

func (r *txRepo) InsertVat(_ context.Context, v accounting.Vat) (accounting.Vat, error) {
	v.ID = r.st.id()
	r.st.vats[v.ID] = v
	return v, nil
}

func (r *txRepo) GetVat(_ context.Context, entityID, id int64) (accounting.Vat, error) {
	v, ok := r.st.vats[id]
	if !ok || v.EntityID != entityID {
		return accounting.Vat{}, accounting.ErrNotFound
	}
	return v, nil
}

func (r *txRepo) InsertAccount(_ context.Context, a accounting.Account) (accounting.Account, error) {
	a.ID = r.st.id()
	r.st.accounts[a.ID] = a
	return a, nil
}

func (r *txRepo) UpdateAccount(_ context.Context, a accounting.Account) error {
	current, ok := r.st.accounts[a.ID]
	if !ok || current.EntityID != a.EntityID {
		return accounting.ErrNotFound
	}
	r.st.accounts[a.ID] = a
	return nil
}

func (r *txRepo) GetAccount(_ context.Context, entityID, id int64) (accounting.Account, error) {
	a, ok := r.st.accounts[id]
	if !ok || a.EntityID != entityID || a.DestroyedAt != nil {
		return accounting.Account{}, accounting.ErrNotFound
	}
	return a, nil
}

func (r *txRepo) ListAccounts(_ context.Context, f accounting.AccountFilter) ([]accounting.Account, error) {
	var out []accounting.Account
	for _, a := range r.st.accounts {
		if a.EntityID != f.EntityID {
			continue
		}
		if !f.IncludeDeleted && (a.DeletedAt != nil || a.DestroyedAt != nil) {
			continue
		}
		if len(f.Types) > 0 && !hasType(f.Types, a.AccountType) {
			continue
		}
		if f.CurrencyID != nil && a.CurrencyID != *f.CurrencyID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasType(types []accounting.AccountType, t accounting.AccountType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (r *txRepo) InsertRecycledObject(_ context.Context, o accounting.RecycledObject) (accounting.RecycledObject, error) {
	o.ID = r.st.id()
	r.st.recycled[o.ID] = o
	return o, nil
}

func (r *txRepo) DeleteRecycledObject(_ context.Context, entityID int64, kind string, id int64) error {
	for key, o := range r.st.recycled {
		if o.EntityID == entityID && o.RecyclableKind == kind && o.RecyclableID == id {
			delete(r.st.recycled, key)
		}
	}
	return nil
}

func (r *txRepo) InsertPeriod(_ context.Context, p accounting.ReportingPeriod) (accounting.ReportingPeriod, error) {
	p.ID = r.st.id()
	r.st.periods[p.ID] = p
	return p, nil
}

func (r *txRepo) UpdatePeriod(_ context.Context, p accounting.ReportingPeriod) error {
	current, ok := r.st.periods[p.ID]
	if !ok || current.EntityID != p.EntityID {
		return accounting.ErrNotFound
	}
	r.st.periods[p.ID] = p
	return nil
}

func (r *txRepo) GetPeriod(_ context.Context, entityID, id int64) (accounting.ReportingPeriod, error) {
	p, ok := r.st.periods[id]
	if !ok || p.EntityID != entityID {
		return accounting.ReportingPeriod{}, accounting.ErrNotFound
	}
	return p, nil
}

func (r *txRepo) GetPeriodForUpdate(ctx context.Context, entityID, id int64) (accounting.ReportingPeriod, error) {
	return r.GetPeriod(ctx, entityID, id)
}

func (r *txRepo) GetPeriodByYear(_ context.Context, entityID int64, year int) (accounting.ReportingPeriod, error) {
	for _, p := range r.st.periods {
		if p.EntityID == entityID && p.CalendarYear == year {
			return p, nil
		}
	}
	return accounting.ReportingPeriod{}, accounting.ErrNotFound
}

func (r *txRepo) ListPeriods(_ context.Context, entityID int64) ([]accounting.ReportingPeriod, error) {
	var out []accounting.ReportingPeriod
	for _, p := range r.st.periods {
		if p.EntityID == entityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalendarYear < out[j].CalendarYear })
	return out, nil
}

func (r *txRepo) InsertTransaction(_ context.Context, t accounting.Transaction) (accounting.Transaction, error) {
	t.ID = r.st.id()
	r.st.transactions[t.ID] = t
	return t, nil
}

func (r *txRepo) UpdateTransaction(_ context.Context, t accounting.Transaction) error {
	current, ok := r.st.transactions[t.ID]
	if !ok || current.EntityID != t.EntityID {
		return accounting.ErrNotFound
	}
	r.st.transactions[t.ID] = t
	return nil
}

func (r *txRepo) GetTransaction(_ context.Context, entityID, id int64) (accounting.Transaction, error) {
	t, ok := r.st.transactions[id]
	if !ok || t.EntityID != entityID || t.DeletedAt != nil {
		return accounting.Transaction{}, accounting.ErrNotFound
	}
	return t, nil
}

func (r *txRepo) ListTransactions(_ context.Context, f accounting.TransactionFilter) ([]accounting.Transaction, error) {
	var out []accounting.Transaction
	for _, t := range r.st.transactions {
		if t.EntityID != f.EntityID || t.DeletedAt != nil {
			continue
		}
		if f.AccountID != nil && t.AccountID != *f.AccountID {
			continue
		}
		if f.CurrencyID != nil && t.CurrencyID != *f.CurrencyID {
			continue
		}
		if len(f.Types) > 0 && !hasTransactionType(f.Types, t.TransactionType) {
			continue
		}
		if f.PostedOnly && !t.Posted {
			continue
		}
		if !inRange(t.TransactionDate, f.From, f.To) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func hasTransactionType(types []accounting.TransactionType, t accounting.TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func (r *txRepo) CountTransactions(_ context.Context, entityID int64, kind accounting.TransactionType, from, to time.Time) (int, error) {
	count := 0
	for _, t := range r.st.transactions {
		if t.EntityID == entityID && t.TransactionType == kind && inRange(t.TransactionDate, &from, &to) {
			count++
		}
	}
	return count, nil
}

func (r *txRepo) InsertLineItem(_ context.Context, l accounting.LineItem) (accounting.LineItem, error) {
	l.ID = r.st.id()
	r.st.lines[l.ID] = l
	return l, nil
}

func (r *txRepo) DeleteLineItem(_ context.Context, entityID, id int64) error {
	l, ok := r.st.lines[id]
	if !ok || l.EntityID != entityID {
		return accounting.ErrNotFound
	}
	delete(r.st.lines, id)
	return nil
}

func (r *txRepo) ListLineItems(_ context.Context, entityID, transactionID int64) ([]accounting.LineItem, error) {
	var out []accounting.LineItem
	for _, l := range r.st.lines {
		if l.EntityID == entityID && l.TransactionID == transactionID {
			out = append(out, l)
		}
	}
	sortByID(out, func(l accounting.LineItem) int64 { return l.ID })
	return out, nil
}

func (r *txRepo) InsertLedgers(_ context.Context, rows []accounting.Ledger) ([]accounting.Ledger, error) {
	out := make([]accounting.Ledger, 0, len(rows))
	for _, row := range rows {
		row.ID = r.st.id()
		r.st.ledgers = append(r.st.ledgers, row)
		out = append(out, row)
	}
	return out, nil
}

func ledgerMatches(row accounting.Ledger, f accounting.LedgerFilter) bool {
	if row.EntityID != f.EntityID {
		return false
	}
	if f.TransactionID != nil && row.TransactionID != *f.TransactionID {
		return false
	}
	if f.AccountID != nil && row.PostAccountID != *f.AccountID {
		return false
	}
	if f.AnyAccountID != nil && row.PostAccountID != *f.AnyAccountID && row.FolioAccountID != *f.AnyAccountID {
		return false
	}
	if f.CurrencyID != nil && row.CurrencyID != *f.CurrencyID {
		return false
	}
	if f.BatchID != nil && row.BatchID != *f.BatchID {
		return false
	}
	return inRange(row.PostingDate, f.From, f.To)
}

func (r *txRepo) ListLedgers(_ context.Context, f accounting.LedgerFilter) ([]accounting.Ledger, error) {
	var out []accounting.Ledger
	for _, row := range r.st.ledgers {
		if ledgerMatches(row, f) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *txRepo) SumLedger(_ context.Context, f accounting.LedgerFilter) (accounting.LedgerTotals, error) {
	totals := accounting.LedgerTotals{
		Debit:         decimal.Zero,
		Credit:        decimal.Zero,
		ForeignDebit:  decimal.Zero,
		ForeignCredit: decimal.Zero,
	}
	for _, row := range r.st.ledgers {
		if !ledgerMatches(row, f) {
			continue
		}
		foreign := money.Foreign(row.Amount, row.Rate)
		if row.EntryType == accounting.EntryDebit {
			totals.Debit = totals.Debit.Add(row.Amount)
			totals.ForeignDebit = totals.ForeignDebit.Add(foreign)
		} else {
			totals.Credit = totals.Credit.Add(row.Amount)
			totals.ForeignCredit = totals.ForeignCredit.Add(foreign)
		}
	}
	return totals, nil
}

func (r *txRepo) LastLedger(_ context.Context, entityID int64) (accounting.Ledger, bool, error) {
	for i := len(r.st.ledgers) - 1; i >= 0; i-- {
		if r.st.ledgers[i].EntityID == entityID {
			return r.st.ledgers[i], true, nil
		}
	}
	return accounting.Ledger{}, false, nil
}

func (r *txRepo) InsertBalance(_ context.Context, b accounting.Balance) (accounting.Balance, error) {
	b.ID = r.st.id()
	r.st.balances[b.ID] = b
	return b, nil
}

func (r *txRepo) GetBalance(_ context.Context, entityID, id int64) (accounting.Balance, error) {
	b, ok := r.st.balances[id]
	if !ok || b.EntityID != entityID || b.DeletedAt != nil {
		return accounting.Balance{}, accounting.ErrNotFound
	}
	return b, nil
}

func (r *txRepo) ListBalances(_ context.Context, f accounting.BalanceFilter) ([]accounting.Balance, error) {
	var out []accounting.Balance
	for _, b := range r.st.balances {
		if b.EntityID != f.EntityID || b.DeletedAt != nil {
			continue
		}
		if f.AccountID != nil && b.AccountID != *f.AccountID {
			continue
		}
		if f.PeriodID != nil && b.ReportingPeriodID != *f.PeriodID {
			continue
		}
		if f.CurrencyID != nil && b.CurrencyID != *f.CurrencyID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *txRepo) InsertAssignment(_ context.Context, a accounting.Assignment) (accounting.Assignment, error) {
	a.ID = r.st.id()
	r.st.assignments[a.ID] = a
	return a, nil
}

func (r *txRepo) GetAssignment(_ context.Context, entityID, id int64) (accounting.Assignment, error) {
	a, ok := r.st.assignments[id]
	if !ok || a.EntityID != entityID {
		return accounting.Assignment{}, accounting.ErrNotFound
	}
	return a, nil
}

func (r *txRepo) DeleteAssignment(_ context.Context, entityID, id int64) error {
	a, ok := r.st.assignments[id]
	if !ok || a.EntityID != entityID {
		return accounting.ErrNotFound
	}
	delete(r.st.assignments, id)
	return nil
}

func (r *txRepo) ListAssignments(_ context.Context, f accounting.AssignmentFilter) ([]accounting.Assignment, error) {
	var out []accounting.Assignment
	for _, a := range r.st.assignments {
		if a.EntityID != f.EntityID {
			continue
		}
		if f.TransactionID != nil && a.TransactionID != *f.TransactionID {
			continue
		}
		if f.Cleared != nil && a.Cleared != *f.Cleared {
			continue
		}
		out = append(out, a)
	}
	sortByID(out, func(a accounting.Assignment) int64 { return a.ID })
	return out, nil
}

func (r *txRepo) InsertClosingRate(_ context.Context, c accounting.ClosingRate) (accounting.ClosingRate, error) {
	c.ID = r.st.id()
	r.st.closingRates[c.ID] = c
	return c, nil
}

func (r *txRepo) ListClosingRates(_ context.Context, entityID, periodID int64) ([]accounting.ClosingRate, error) {
	var out []accounting.ClosingRate
	for _, c := range r.st.closingRates {
		if c.EntityID == entityID && c.ReportingPeriodID == periodID {
			out = append(out, c)
		}
	}
	sortByID(out, func(c accounting.ClosingRate) int64 { return c.ID })
	return out, nil
}

func (r *txRepo) InsertClosingTransaction(_ context.Context, c accounting.ClosingTransaction) (accounting.ClosingTransaction, error) {
	c.ID = r.st.id()
	r.st.closingTxs[c.ID] = c
	return c, nil
}

func (r *txRepo) ListClosingTransactions(_ context.Context, f accounting.ClosingFilter) ([]accounting.ClosingTransaction, error) {
	var out []accounting.ClosingTransaction
	for _, c := range r.st.closingTxs {
		if c.EntityID != f.EntityID {
			continue
		}
		if f.AccountID != nil && c.AccountID != *f.AccountID {
			continue
		}
		if f.PeriodID != nil && c.ReportingPeriodID != *f.PeriodID {
			continue
		}
		out = append(out, c)
	}
	sortByID(out, func(c accounting.ClosingTransaction) int64 { return c.ID })
	return out, nil
}
