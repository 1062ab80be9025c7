// Package ledgertest builds ledger fixtures on the in-memory repository.
package ledgertest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// Now is the fixed clock of every fixture: mid fiscal year, away from its bounds.
var Now = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

// Fixture is an entity with a reporting currency on a fresh store.
type Fixture struct {
	T       testing.TB
	Ctx     context.Context
	Service *accounting.Service
	Store   *memstore.Store
	Scope   accounting.Scope
	Entity  accounting.Entity
	Audit   *AuditRecorder

	controlVat *accounting.Vat
}

// New creates a USD entity on an empty store.
func New(t testing.TB) *Fixture {
	t.Helper()
	return NewWithSettings(t, accounting.DefaultSettings())
}

// NewWithSettings is New with custom ledger settings.
func NewWithSettings(t testing.TB, settings accounting.Settings) *Fixture {
	t.Helper()
	store := memstore.New()
	audit := &AuditRecorder{}
	svc := accounting.NewService(store, audit, settings)
	svc.WithNow(func() time.Time { return Now })
	ctx := context.Background()
	entity, err := svc.CreateEntity(ctx, accounting.EntityInput{Name: "Test Entity", CurrencyCode: "USD"})
	require.NoError(t, err)
	return &Fixture{
		T:       t,
		Ctx:     ctx,
		Service: svc,
		Store:   store,
		Scope:   accounting.ForEntity(entity.ID),
		Entity:  entity,
		Audit:   audit,
	}
}

// D parses a decimal literal.
func D(s string) decimal.Decimal {
	return money.MustParse(s)
}

// Account creates an account of type t in the reporting currency.
func (f *Fixture) Account(t accounting.AccountType) accounting.Account {
	f.T.Helper()
	return f.AccountIn(t, nil)
}

// AccountIn creates an account of type t in the given currency.
func (f *Fixture) AccountIn(t accounting.AccountType, currencyID *int64) accounting.Account {
	f.T.Helper()
	account, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		Name:       fmt.Sprintf("%s account", t),
		Type:       t,
		CurrencyID: currencyID,
	})
	require.NoError(f.T, err)
	return account
}

// Currency registers a foreign currency.
func (f *Fixture) Currency(code string) accounting.Currency {
	f.T.Helper()
	currency, err := f.Service.CreateCurrency(f.Ctx, f.Scope, accounting.CurrencyInput{Name: code, CurrencyCode: code})
	require.NoError(f.T, err)
	return currency
}

// Rate registers a rate for the currency valid from the start of the fiscal year.
func (f *Fixture) Rate(currencyID int64, rate string) accounting.ExchangeRate {
	f.T.Helper()
	r, err := f.Service.CreateExchangeRate(f.Ctx, f.Scope, accounting.ExchangeRateInput{
		CurrencyID: currencyID,
		Rate:       D(rate),
		ValidFrom:  accounting.PeriodStart(f.Entity, Now),
	})
	require.NoError(f.T, err)
	return r
}

// Vat creates a VAT rate charged through a new CONTROL account.
func (f *Fixture) Vat(rate string) accounting.Vat {
	f.T.Helper()
	control := f.Account(accounting.AccountTypeControl)
	vat, err := f.Service.SaveVat(f.Ctx, f.Scope, accounting.VatInput{
		Code:      "V" + rate,
		Name:      "VAT " + rate + "%",
		Rate:      D(rate),
		AccountID: &control.ID,
	})
	require.NoError(f.T, err)
	return vat
}

// StandardVat returns a shared 16% VAT, creating it on first use.
func (f *Fixture) StandardVat() accounting.Vat {
	f.T.Helper()
	if f.controlVat == nil {
		vat := f.Vat("16")
		f.controlVat = &vat
	}
	return *f.controlVat
}

// Line is a line item input for account with amount.
func Line(accountID int64, amount string) accounting.LineItemInput {
	return accounting.LineItemInput{AccountID: accountID, Amount: D(amount)}
}

// Taxed is a line item input charging vat.
func Taxed(accountID int64, amount string, vat accounting.Vat) accounting.LineItemInput {
	in := Line(accountID, amount)
	in.VatID = &vat.ID
	return in
}

// Draft saves a transaction dated Now with its lines, leaving it unposted.
func (f *Fixture) Draft(in accounting.TransactionInput, lines ...accounting.LineItemInput) accounting.Transaction {
	f.T.Helper()
	if in.Date.IsZero() {
		in.Date = Now
	}
	t, err := f.Service.SaveTransaction(f.Ctx, f.Scope, in)
	require.NoError(f.T, err)
	for _, line := range lines {
		line.TransactionID = t.ID
		_, err := f.Service.AddLineItem(f.Ctx, f.Scope, line)
		require.NoError(f.T, err)
	}
	return t
}

// Post saves and posts a transaction.
func (f *Fixture) Post(in accounting.TransactionInput, lines ...accounting.LineItemInput) accounting.Transaction {
	f.T.Helper()
	t := f.Draft(in, lines...)
	posted, err := f.Service.Post(f.Ctx, f.Scope, t.ID)
	require.NoError(f.T, err)
	return posted
}

// Simple posts a transaction of type kind against main with the given lines.
func (f *Fixture) Simple(kind accounting.TransactionType, main accounting.Account, lines ...accounting.LineItemInput) accounting.Transaction {
	f.T.Helper()
	return f.Post(accounting.TransactionInput{Type: kind, AccountID: main.ID, Narration: string(kind)}, lines...)
}

// Opening stores an opening balance in the current year.
func (f *Fixture) Opening(account accounting.Account, side accounting.EntryType, amount string) accounting.Balance {
	f.T.Helper()
	b, err := f.Service.SaveBalance(f.Ctx, f.Scope, accounting.BalanceInput{
		AccountID:   account.ID,
		BalanceType: side,
		Amount:      D(amount),
	})
	require.NoError(f.T, err)
	return b
}

// Closing returns the reporting currency closing balance of an account as at Now.
func (f *Fixture) Closing(account accounting.Account) decimal.Decimal {
	f.T.Helper()
	balances, err := f.Service.ClosingBalance(f.Ctx, f.Scope, account.ID, nil, nil)
	require.NoError(f.T, err)
	return balances[f.Entity.CurrencyID]
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
