package accounting_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
)

func TestAccountCodesAreUniquePerType(t *testing.T) {
	f := lt.New(t)
	taken := 502
	_, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		Name: "Manual",
		Type: accounting.AccountTypeReceivable,
		Code: &taken,
	})
	require.NoError(t, err)

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, f.Account(accounting.AccountTypeReceivable).Code)
	}
	bank := f.Account(accounting.AccountTypeBank)

	assert.Equal(t, []int{503, 504, 505}, codes)
	assert.Equal(t, 301, bank.Code)
}

func TestAccountTypeChangeRenumbers(t *testing.T) {
	f := lt.New(t)
	account := f.Account(accounting.AccountTypeReceivable)
	require.Equal(t, 501, account.Code)

	moved, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		ID:   &account.ID,
		Name: account.Name,
		Type: accounting.AccountTypePayable,
	})
	require.NoError(t, err)
	assert.Equal(t, 1301, moved.Code)
	assert.Equal(t, accounting.AccountTypePayable, moved.AccountType)
}

func TestAccountValidation(t *testing.T) {
	f := lt.New(t)
	eur := f.Currency("EUR")
	category, err := f.Service.CreateCategory(f.Ctx, f.Scope, accounting.CategoryInput{Name: "Utilities", Type: accounting.AccountTypeOperatingExpense})
	require.NoError(t, err)

	_, err = f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{Name: "Untyped"})
	requireKind(t, err, accounting.KindMissingAccountType)
	assert.Equal(t, "Account type is Required", err.Error())

	_, err = f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{Name: "Bogus", Type: "ASSET"})
	requireKind(t, err, accounting.KindInvalidAccountType)

	_, err = f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{Name: "Tax", Type: accounting.AccountTypeControl, CurrencyID: &eur.ID})
	requireKind(t, err, accounting.KindInvalidCurrency)

	_, err = f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{Name: "Sales", Type: accounting.AccountTypeOperatingRevenue, CategoryID: &category.ID})
	requireKind(t, err, accounting.KindInvalidCategoryType)
	assert.Equal(t, "Cannot assign Operating Revenue Account to Operating Expense Category", err.Error())

	power, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{Name: "Power", Type: accounting.AccountTypeOperatingExpense, CategoryID: &category.ID})
	require.NoError(t, err)
	assert.Equal(t, f.Entity.CurrencyID, power.CurrencyID)
}

func TestDeleteAccountWithBalanceFails(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "25"))

	err := f.Service.DeleteAccount(f.Ctx, f.Scope, bank.ID)
	requireKind(t, err, accounting.KindHangingTransactions)

	stored, err := f.Service.GetAccount(f.Ctx, f.Scope, bank.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DeletedAt)
}

func TestDeleteRestoreDestroyAccount(t *testing.T) {
	f := lt.New(t)
	idle := f.Account(accounting.AccountTypeBank)

	err := f.Service.DestroyAccount(f.Ctx, f.Scope, idle.ID)
	require.Error(t, err)

	require.NoError(t, f.Service.DeleteAccount(f.Ctx, f.Scope, idle.ID))
	listed, err := f.Service.ListAccounts(f.Ctx, f.Scope, accounting.AccountTypeBank)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, f.Service.RestoreAccount(f.Ctx, f.Scope, idle.ID))
	listed, err = f.Service.ListAccounts(f.Ctx, f.Scope, accounting.AccountTypeBank)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, f.Service.DeleteAccount(f.Ctx, f.Scope, idle.ID))
	require.NoError(t, f.Service.DestroyAccount(f.Ctx, f.Scope, idle.ID))
	assert.Equal(t, []string{"account.create", "account.delete", "account.delete", "account.destroy"}, accountActions(f))
}

func TestScopeIsolatesEntities(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)

	other, err := f.Service.CreateEntity(f.Ctx, accounting.EntityInput{Name: "Other", CurrencyCode: "EUR"})
	require.NoError(t, err)
	_, err = f.Service.GetAccount(f.Ctx, accounting.ForEntity(other.ID), bank.ID)
	assert.True(t, errors.Is(err, accounting.ErrNotFound))

	_, err = f.Service.GetAccount(f.Ctx, accounting.Scope{}, bank.ID)
	assert.ErrorIs(t, err, accounting.ErrEntityRequired)
}

func accountActions(f *lt.Fixture) []string {
	var out []string
	for _, action := range f.Audit.Actions() {
		if len(action) > 8 && action[:8] == "account." {
			out = append(out, action)
		}
	}
	return out
}

func TestDeletedAccountsRejectPostings(t *testing.T) {
	f := lt.New(t)
	client := f.Account(accounting.AccountTypeReceivable)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	other := f.Account(accounting.AccountTypeOperatingRevenue)
	require.NoError(t, f.Service.DeleteAccount(f.Ctx, f.Scope, client.ID))

	_, err := f.Service.SaveTransaction(f.Ctx, f.Scope, accounting.TransactionInput{
		Type:      accounting.TransactionTypeClientInvoice,
		AccountID: client.ID,
		Date:      lt.Now,
	})
	require.ErrorIs(t, err, accounting.ErrAccountDeleted)

	require.NoError(t, f.Service.RestoreAccount(f.Ctx, f.Scope, client.ID))
	draft := f.Draft(accounting.TransactionInput{Type: accounting.TransactionTypeClientInvoice, AccountID: client.ID},
		lt.Line(revenue.ID, "100"))
	require.NoError(t, f.Service.DeleteAccount(f.Ctx, f.Scope, other.ID))
	line := lt.Line(other.ID, "10")
	line.TransactionID = draft.ID
	_, err = f.Service.AddLineItem(f.Ctx, f.Scope, line)
	require.ErrorIs(t, err, accounting.ErrAccountDeleted)

	require.NoError(t, f.Service.DeleteAccount(f.Ctx, f.Scope, revenue.ID))
	_, err = f.Service.Post(f.Ctx, f.Scope, draft.ID)
	require.ErrorIs(t, err, accounting.ErrAccountDeleted)
	assert.Empty(t, f.Store.LedgerRows())
	assert.True(t, f.Closing(client).IsZero())
}

func TestAccountUpdateKeepsCurrency(t *testing.T) {
	f := lt.New(t)
	eur := f.Currency("EUR")
	rate := f.Rate(eur.ID, "1.2")
	client := f.AccountIn(accounting.AccountTypeReceivable, &eur.ID)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)

	renamed, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		ID:   &client.ID,
		Name: "Renamed client",
		Type: accounting.AccountTypeReceivable,
	})
	require.NoError(t, err)
	assert.Equal(t, eur.ID, renamed.CurrencyID)

	f.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeClientInvoice,
		AccountID:      client.ID,
		ExchangeRateID: &rate.ID,
	}, lt.Line(revenue.ID, "10"))
	_, err = f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		ID:         &client.ID,
		Name:       "Renamed client",
		Type:       accounting.AccountTypeReceivable,
		CurrencyID: &f.Entity.CurrencyID,
	})
	require.ErrorIs(t, err, accounting.ErrCurrencyInUse)
	stored, err := f.Service.GetAccount(f.Ctx, f.Scope, client.ID)
	require.NoError(t, err)
	assert.Equal(t, eur.ID, stored.CurrencyID)

	idle := f.AccountIn(accounting.AccountTypeReceivable, &eur.ID)
	moved, err := f.Service.SaveAccount(f.Ctx, f.Scope, accounting.AccountInput{
		ID:         &idle.ID,
		Name:       "Idle client",
		Type:       accounting.AccountTypeReceivable,
		CurrencyID: &f.Entity.CurrencyID,
	})
	require.NoError(t, err)
	assert.Equal(t, f.Entity.CurrencyID, moved.CurrencyID)
}
