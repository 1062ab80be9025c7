package accounting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
)

func TestLedgerIntegrity(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	vat := f.StandardVat()
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Taxed(revenue.ID, "100", vat))
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "40"))

	report, err := f.Service.VerifyLedgerIntegrity(f.Ctx, f.Scope)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Equal(t, 2, report.Transactions)
	assert.Len(t, f.Store.LedgerRows(), report.Rows)

	rows := f.Store.LedgerRows()
	require.Greater(t, len(rows), 2)
	target := rows[2]
	f.Store.Tamper(target.ID, target.Amount.Add(lt.D("1")))

	report, err = f.Service.VerifyLedgerIntegrity(f.Ctx, f.Scope)
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.NotNil(t, report.BrokenAt)
	assert.Equal(t, target.ID, *report.BrokenAt)
	assert.Contains(t, report.Unbalanced, target.TransactionID)
	assert.ErrorIs(t, report.Err(), accounting.ErrLedgerTampered)
}

func TestLedgerIntegrityIsScopedToEntity(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "10"))

	other, err := f.Service.CreateEntity(f.Ctx, accounting.EntityInput{Name: "Other", CurrencyCode: "KES"})
	require.NoError(t, err)
	report, err := f.Service.VerifyLedgerIntegrity(f.Ctx, accounting.ForEntity(other.ID))
	require.NoError(t, err)
	assert.Zero(t, report.Rows)
	assert.True(t, report.OK())
}
