package accounting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
)

const settingsTOML = `
forex_scale = 6
single_currency = ["equity", "control"]

[accounts]
receivable = "Debtors"

[account_codes]
receivable = 7000

[transactions]
in = "Sales Invoice"

[income_statement]
operating_revenues = ["OPERATING_REVENUE", "NON_OPERATING_REVENUE"]
`

func TestParseSettingsOverlaysDefaults(t *testing.T) {
	s, err := accounting.ParseSettings(settingsTOML)
	require.NoError(t, err)

	assert.Equal(t, int32(6), s.ForexScale)
	assert.Equal(t, "Debtors", s.AccountLabel(accounting.AccountTypeReceivable))
	assert.Equal(t, "Bank", s.AccountLabel(accounting.AccountTypeBank))
	assert.Equal(t, 7000, s.AccountCodes[accounting.AccountTypeReceivable])
	assert.Equal(t, 300, s.AccountCodes[accounting.AccountTypeBank])
	assert.Equal(t, "Sales Invoice", s.TransactionLabel(accounting.TransactionTypeClientInvoice))
	assert.Equal(t, "Cash Sale", s.TransactionLabel(accounting.TransactionTypeCashSale))
	assert.True(t, s.IsSingleCurrency(accounting.AccountTypeEquity))
	assert.False(t, s.IsSingleCurrency(accounting.AccountTypeInventory))
	assert.Equal(t, []accounting.AccountType{
		accounting.AccountTypeOperatingRevenue,
		accounting.AccountTypeNonOperatingRevenue,
	}, s.IncomeStatement[accounting.SectionOperatingRevenues])
	assert.Len(t, s.BalanceSheet[accounting.SectionAssets], 6)
}

func TestParseSettingsRejectsUnknownTypes(t *testing.T) {
	for name, doc := range map[string]string{
		"account label":   "[accounts]\nasset = \"Assets\"",
		"transaction":     "[transactions]\nxx = \"Unknown\"",
		"single currency": "single_currency = [\"LOAN\"]",
		"section":         "[balance_sheet]\nassets = [\"CASH\"]",
		"scale":           "forex_scale = -1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := accounting.ParseSettings(doc)
			assert.Error(t, err)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	defaults, err := accounting.LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, accounting.DefaultSettings(), defaults)

	path := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(settingsTOML), 0o600))
	s, err := accounting.LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "Debtors", s.AccountLabel(accounting.AccountTypeReceivable))

	_, err = accounting.LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestSettingsDriveLabelsAndCodes(t *testing.T) {
	s, err := accounting.ParseSettings(settingsTOML)
	require.NoError(t, err)
	f := lt.NewWithSettings(t, s)

	client := f.Account(accounting.AccountTypeReceivable)
	assert.Equal(t, 7001, client.Code)

	bank := f.Account(accounting.AccountTypeBank)
	_, err = f.Service.SaveTransaction(f.Ctx, f.Scope, accounting.TransactionInput{
		Type:      accounting.TransactionTypeClientInvoice,
		AccountID: bank.ID,
		Date:      lt.Now,
	})
	requireKind(t, err, accounting.KindMainAccount)
	assert.Equal(t, "Sales Invoice Main Account must be of type Debtors", err.Error())
}
