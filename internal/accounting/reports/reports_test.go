package reports_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func newBuilder(f *lt.Fixture) *reports.Builder {
	b := reports.NewBuilder(f.Service)
	b.WithNow(func() time.Time { return lt.Now })
	return b
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, lt.D(expected).Equal(actual), "%s: expected %s, got %s", msg, expected, actual)
}

func TestCashFlowStatement(t *testing.T) {
	f := lt.New(t)
	vat := f.StandardVat()

	bank := f.Account(accounting.AccountTypeBank)
	receivable := f.Account(accounting.AccountTypeReceivable)
	payable := f.Account(accounting.AccountTypePayable)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	otherRevenue := f.Account(accounting.AccountTypeNonOperatingRevenue)
	opex := f.Account(accounting.AccountTypeOperatingExpense)
	direct := f.Account(accounting.AccountTypeDirectExpense)
	other := f.Account(accounting.AccountTypeOtherExpense)
	contra := f.Account(accounting.AccountTypeContraAsset)
	inventory := f.Account(accounting.AccountTypeInventory)
	currentLiability := f.Account(accounting.AccountTypeCurrentLiability)
	nonCurrentAsset := f.Account(accounting.AccountTypeNonCurrentAsset)
	nonCurrentLiability := f.Account(accounting.AccountTypeNonCurrentLiability)
	equity := f.Account(accounting.AccountTypeEquity)

	f.Opening(bank, accounting.EntryDebit, "100")

	f.Simple(accounting.TransactionTypeClientInvoice, receivable, lt.Taxed(revenue.ID, "500", vat))
	f.Simple(accounting.TransactionTypeCreditNote, receivable, lt.Line(revenue.ID, "50"))
	f.Post(accounting.TransactionInput{
		Type:      accounting.TransactionTypeJournalEntry,
		AccountID: bank.ID,
		Narration: "Other income",
		Credited:  lt.Bool(false),
	}, lt.Taxed(otherRevenue.ID, "500", vat))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(opex.ID, "100", vat))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(direct.ID, "100", vat))
	f.Simple(accounting.TransactionTypeJournalEntry, contra, lt.Line(other.ID, "50"))
	f.Simple(accounting.TransactionTypeCashPurchase, bank, lt.Line(other.ID, "50"))
	f.Simple(accounting.TransactionTypeDebitNote, payable, lt.Line(other.ID, "50"))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(inventory.ID, "100", vat))
	f.Simple(accounting.TransactionTypeJournalEntry, currentLiability, lt.Line(bank.ID, "100"))
	f.Simple(accounting.TransactionTypeJournalEntry, bank, lt.Line(nonCurrentAsset.ID, "150"))
	f.Simple(accounting.TransactionTypeJournalEntry, nonCurrentLiability, lt.Line(bank.ID, "100"))
	f.Simple(accounting.TransactionTypeJournalEntry, equity, lt.Line(bank.ID, "100"))

	stmt, err := newBuilder(f).CashFlow(f.Ctx, f.Scope, nil, nil)
	require.NoError(t, err)

	expected := map[string]string{
		reports.Provisions:            "50",
		reports.Receivables:           "-530",
		reports.Payables:              "298",
		reports.Taxation:              "112",
		reports.CurrentAssets:         "-100",
		reports.CurrentLiabilities:    "100",
		reports.NonCurrentAssets:      "-150",
		reports.NonCurrentLiabilities: "100",
		reports.Equity:                "100",
		reports.Profit:                "700",
	}
	for section, amount := range expected {
		assertAmount(t, amount, stmt.Balances[section], section)
	}
	assertAmount(t, "630", stmt.OperationsCashFlow, "operations")
	assertAmount(t, "-150", stmt.InvestmentCashFlow, "investment")
	assertAmount(t, "200", stmt.FinancingCashFlow, "financing")
	assertAmount(t, "680", stmt.NetCashFlow, "net")
	assertAmount(t, "100", stmt.StartCashBalance, "start")
	assertAmount(t, "780", stmt.EndCashBalance, "end")
	assertAmount(t, "780", stmt.CashbookBalance, "cashbook")
	assert.True(t, stmt.Reconciled())
}

func TestIncomeStatement(t *testing.T) {
	f := lt.New(t)
	vat := f.StandardVat()

	bank := f.Account(accounting.AccountTypeBank)
	receivable := f.Account(accounting.AccountTypeReceivable)
	payable := f.Account(accounting.AccountTypePayable)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	otherRevenue := f.Account(accounting.AccountTypeNonOperatingRevenue)
	opex := f.Account(accounting.AccountTypeOperatingExpense)
	direct := f.Account(accounting.AccountTypeDirectExpense)
	overhead := f.Account(accounting.AccountTypeOverheadExpense)
	other := f.Account(accounting.AccountTypeOtherExpense)

	eur := f.Currency("EUR")
	high := f.Rate(eur.ID, "1.1")
	par := f.Rate(eur.ID, "1")

	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Taxed(revenue.ID, "200", vat))
	note := f.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeCreditNote,
		AccountID:      receivable.ID,
		CurrencyID:     &eur.ID,
		ExchangeRateID: &high.ID,
		Narration:      "Returns",
	}, lt.Line(revenue.ID, "50"))
	invoice := f.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeClientInvoice,
		AccountID:      receivable.ID,
		CurrencyID:     &eur.ID,
		ExchangeRateID: &par.ID,
		Narration:      "Sale",
	}, lt.Line(revenue.ID, "100"))
	_, err := f.Service.SaveAssignment(f.Ctx, f.Scope, accounting.AssignmentInput{
		TransactionID:  note.ID,
		Cleared:        accounting.Clearable{Kind: accounting.ClearedTransaction, ID: invoice.ID},
		Amount:         lt.D("50"),
		ForexAccountID: &otherRevenue.ID,
	})
	require.NoError(t, err)

	f.Post(accounting.TransactionInput{
		Type:      accounting.TransactionTypeJournalEntry,
		AccountID: bank.ID,
		Narration: "Interest",
		Credited:  lt.Bool(false),
	}, lt.Taxed(otherRevenue.ID, "200", vat))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(opex.ID, "100", vat))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(direct.ID, "70", vat))
	f.Simple(accounting.TransactionTypeJournalEntry, payable, lt.Line(overhead.ID, "70"))
	f.Simple(accounting.TransactionTypeCashPurchase, bank, lt.Line(other.ID, "70"))
	f.Simple(accounting.TransactionTypeDebitNote, payable, lt.Line(other.ID, "50"))

	stmt, err := newBuilder(f).IncomeStatement(f.Ctx, f.Scope, nil, nil)
	require.NoError(t, err)

	balances := map[accounting.AccountType]string{
		accounting.AccountTypeOperatingRevenue:    "-245",
		accounting.AccountTypeOperatingExpense:    "100",
		accounting.AccountTypeNonOperatingRevenue: "-205",
		accounting.AccountTypeDirectExpense:       "70",
		accounting.AccountTypeOverheadExpense:     "70",
		accounting.AccountTypeOtherExpense:        "20",
	}
	found := map[accounting.AccountType]decimal.Decimal{}
	for _, section := range stmt.Sections {
		for accountType, amount := range section.Balances {
			found[accountType] = amount
		}
	}
	for accountType, amount := range balances {
		assertAmount(t, amount, found[accountType], string(accountType))
	}

	assertAmount(t, "245", stmt.OperatingRevenues, "operating revenues")
	assertAmount(t, "205", stmt.NonOperatingRevenues, "non operating revenues")
	assertAmount(t, "100", stmt.OperatingExpenses, "operating expenses")
	assertAmount(t, "350", stmt.GrossProfit, "gross profit")
	assertAmount(t, "160", stmt.NonOperatingExpenses, "non operating expenses")
	assertAmount(t, "190", stmt.NetProfit, "net profit")
}

// tradingFixture books owner capital, a taxed cash sale and a taxed bill.
func tradingFixture(t *testing.T) *lt.Fixture {
	f := lt.New(t)
	vat := f.StandardVat()
	bank := f.Account(accounting.AccountTypeBank)
	equity := f.Account(accounting.AccountTypeEquity)
	payable := f.Account(accounting.AccountTypePayable)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	opex := f.Account(accounting.AccountTypeOperatingExpense)

	f.Opening(bank, accounting.EntryDebit, "1000")
	f.Opening(equity, accounting.EntryCredit, "1000")
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Taxed(revenue.ID, "200", vat))
	f.Simple(accounting.TransactionTypeSupplierBill, payable, lt.Taxed(opex.ID, "100", vat))
	return f
}

func TestBalanceSheetBalances(t *testing.T) {
	f := tradingFixture(t)

	sheet, err := newBuilder(f).BalanceSheet(f.Ctx, f.Scope, nil)
	require.NoError(t, err)

	assertAmount(t, "1232", sheet.Sections[accounting.SectionAssets].Total, "assets")
	assertAmount(t, "-132", sheet.Sections[accounting.SectionLiabilities].Total, "liabilities")
	assertAmount(t, "-1000", sheet.Sections[accounting.SectionEquity].Total, "equity")
	assertAmount(t, "-100", sheet.NetProfit, "profit")
	assertAmount(t, "1100", sheet.NetAssets, "net assets")
	assertAmount(t, "1100", sheet.TotalEquity, "total equity")
	assert.True(t, sheet.Balanced())
}

func TestTrialBalanceFromLedger(t *testing.T) {
	f := tradingFixture(t)

	tb, err := newBuilder(f).TrialBalance(f.Ctx, f.Scope, nil)
	require.NoError(t, err)

	assert.True(t, tb.Balanced())
	assertAmount(t, "1332", tb.TotalDebit, "debit")
	assertAmount(t, "1332", tb.TotalCredit, "credit")
	assertAmount(t, "0", tb.TotalClosing, "closing")
	require.NotEmpty(t, tb.Groups)
	assert.Equal(t, "Bank", tb.Groups[0].Key)
}

func TestBuildTrialBalance(t *testing.T) {
	settings := accounting.DefaultSettings()
	lines := []accounting.AccountBalance{
		{
			Account: accounting.Account{Code: 302, Name: "Savings", AccountType: accounting.AccountTypeBank},
			Opening: lt.D("500"),
			Closing: lt.D("550"),
		},
		{
			Account: accounting.Account{Code: 301, Name: "Current", AccountType: accounting.AccountTypeBank},
			Opening: lt.D("1000"),
			Closing: lt.D("1050"),
		},
		{
			Account: accounting.Account{Code: 1301, Name: "Suppliers", AccountType: accounting.AccountTypePayable},
			Opening: lt.D("0"),
			Closing: lt.D("-390"),
		},
		{
			Account: accounting.Account{Code: 3001, Name: "Sales", AccountType: accounting.AccountTypeOperatingRevenue},
			Opening: lt.D("0"),
			Closing: lt.D("-1210"),
		},
	}

	tb := reports.BuildTrialBalance(settings, lines)
	require.Len(t, tb.Groups, 3)
	assert.Equal(t, "Bank", tb.Groups[0].Key)
	assert.Equal(t, 301, tb.Groups[0].Accounts[0].Code)
	assert.Equal(t, "Payable", tb.Groups[1].Key)
	assert.Equal(t, "Operating Revenue", tb.Groups[2].Key)

	assertAmount(t, "1600", tb.TotalDebit, "debit")
	assertAmount(t, "1600", tb.TotalCredit, "credit")
	assertAmount(t, "1500", tb.TotalOpening, "opening")
	assertAmount(t, "0", tb.TotalClosing, "closing")
	assert.True(t, tb.Balanced())
}

func TestCashFlowCountsStartDayOnce(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	f.Post(accounting.TransactionInput{
		Type:      accounting.TransactionTypeCashSale,
		AccountID: bank.ID,
		Date:      start,
	}, lt.Line(revenue.ID, "100"))

	stmt, err := newBuilder(f).CashFlow(f.Ctx, f.Scope, &start, nil)
	require.NoError(t, err)
	assertAmount(t, "0", stmt.StartCashBalance, "start")
	assertAmount(t, "100", stmt.NetCashFlow, "net")
	assertAmount(t, "100", stmt.EndCashBalance, "end")
	assertAmount(t, "100", stmt.CashbookBalance, "cashbook")
	assert.True(t, stmt.Reconciled())

	dayAfter := start.AddDate(0, 0, 1)
	stmt, err = newBuilder(f).CashFlow(f.Ctx, f.Scope, &dayAfter, nil)
	require.NoError(t, err)
	assertAmount(t, "100", stmt.StartCashBalance, "start")
	assertAmount(t, "0", stmt.NetCashFlow, "net")
	assert.True(t, stmt.Reconciled())
}
