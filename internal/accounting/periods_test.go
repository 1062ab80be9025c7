package accounting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
)

func TestPeriodTransitions(t *testing.T) {
	cases := []struct {
		name  string
		steps []accounting.PeriodStatus
		ok    bool
	}{
		{"open to adjusting", []accounting.PeriodStatus{accounting.PeriodStatusAdjusting}, true},
		{"adjusting to closed", []accounting.PeriodStatus{accounting.PeriodStatusAdjusting, accounting.PeriodStatusClosed}, true},
		{"same status", []accounting.PeriodStatus{accounting.PeriodStatusOpen}, true},
		{"skip adjusting", []accounting.PeriodStatus{accounting.PeriodStatusClosed}, false},
		{"reopen", []accounting.PeriodStatus{accounting.PeriodStatusAdjusting, accounting.PeriodStatusOpen}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := lt.New(t)
			period, err := f.Service.CurrentPeriod(f.Ctx, f.Scope)
			require.NoError(t, err)
			require.Equal(t, accounting.PeriodStatusOpen, period.Status)

			var last error
			for _, status := range tc.steps {
				period, last = f.Service.SetPeriodStatus(f.Ctx, f.Scope, period.ID, status)
				if last != nil {
					break
				}
			}
			if tc.ok {
				require.NoError(t, last)
				assert.Equal(t, tc.steps[len(tc.steps)-1], period.Status)
				return
			}
			assert.ErrorIs(t, last, accounting.ErrInvalidPeriodTransition)
		})
	}
}

func TestClosePeriodCarriesBalances(t *testing.T) {
	f := lt.New(t)
	bank := f.Account(accounting.AccountTypeBank)
	equity := f.Account(accounting.AccountTypeEquity)
	retained := f.Account(accounting.AccountTypeEquity)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	f.Opening(bank, accounting.EntryDebit, "1000")
	f.Opening(equity, accounting.EntryCredit, "1000")
	f.Simple(accounting.TransactionTypeCashSale, bank, lt.Line(revenue.ID, "200"))

	period, err := f.Service.CurrentPeriod(f.Ctx, f.Scope)
	require.NoError(t, err)

	_, err = f.Service.ClosePeriod(f.Ctx, f.Scope, period.ID, &retained.ID)
	assert.ErrorIs(t, err, accounting.ErrInvalidPeriodTransition)

	_, err = f.Service.SetPeriodStatus(f.Ctx, f.Scope, period.ID, accounting.PeriodStatusAdjusting)
	require.NoError(t, err)
	_, err = f.Service.ClosePeriod(f.Ctx, f.Scope, period.ID, &revenue.ID)
	requireKind(t, err, accounting.KindInvalidAccountType)

	closed, err := f.Service.ClosePeriod(f.Ctx, f.Scope, period.ID, &retained.ID)
	require.NoError(t, err)
	assert.Equal(t, accounting.PeriodStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosingDate)

	next := lt.Now.Year() + 1
	carried, err := f.Service.ListBalances(f.Ctx, f.Scope, bank.ID, next)
	require.NoError(t, err)
	require.Len(t, carried, 1)
	assert.Equal(t, accounting.EntryDebit, carried[0].BalanceType)
	assert.Equal(t, accounting.TransactionTypeJournalEntry, carried[0].TransactionType)
	assertDecimal(t, "1200", carried[0].Amount)

	profit, err := f.Service.ListBalances(f.Ctx, f.Scope, retained.ID, next)
	require.NoError(t, err)
	require.Len(t, profit, 1)
	assert.Equal(t, accounting.EntryCredit, profit[0].BalanceType)
	assertDecimal(t, "200", profit[0].Amount)

	none, err := f.Service.ListBalances(f.Ctx, f.Scope, revenue.ID, next)
	require.NoError(t, err)
	assert.Empty(t, none)

	opening, err := f.Service.OpeningBalance(f.Ctx, f.Scope, equity.ID, &next, nil)
	require.NoError(t, err)
	assertDecimal(t, "-1000", opening[f.Entity.CurrencyID])

	_, err = f.Service.SaveTransaction(f.Ctx, f.Scope, accounting.TransactionInput{
		Type:      accounting.TransactionTypeCashSale,
		AccountID: bank.ID,
		Date:      lt.Now,
	})
	assert.ErrorIs(t, err, accounting.ErrPeriodClosed)

	_, err = f.Service.SaveBalance(f.Ctx, f.Scope, accounting.BalanceInput{
		AccountID:   bank.ID,
		BalanceType: accounting.EntryDebit,
		Amount:      lt.D("1"),
	})
	assert.ErrorIs(t, err, accounting.ErrPeriodClosed)

	later := f.Post(accounting.TransactionInput{
		Type:      accounting.TransactionTypeCashSale,
		AccountID: bank.ID,
		Date:      time.Date(next, time.February, 1, 0, 0, 0, 0, time.UTC),
	}, lt.Line(revenue.ID, "10"))
	assert.Equal(t, "CS02/0001", later.TransactionNo)
}

func TestBalancesTranslation(t *testing.T) {
	f := lt.New(t)
	eur := f.Currency("EUR")
	par := f.Rate(eur.ID, "1")
	year := lt.Now.Year()
	_, end := accounting.YearBounds(f.Entity, year)
	closingRate, err := f.Service.CreateExchangeRate(f.Ctx, f.Scope, accounting.ExchangeRateInput{
		CurrencyID: eur.ID,
		Rate:       lt.D("1.2"),
		ValidFrom:  end,
	})
	require.NoError(t, err)

	client := f.AccountIn(accounting.AccountTypeReceivable, &eur.ID)
	revenue := f.Account(accounting.AccountTypeOperatingRevenue)
	forex := f.Account(accounting.AccountTypeNonOperatingRevenue)
	f.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeClientInvoice,
		AccountID:      client.ID,
		ExchangeRateID: &par.ID,
	}, lt.Line(revenue.ID, "100"))

	period, err := f.Service.CurrentPeriod(f.Ctx, f.Scope)
	require.NoError(t, err)
	_, err = f.Service.AddClosingRate(f.Ctx, f.Scope, period.ID, closingRate.ID)
	require.NoError(t, err)

	closed, err := f.Service.IsClosed(f.Ctx, f.Scope, client.ID, year)
	require.NoError(t, err)
	assert.False(t, closed)

	posted, err := f.Service.PrepareBalancesTranslation(f.Ctx, f.Scope, period.ID, forex.ID)
	require.NoError(t, err)
	require.Len(t, posted, 1)
	assert.Equal(t, accounting.TransactionTypeJournalEntry, posted[0].TransactionType)
	assert.True(t, posted[0].Posted)
	assert.True(t, posted[0].TransactionDate.Equal(end))

	assertDecimal(t, "120", f.Closing(client))
	assertDecimal(t, "-20", f.Closing(forex))

	foreign, err := f.Service.ClosingBalance(f.Ctx, f.Scope, client.ID, nil, &eur.ID)
	require.NoError(t, err)
	assertDecimal(t, "100", foreign[eur.ID])

	closed, err = f.Service.IsClosed(f.Ctx, f.Scope, client.ID, year)
	require.NoError(t, err)
	assert.True(t, closed)

	current, err := f.Service.Period(f.Ctx, f.Scope, year)
	require.NoError(t, err)
	assert.Equal(t, accounting.PeriodStatusAdjusting, current.Status)

	again, err := f.Service.PrepareBalancesTranslation(f.Ctx, f.Scope, period.ID, forex.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReportingYearFollowsEntityYearStart(t *testing.T) {
	entity := accounting.Entity{YearStart: time.April}
	march := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2024, accounting.ReportingYear(entity, march))
	assert.Equal(t, 2025, accounting.ReportingYear(entity, april))
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), accounting.PeriodStart(entity, march))
	assert.Equal(t, time.Date(2026, time.March, 31, 23, 59, 59, 999999999, time.UTC), accounting.PeriodEnd(entity, april))
}
