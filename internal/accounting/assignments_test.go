package accounting_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	lt "github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledgertest"
)

type clearingFixture struct {
	*lt.Fixture
	client  accounting.Account
	bank    accounting.Account
	revenue accounting.Account
	forex   accounting.Account
}

func newClearingFixture(t *testing.T) *clearingFixture {
	f := lt.New(t)
	return &clearingFixture{
		Fixture: f,
		client:  f.Account(accounting.AccountTypeReceivable),
		bank:    f.Account(accounting.AccountTypeBank),
		revenue: f.Account(accounting.AccountTypeOperatingRevenue),
		forex:   f.Account(accounting.AccountTypeNonOperatingRevenue),
	}
}

func (c *clearingFixture) invoice(amount string) accounting.Transaction {
	return c.Simple(accounting.TransactionTypeClientInvoice, c.client, lt.Line(c.revenue.ID, amount))
}

func (c *clearingFixture) receipt(amount string) accounting.Transaction {
	return c.Simple(accounting.TransactionTypeClientReceipt, c.client, lt.Line(c.bank.ID, amount))
}

func (c *clearingFixture) assign(from, to accounting.Transaction, amount string) (accounting.Assignment, error) {
	return c.Service.SaveAssignment(c.Ctx, c.Scope, accounting.AssignmentInput{
		TransactionID: from.ID,
		Cleared:       accounting.Clearable{Kind: accounting.ClearedTransaction, ID: to.ID},
		Amount:        lt.D(amount),
	})
}

func TestReceiptClearsInvoice(t *testing.T) {
	c := newClearingFixture(t)
	inv := c.invoice("116")
	rc := c.receipt("116")

	a, err := c.assign(rc, inv, "116")
	require.NoError(t, err)
	assert.Nil(t, a.ForexBatchID)
	assert.Equal(t, lt.Now, a.AssignmentDate)

	receipt, err := c.Service.GetTransaction(c.Ctx, c.Scope, rc.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Balance.IsZero())

	invoice, err := c.Service.GetTransaction(c.Ctx, c.Scope, inv.ID)
	require.NoError(t, err)
	assertDecimal(t, "116", invoice.ClearedAmount)

	clearances, err := c.Service.Clearances(c.Ctx, c.Scope, accounting.Clearable{Kind: accounting.ClearedTransaction, ID: inv.ID})
	require.NoError(t, err)
	require.Len(t, clearances, 1)
	assert.Equal(t, a.ID, clearances[0].ID)

	assigned, err := c.Service.Assignments(c.Ctx, c.Scope, rc.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
}

func TestAssignmentRules(t *testing.T) {
	t.Run("unassignable", func(t *testing.T) {
		c := newClearingFixture(t)
		first, second := c.invoice("10"), c.invoice("10")
		_, err := c.assign(first, second, "5")
		requireKind(t, err, accounting.KindUnassignableTransaction)
		assert.Contains(t, err.Error(), "Client Invoice Transaction cannot have assignments")
	})

	t.Run("unclearable", func(t *testing.T) {
		c := newClearingFixture(t)
		first, second := c.receipt("10"), c.receipt("10")
		_, err := c.assign(first, second, "5")
		requireKind(t, err, accounting.KindUnclearableTransaction)
	})

	t.Run("negative amount", func(t *testing.T) {
		c := newClearingFixture(t)
		_, err := c.assign(c.receipt("10"), c.invoice("10"), "-1")
		requireKind(t, err, accounting.KindNegativeAmount)
	})

	t.Run("self clearance", func(t *testing.T) {
		c := newClearingFixture(t)
		je := c.Simple(accounting.TransactionTypeJournalEntry, c.client, lt.Line(c.revenue.ID, "10"))
		_, err := c.assign(je, je, "5")
		requireKind(t, err, accounting.KindSelfClearance)
	})

	t.Run("unposted", func(t *testing.T) {
		c := newClearingFixture(t)
		draft := c.Draft(accounting.TransactionInput{Type: accounting.TransactionTypeClientReceipt, AccountID: c.client.ID},
			lt.Line(c.bank.ID, "10"))
		_, err := c.assign(draft, c.invoice("10"), "5")
		requireKind(t, err, accounting.KindUnpostedAssignment)
	})

	t.Run("different account", func(t *testing.T) {
		c := newClearingFixture(t)
		inv := c.invoice("10")
		other := c.Account(accounting.AccountTypeReceivable)
		rc := c.Simple(accounting.TransactionTypeClientReceipt, other, lt.Line(c.bank.ID, "10"))
		_, err := c.assign(rc, inv, "5")
		requireKind(t, err, accounting.KindInvalidClearanceAccount)
	})

	t.Run("different currency", func(t *testing.T) {
		c := newClearingFixture(t)
		eur := c.Currency("EUR")
		c.Rate(eur.ID, "1.1")
		inv := c.invoice("10")
		rc := c.Post(accounting.TransactionInput{
			Type:       accounting.TransactionTypeClientReceipt,
			AccountID:  c.client.ID,
			CurrencyID: &eur.ID,
		}, lt.Line(c.bank.ID, "10"))
		_, err := c.assign(rc, inv, "5")
		requireKind(t, err, accounting.KindInvalidClearanceCurrency)
	})

	t.Run("same side", func(t *testing.T) {
		c := newClearingFixture(t)
		credit := c.Simple(accounting.TransactionTypeJournalEntry, c.client, lt.Line(c.revenue.ID, "10"))
		_, err := c.assign(c.receipt("10"), credit, "5")
		requireKind(t, err, accounting.KindInvalidClearanceEntry)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		c := newClearingFixture(t)
		_, err := c.assign(c.receipt("50"), c.invoice("100"), "60")
		requireKind(t, err, accounting.KindInsufficientBalance)
	})

	t.Run("over clearance", func(t *testing.T) {
		c := newClearingFixture(t)
		_, err := c.assign(c.receipt("200"), c.invoice("116"), "150")
		requireKind(t, err, accounting.KindOverClearance)
	})

	t.Run("missing forex account", func(t *testing.T) {
		c := newClearingFixture(t)
		eur := c.Currency("EUR")
		par := c.Rate(eur.ID, "1")
		high := c.Rate(eur.ID, "1.1")
		inv := c.Post(accounting.TransactionInput{
			Type:           accounting.TransactionTypeClientInvoice,
			AccountID:      c.client.ID,
			CurrencyID:     &eur.ID,
			ExchangeRateID: &par.ID,
		}, lt.Line(c.revenue.ID, "100"))
		rc := c.Post(accounting.TransactionInput{
			Type:           accounting.TransactionTypeClientReceipt,
			AccountID:      c.client.ID,
			CurrencyID:     &eur.ID,
			ExchangeRateID: &high.ID,
		}, lt.Line(c.bank.ID, "100"))
		_, err := c.assign(rc, inv, "100")
		requireKind(t, err, accounting.KindMissingForexAccount)
	})

	t.Run("cleared transaction cannot assign", func(t *testing.T) {
		c := newClearingFixture(t)
		debit := c.Post(accounting.TransactionInput{
			Type:      accounting.TransactionTypeJournalEntry,
			AccountID: c.client.ID,
			Credited:  lt.Bool(false),
		}, lt.Line(c.revenue.ID, "100"))
		_, err := c.assign(c.receipt("50"), debit, "50")
		require.NoError(t, err)

		credit := c.Simple(accounting.TransactionTypeJournalEntry, c.client, lt.Line(c.revenue.ID, "30"))
		_, err = c.assign(debit, credit, "30")
		requireKind(t, err, accounting.KindMixedAssignment)
		assert.Equal(t, "A Transaction that has been Cleared cannot be Assigned", err.Error())
	})

	t.Run("assigned transaction cannot be cleared", func(t *testing.T) {
		c := newClearingFixture(t)
		credit := c.Simple(accounting.TransactionTypeJournalEntry, c.client, lt.Line(c.revenue.ID, "100"))
		_, err := c.assign(credit, c.invoice("40"), "40")
		require.NoError(t, err)

		debit := c.Post(accounting.TransactionInput{
			Type:      accounting.TransactionTypeJournalEntry,
			AccountID: c.client.ID,
			Credited:  lt.Bool(false),
		}, lt.Line(c.revenue.ID, "20"))
		_, err = c.assign(debit, credit, "20")
		requireKind(t, err, accounting.KindMixedAssignment)
	})

	t.Run("compound entry", func(t *testing.T) {
		c := newClearingFixture(t)
		compound := c.Post(accounting.TransactionInput{
			Type:              accounting.TransactionTypeJournalEntry,
			AccountID:         c.client.ID,
			Compound:          true,
			MainAccountAmount: lt.D("100"),
		}, lt.Line(c.revenue.ID, "100"))
		_, err := c.assign(compound, c.invoice("100"), "50")
		requireKind(t, err, accounting.KindInvalidTransaction)
	})
}

func TestForexAssignmentPostsAndReversesDifference(t *testing.T) {
	c := newClearingFixture(t)
	eur := c.Currency("EUR")
	par := c.Rate(eur.ID, "1")
	high := c.Rate(eur.ID, "1.1")
	note := c.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeCreditNote,
		AccountID:      c.client.ID,
		CurrencyID:     &eur.ID,
		ExchangeRateID: &high.ID,
	}, lt.Line(c.revenue.ID, "50"))
	inv := c.Post(accounting.TransactionInput{
		Type:           accounting.TransactionTypeClientInvoice,
		AccountID:      c.client.ID,
		CurrencyID:     &eur.ID,
		ExchangeRateID: &par.ID,
	}, lt.Line(c.revenue.ID, "100"))

	a, err := c.Service.SaveAssignment(c.Ctx, c.Scope, accounting.AssignmentInput{
		TransactionID:  note.ID,
		Cleared:        accounting.Clearable{Kind: accounting.ClearedTransaction, ID: inv.ID},
		Amount:         lt.D("50"),
		ForexAccountID: &c.forex.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, a.ForexBatchID)
	assertDecimal(t, "-5", c.Closing(c.forex))
	assertDecimal(t, "50", c.Closing(c.client))

	require.NoError(t, c.Service.DeleteAssignment(c.Ctx, c.Scope, a.ID))
	assertDecimal(t, "0", c.Closing(c.forex))
	assertDecimal(t, "45", c.Closing(c.client))

	left, err := c.Service.Assignments(c.Ctx, c.Scope, note.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

// openItems books an opening invoice balance and two dated invoices.
func openItems(c *clearingFixture) {
	c.T.Helper()
	_, err := c.Service.SaveBalance(c.Ctx, c.Scope, accounting.BalanceInput{
		AccountID:       c.client.ID,
		TransactionType: accounting.TransactionTypeClientInvoice,
		BalanceType:     accounting.EntryDebit,
		Amount:          lt.D("100"),
	})
	require.NoError(c.T, err)
	for _, day := range []time.Time{
		time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
	} {
		c.Post(accounting.TransactionInput{
			Type:      accounting.TransactionTypeClientInvoice,
			AccountID: c.client.ID,
			Date:      day,
		}, lt.Line(c.revenue.ID, "100"))
	}
}

func TestBulkAssignClearsOldestFirst(t *testing.T) {
	c := newClearingFixture(t)
	openItems(c)
	rc := c.receipt("250")

	out, err := c.Service.BulkAssign(c.Ctx, c.Scope, rc.ID, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, accounting.ClearedBalance, out[0].Cleared.Kind)
	assertDecimal(t, "100", out[0].Amount)

	march, err := c.Service.GetTransaction(c.Ctx, c.Scope, out[1].Cleared.ID)
	require.NoError(t, err)
	assert.Equal(t, time.March, march.Transaction.TransactionDate.Month())
	assertDecimal(t, "100", out[1].Amount)

	april, err := c.Service.GetTransaction(c.Ctx, c.Scope, out[2].Cleared.ID)
	require.NoError(t, err)
	assert.Equal(t, time.April, april.Transaction.TransactionDate.Month())
	assertDecimal(t, "50", out[2].Amount)

	receipt, err := c.Service.GetTransaction(c.Ctx, c.Scope, rc.ID)
	require.NoError(t, err)
	assert.True(t, receipt.Balance.IsZero())
}

func TestBulkAssignIsDeterministic(t *testing.T) {
	run := func() []accounting.Assignment {
		c := newClearingFixture(t)
		openItems(c)
		rc := c.receipt("180")
		out, err := c.Service.BulkAssign(c.Ctx, c.Scope, rc.ID, nil)
		require.NoError(t, err)
		return out
	}
	first, second := run(), run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Cleared, second[i].Cleared)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
}

func TestBulkAssignNeverOverClears(t *testing.T) {
	c := newClearingFixture(t)
	openItems(c)
	for _, amount := range []string{"120", "120", "120"} {
		rc := c.receipt(amount)
		_, err := c.Service.BulkAssign(c.Ctx, c.Scope, rc.ID, nil)
		require.NoError(t, err)
	}

	invoices, err := c.Service.ListTransactions(c.Ctx, c.Scope, accounting.TransactionFilter{
		Types: []accounting.TransactionType{accounting.TransactionTypeClientInvoice},
	})
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	for _, inv := range invoices {
		detail, err := c.Service.GetTransaction(c.Ctx, c.Scope, inv.ID)
		require.NoError(t, err)
		assert.True(t, detail.ClearedAmount.LessThanOrEqual(detail.Amount))
		assertDecimal(t, "100", detail.ClearedAmount)
	}

	balances, err := c.Service.ListBalances(c.Ctx, c.Scope, c.client.ID, lt.Now.Year())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	clearances, err := c.Service.Clearances(c.Ctx, c.Scope, accounting.Clearable{Kind: accounting.ClearedBalance, ID: balances[0].ID})
	require.NoError(t, err)
	total := lt.D("0")
	for _, a := range clearances {
		total = total.Add(a.Amount)
	}
	assertDecimal(t, "100", total)
}

func TestBulkAssignRejectsClearableOnlyTypes(t *testing.T) {
	c := newClearingFixture(t)
	inv := c.invoice("10")
	_, err := c.Service.BulkAssign(c.Ctx, c.Scope, inv.ID, nil)
	requireKind(t, err, accounting.KindUnassignableTransaction)
}
