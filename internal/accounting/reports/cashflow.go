package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Cash flow statement sections.
const (
	Provisions            = "PROVISIONS"
	Receivables           = "RECEIVABLES"
	Payables              = "PAYABLES"
	Taxation              = "TAXATION"
	CurrentAssets         = "CURRENT_ASSETS"
	CurrentLiabilities    = "CURRENT_LIABILITIES"
	NonCurrentAssets      = "NON_CURRENT_ASSETS"
	NonCurrentLiabilities = "NON_CURRENT_LIABILITIES"
	Equity                = "EQUITY"
	Profit                = "PROFIT"
)

// cashFlowSections lists the movement sections in statement order. The first
// six make up operating cash flow.
var cashFlowSections = []struct {
	name  string
	types []accounting.AccountType
}{
	{Provisions, []accounting.AccountType{accounting.AccountTypeContraAsset}},
	{Receivables, []accounting.AccountType{accounting.AccountTypeReceivable}},
	{Payables, []accounting.AccountType{accounting.AccountTypePayable}},
	{Taxation, []accounting.AccountType{accounting.AccountTypeControl}},
	{CurrentAssets, []accounting.AccountType{accounting.AccountTypeCurrentAsset, accounting.AccountTypeInventory}},
	{CurrentLiabilities, []accounting.AccountType{accounting.AccountTypeCurrentLiability}},
	{NonCurrentAssets, []accounting.AccountType{accounting.AccountTypeNonCurrentAsset}},
	{NonCurrentLiabilities, []accounting.AccountType{accounting.AccountTypeNonCurrentLiability}},
	{Equity, []accounting.AccountType{accounting.AccountTypeEquity}},
}

const operatingSections = 6

// CashFlowStatement reconciles the movement in bank balances over a window.
// Balances holds the movement of each section plus PROFIT.
type CashFlowStatement struct {
	Window             Window
	Balances           map[string]decimal.Decimal
	OperationsCashFlow decimal.Decimal
	InvestmentCashFlow decimal.Decimal
	FinancingCashFlow  decimal.Decimal
	NetCashFlow        decimal.Decimal
	StartCashBalance   decimal.Decimal
	EndCashBalance     decimal.Decimal
	CashbookBalance    decimal.Decimal
}

// Reconciled reports whether the derived end balance matches the bank accounts.
func (c CashFlowStatement) Reconciled() bool {
	return c.EndCashBalance.Equal(c.CashbookBalance)
}

// CashFlow builds the cash flow statement. Start defaults to the beginning of
// end's fiscal year and end to now.
func (b *Builder) CashFlow(ctx context.Context, scope accounting.Scope, start, end *time.Time) (CashFlowStatement, error) {
	entity, err := b.ledger.GetEntity(ctx, scope)
	if err != nil {
		return CashFlowStatement{}, err
	}
	w := b.window(entity, start, end)
	movements := make([]decimal.Decimal, len(cashFlowSections))
	var profit, startCash, cashbook accounting.Section

	g, gctx := errgroup.WithContext(ctx)
	for i, sec := range cashFlowSections {
		i, sec := i, sec
		g.Go(func() error {
			section, err := b.section(gctx, scope, sec.types, w.Start, w.End, true)
			if err != nil {
				return err
			}
			movements[i] = section.Movement
			return nil
		})
	}
	g.Go(func() error {
		var err error
		profit, err = b.section(gctx, scope, accounting.IncomeStatementTypes, w.Start, w.End, false)
		return err
	})
	g.Go(func() error {
		var err error
		startCash, err = b.section(gctx, scope, []accounting.AccountType{accounting.AccountTypeBank},
			accounting.PeriodStart(entity, w.End), w.Start.Add(-time.Nanosecond), true)
		return err
	})
	g.Go(func() error {
		var err error
		cashbook, err = b.section(gctx, scope, []accounting.AccountType{accounting.AccountTypeBank}, w.Start, w.End, true)
		return err
	})
	if err := g.Wait(); err != nil {
		return CashFlowStatement{}, err
	}

	stmt := CashFlowStatement{
		Window:   w,
		Balances: make(map[string]decimal.Decimal, len(cashFlowSections)+1),
	}
	for i, sec := range cashFlowSections {
		stmt.Balances[sec.name] = movements[i]
	}
	stmt.Balances[Profit] = profit.Closing.Neg()

	stmt.OperationsCashFlow = stmt.Balances[Profit]
	for _, m := range movements[:operatingSections] {
		stmt.OperationsCashFlow = stmt.OperationsCashFlow.Add(m)
	}
	stmt.InvestmentCashFlow = stmt.Balances[NonCurrentAssets]
	stmt.FinancingCashFlow = stmt.Balances[NonCurrentLiabilities].Add(stmt.Balances[Equity])
	stmt.NetCashFlow = stmt.OperationsCashFlow.Add(stmt.InvestmentCashFlow).Add(stmt.FinancingCashFlow)

	stmt.StartCashBalance = startCash.Closing
	stmt.EndCashBalance = stmt.StartCashBalance.Add(stmt.NetCashFlow)
	stmt.CashbookBalance = cashbook.Closing
	return stmt, nil
}
