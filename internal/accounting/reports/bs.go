package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// BalanceSheet is the financial position of an entity at a date. NetProfit is
// the year-to-date income statement closing, folded into equity.
type BalanceSheet struct {
	Window      Window
	Sections    map[string]StatementSection
	NetProfit   decimal.Decimal
	NetAssets   decimal.Decimal
	TotalEquity decimal.Decimal
}

// Balanced reports whether net assets equal total equity.
func (b BalanceSheet) Balanced() bool {
	return b.NetAssets.Abs().Equal(b.TotalEquity)
}

// BalanceSheet builds the balance sheet as at end, which defaults to now.
func (b *Builder) BalanceSheet(ctx context.Context, scope accounting.Scope, end *time.Time) (BalanceSheet, error) {
	entity, err := b.ledger.GetEntity(ctx, scope)
	if err != nil {
		return BalanceSheet{}, err
	}
	w := b.window(entity, nil, end)
	groups := b.ledger.Settings().BalanceSheet
	sections, err := b.sections(ctx, scope, groups, w.Start, w.End, true)
	if err != nil {
		return BalanceSheet{}, err
	}
	profit, err := b.section(ctx, scope, accounting.IncomeStatementTypes, w.Start, w.End, true)
	if err != nil {
		return BalanceSheet{}, err
	}

	sheet := BalanceSheet{
		Window:    w,
		Sections:  sections,
		NetProfit: profit.Closing,
		NetAssets: sections[accounting.SectionAssets].Total.
			Add(sections[accounting.SectionLiabilities].Total).
			Add(sections[accounting.SectionReconciliation].Total),
	}
	sheet.TotalEquity = sections[accounting.SectionEquity].Total.Add(sheet.NetProfit).Abs()
	return sheet, nil
}
