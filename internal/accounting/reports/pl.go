package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// StatementSection is one titled block of a statement. Balances are keyed by
// account type and Categories by category name.
type StatementSection struct {
	Name       string
	Balances   map[accounting.AccountType]decimal.Decimal
	Categories map[string]*accounting.CategoryBalances
	Total      decimal.Decimal
}

// IncomeStatement reports revenues and expenses over a window. Section totals
// are stored debit-positive; the result figures are sign-normalised.
type IncomeStatement struct {
	Window               Window
	Sections             map[string]StatementSection
	OperatingRevenues    decimal.Decimal
	NonOperatingRevenues decimal.Decimal
	OperatingExpenses    decimal.Decimal
	GrossProfit          decimal.Decimal
	NonOperatingExpenses decimal.Decimal
	NetProfit            decimal.Decimal
}

// sections fetches every named section concurrently.
func (b *Builder) sections(ctx context.Context, scope accounting.Scope, groups map[string][]accounting.AccountType, start, end time.Time, full bool) (map[string]StatementSection, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	results := make([]accounting.Section, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			section, err := b.section(gctx, scope, groups[name], start, end, full)
			if err != nil {
				return err
			}
			results[i] = section
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]StatementSection, len(names))
	for i, name := range names {
		out[name] = StatementSection{
			Name:       name,
			Balances:   typeTotals(results[i]),
			Categories: results[i].Categories,
			Total:      results[i].Closing,
		}
	}
	return out, nil
}

// IncomeStatement builds the income statement for the window. Start defaults
// to the beginning of end's fiscal year and end to now.
func (b *Builder) IncomeStatement(ctx context.Context, scope accounting.Scope, start, end *time.Time) (IncomeStatement, error) {
	entity, err := b.ledger.GetEntity(ctx, scope)
	if err != nil {
		return IncomeStatement{}, err
	}
	w := b.window(entity, start, end)
	sections, err := b.sections(ctx, scope, b.ledger.Settings().IncomeStatement, w.Start, w.End, false)
	if err != nil {
		return IncomeStatement{}, err
	}
	stmt := IncomeStatement{
		Window:               w,
		Sections:             sections,
		OperatingRevenues:    sections[accounting.SectionOperatingRevenues].Total.Neg(),
		NonOperatingRevenues: sections[accounting.SectionNonOperatingRevenues].Total.Neg(),
		OperatingExpenses:    sections[accounting.SectionOperatingExpenses].Total,
		NonOperatingExpenses: sections[accounting.SectionNonOperatingExpenses].Total,
	}
	stmt.GrossProfit = stmt.OperatingRevenues.Add(stmt.NonOperatingRevenues).Sub(stmt.OperatingExpenses)
	stmt.NetProfit = stmt.GrossProfit.Sub(stmt.NonOperatingExpenses)
	return stmt, nil
}
