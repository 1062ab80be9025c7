// Package reports assembles financial statements from ledger section balances.
package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// Ledger is the read surface statements are computed from.
type Ledger interface {
	GetEntity(ctx context.Context, scope accounting.Scope) (accounting.Entity, error)
	SectionBalances(ctx context.Context, scope accounting.Scope, q accounting.SectionQuery) (accounting.Section, error)
	Settings() accounting.Settings
}

// Builder computes statements for one ledger.
type Builder struct {
	ledger Ledger
	now    func() time.Time
}

// NewBuilder constructs a Builder.
func NewBuilder(ledger Ledger) *Builder {
	return &Builder{ledger: ledger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (b *Builder) WithNow(now func() time.Time) {
	if now != nil {
		b.now = now
	}
}

// Window is the resolved date range of a statement.
type Window struct {
	Start time.Time
	End   time.Time
}

// window defaults end to now and start to the beginning of end's fiscal year.
func (b *Builder) window(entity accounting.Entity, start, end *time.Time) Window {
	w := Window{End: b.now()}
	if end != nil {
		w.End = *end
	}
	w.Start = accounting.PeriodStart(entity, w.End)
	if start != nil {
		w.Start = *start
	}
	return w
}

func (b *Builder) section(ctx context.Context, scope accounting.Scope, types []accounting.AccountType, start, end time.Time, full bool) (accounting.Section, error) {
	return b.ledger.SectionBalances(ctx, scope, accounting.SectionQuery{
		Types:       types,
		Start:       &start,
		End:         &end,
		FullBalance: full,
	})
}

// typeTotals sums the closing figure of a section's accounts per account type.
func typeTotals(section accounting.Section) map[accounting.AccountType]decimal.Decimal {
	out := map[accounting.AccountType]decimal.Decimal{}
	for _, group := range section.Categories {
		for _, line := range group.Accounts {
			t := line.Account.AccountType
			out[t] = out[t].Add(line.Closing)
		}
	}
	return out
}
