package reports

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

// TrialBalanceAccount is one account row. Closing balances land in Debit when
// positive and in Credit when negative.
type TrialBalanceAccount struct {
	Code    int
	Name    string
	Type    accounting.AccountType
	Opening decimal.Decimal
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	Closing decimal.Decimal
}

// TrialBalanceGroup aggregates the rows of one account type.
type TrialBalanceGroup struct {
	Key      string
	Accounts []TrialBalanceAccount
	Opening  decimal.Decimal
	Debit    decimal.Decimal
	Credit   decimal.Decimal
	Closing  decimal.Decimal
}

// TrialBalance lists every account with a balance as at a date.
type TrialBalance struct {
	Window       Window
	Groups       []TrialBalanceGroup
	TotalDebit   decimal.Decimal
	TotalCredit  decimal.Decimal
	TotalOpening decimal.Decimal
	TotalClosing decimal.Decimal
}

// Balanced reports whether debits equal credits.
func (t TrialBalance) Balanced() bool {
	return t.TotalDebit.Equal(t.TotalCredit)
}

// BuildTrialBalance groups account balances by type in chart order.
func BuildTrialBalance(settings accounting.Settings, balances []accounting.AccountBalance) TrialBalance {
	groups := make(map[accounting.AccountType]*TrialBalanceGroup)
	result := TrialBalance{
		TotalDebit:   decimal.Zero,
		TotalCredit:  decimal.Zero,
		TotalOpening: decimal.Zero,
		TotalClosing: decimal.Zero,
	}
	for _, line := range balances {
		t := line.Account.AccountType
		grp, ok := groups[t]
		if !ok {
			grp = &TrialBalanceGroup{
				Key:     settings.AccountLabel(t),
				Opening: decimal.Zero,
				Debit:   decimal.Zero,
				Credit:  decimal.Zero,
				Closing: decimal.Zero,
			}
			groups[t] = grp
		}
		row := TrialBalanceAccount{
			Code:    line.Account.Code,
			Name:    line.Account.Name,
			Type:    t,
			Opening: line.Opening,
			Debit:   decimal.Zero,
			Credit:  decimal.Zero,
			Closing: line.Closing,
		}
		if line.Closing.IsNegative() {
			row.Credit = line.Closing.Neg()
		} else {
			row.Debit = line.Closing
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Opening = grp.Opening.Add(row.Opening)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
		grp.Closing = grp.Closing.Add(row.Closing)
	}

	for _, t := range accounting.AccountTypes {
		grp, ok := groups[t]
		if !ok {
			continue
		}
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalOpening = result.TotalOpening.Add(grp.Opening)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
		result.TotalClosing = result.TotalClosing.Add(grp.Closing)
	}
	return result
}

// TrialBalance lists the closing balance of every account as at end, which
// defaults to now.
func (b *Builder) TrialBalance(ctx context.Context, scope accounting.Scope, end *time.Time) (TrialBalance, error) {
	entity, err := b.ledger.GetEntity(ctx, scope)
	if err != nil {
		return TrialBalance{}, err
	}
	w := b.window(entity, nil, end)
	section, err := b.section(ctx, scope, accounting.AccountTypes, w.Start, w.End, true)
	if err != nil {
		return TrialBalance{}, err
	}
	var lines []accounting.AccountBalance
	for _, name := range section.CategoryNames() {
		lines = append(lines, section.Categories[name].Accounts...)
	}
	tb := BuildTrialBalance(b.ledger.Settings(), lines)
	tb.Window = w
	return tb, nil
}
