package accounting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SectionQuery selects the accounts and window of SectionBalances. Start
// defaults to the beginning of End's fiscal year and End to now.
type SectionQuery struct {
	Types       []AccountType
	Start       *time.Time
	End         *time.Time
	FullBalance bool
}

// AccountBalance is one account line of a section.
type AccountBalance struct {
	Account  Account
	Opening  decimal.Decimal
	Movement decimal.Decimal
	Closing  decimal.Decimal
}

// CategoryBalances groups the accounts of one category. Accounts without a
// category land in a group named after their type label with ID 0.
type CategoryBalances struct {
	ID       int64
	Name     string
	Accounts []AccountBalance
	Total    decimal.Decimal
}

// Section aggregates a set of account types for a statement.
type Section struct {
	Opening    decimal.Decimal
	Movement   decimal.Decimal
	Closing    decimal.Decimal
	Categories map[string]*CategoryBalances
}

// CategoryNames returns the section's category names in sorted order.
func (s Section) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SectionBalances aggregates the balances of every account of the given types.
// Movement is reported sign-flipped, so credit-natured accounts read positive.
// With FullBalance the closing figure includes the opening balance.
func (s *Service) SectionBalances(ctx context.Context, scope Scope, q SectionQuery) (Section, error) {
	var section Section
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		section, err = s.sectionBalances(ctx, tx, entity, q)
		return err
	})
	return section, err
}

func (s *Service) sectionBalances(ctx context.Context, tx TxRepository, entity Entity, q SectionQuery) (Section, error) {
	section := Section{
		Opening:    decimal.Zero,
		Movement:   decimal.Zero,
		Closing:    decimal.Zero,
		Categories: map[string]*CategoryBalances{},
	}
	end := s.now()
	if q.End != nil {
		end = *q.End
	}
	start := PeriodStart(entity, end)
	if q.Start != nil {
		start = *q.Start
	}
	accounts, err := tx.ListAccounts(ctx, AccountFilter{EntityID: entity.ID, Types: q.Types})
	if err != nil {
		return Section{}, err
	}
	categories := map[int64]Category{}
	for _, account := range accounts {
		opening, err := s.openingBalance(ctx, tx, entity, account, ReportingYear(entity, start), nil)
		if err != nil {
			return Section{}, err
		}
		// opening runs up to, but not including, the window start
		before, err := s.currentBalance(ctx, tx, entity, account, PeriodStart(entity, start), start.Add(-time.Nanosecond), nil)
		if err != nil {
			return Section{}, err
		}
		movement, err := s.currentBalance(ctx, tx, entity, account, start, end, nil)
		if err != nil {
			return Section{}, err
		}
		line := AccountBalance{
			Account:  account,
			Opening:  opening[entity.CurrencyID].Add(before[entity.CurrencyID]),
			Movement: movement[entity.CurrencyID],
		}
		line.Closing = line.Movement
		if q.FullBalance {
			line.Closing = line.Opening.Add(line.Movement)
		}
		line.Movement = line.Movement.Neg()
		if line.Closing.IsZero() && line.Movement.IsZero() {
			continue
		}

		name, id := s.settings.AccountLabel(account.AccountType), int64(0)
		if account.CategoryID != nil {
			category, ok := categories[*account.CategoryID]
			if !ok {
				category, err = tx.GetCategory(ctx, entity.ID, *account.CategoryID)
				if err != nil {
					return Section{}, err
				}
				categories[category.ID] = category
			}
			name, id = category.Name, category.ID
		}
		group, ok := section.Categories[name]
		if !ok {
			group = &CategoryBalances{ID: id, Name: name, Total: decimal.Zero}
			section.Categories[name] = group
		}
		group.Accounts = append(group.Accounts, line)
		group.Total = group.Total.Add(line.Closing)

		section.Opening = section.Opening.Add(line.Opening)
		section.Movement = section.Movement.Add(line.Movement)
		section.Closing = section.Closing.Add(line.Closing)
	}
	return section, nil
}
