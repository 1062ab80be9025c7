package accounting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// AccountTransaction is a posted transaction as seen from one account.
// Contribution is the signed reporting-currency movement it caused on the account.
type AccountTransaction struct {
	Transaction  Transaction
	Contribution decimal.Decimal
	Amount       decimal.Decimal
}

// AccountStatement lists an account's transactions for a window.
type AccountStatement struct {
	Transactions []AccountTransaction
	Total        decimal.Decimal
}

// OpeningBalanceSummary lists accounts with a non-zero opening balance.
type OpeningBalanceSummary struct {
	Accounts []AccountOpening
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// AccountOpening is one row of OpeningBalanceSummary.
type AccountOpening struct {
	Account Account
	Balance decimal.Decimal
}

func newBalances(entity Entity, currencyID *int64) Balances {
	out := Balances{entity.CurrencyID: decimal.Zero}
	if currencyID != nil {
		out[*currencyID] = decimal.Zero
	}
	return out
}

func isForeign(entity Entity, currencyID *int64) bool {
	return currencyID != nil && *currencyID != entity.CurrencyID
}

func signed(entry EntryType, amount decimal.Decimal) decimal.Decimal {
	if entry == EntryCredit {
		return amount.Neg()
	}
	return amount
}

// openingBalance sums the Balance rows of the period for year. A year without a
// reporting period has no opening balances.
func (s *Service) openingBalance(ctx context.Context, tx TxRepository, entity Entity, account Account, year int, currencyID *int64) (Balances, error) {
	out := newBalances(entity, currencyID)
	period, err := tx.GetPeriodByYear(ctx, entity.ID, year)
	if errors.Is(err, ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	balances, err := tx.ListBalances(ctx, BalanceFilter{
		EntityID:   entity.ID,
		AccountID:  &account.ID,
		PeriodID:   &period.ID,
		CurrencyID: currencyID,
	})
	if err != nil {
		return nil, err
	}
	foreign := isForeign(entity, currencyID)
	rates := map[int64]decimal.Decimal{}
	for _, b := range balances {
		out[entity.CurrencyID] = out[entity.CurrencyID].Add(signed(b.BalanceType, b.Amount))
		if !foreign {
			continue
		}
		rate, ok := rates[b.ExchangeRateID]
		if !ok {
			r, err := tx.GetExchangeRate(ctx, entity.ID, b.ExchangeRateID)
			if err != nil {
				return nil, err
			}
			rate = r.Rate
			rates[b.ExchangeRateID] = rate
		}
		out[*currencyID] = out[*currencyID].Add(signed(b.BalanceType, money.Foreign(b.Amount, rate)))
	}
	return out, nil
}

// currentBalance is the net ledger movement of the account within [start, end].
func (s *Service) currentBalance(ctx context.Context, tx TxRepository, entity Entity, account Account, start, end time.Time, currencyID *int64) (Balances, error) {
	out := newBalances(entity, currencyID)
	if end.Before(start) {
		return out, nil
	}
	totals, err := tx.SumLedger(ctx, LedgerFilter{
		EntityID:   entity.ID,
		AccountID:  &account.ID,
		CurrencyID: currencyID,
		From:       &start,
		To:         &end,
	})
	if err != nil {
		return nil, err
	}
	out[entity.CurrencyID] = totals.Debit.Sub(totals.Credit)
	if isForeign(entity, currencyID) {
		out[*currencyID] = totals.ForeignDebit.Sub(totals.ForeignCredit)
	}
	return out, nil
}

func (s *Service) closingBalance(ctx context.Context, tx TxRepository, entity Entity, account Account, end time.Time, currencyID *int64) (Balances, error) {
	opening, err := s.openingBalance(ctx, tx, entity, account, ReportingYear(entity, end), currencyID)
	if err != nil {
		return nil, err
	}
	current, err := s.currentBalance(ctx, tx, entity, account, PeriodStart(entity, end), end, currencyID)
	if err != nil {
		return nil, err
	}
	for currency := range opening {
		opening[currency] = opening[currency].Add(current[currency])
	}
	return opening, nil
}

func (s *Service) loadAccount(ctx context.Context, tx TxRepository, scope Scope, accountID int64) (Entity, Account, error) {
	entity, err := tx.GetEntity(ctx, scope.EntityID)
	if err != nil {
		return Entity{}, Account{}, err
	}
	account, err := tx.GetAccount(ctx, entity.ID, accountID)
	if err != nil {
		return Entity{}, Account{}, err
	}
	return entity, account, nil
}

// OpeningBalance returns the account's opening balances for a fiscal year, by
// default the one containing the service clock.
func (s *Service) OpeningBalance(ctx context.Context, scope Scope, accountID int64, year *int, currencyID *int64) (Balances, error) {
	var y int
	if year != nil {
		y = *year
	} else {
		entity, err := s.GetEntity(ctx, scope)
		if err != nil {
			return nil, err
		}
		y = ReportingYear(entity, s.now())
	}
	parts := []string{"opening", fmt.Sprint(accountID), fmt.Sprint(y), optID(currencyID)}
	return s.cachedBalances(ctx, scope, parts, func(ctx context.Context) (Balances, error) {
		var out Balances
		err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
			entity, account, err := s.loadAccount(ctx, tx, scope, accountID)
			if err != nil {
				return err
			}
			out, err = s.openingBalance(ctx, tx, entity, account, y, currencyID)
			return err
		})
		return out, err
	})
}

// CurrentBalance returns the account's net ledger movement within [start, end].
// End defaults to now and start to the beginning of end's fiscal year.
func (s *Service) CurrentBalance(ctx context.Context, scope Scope, accountID int64, start, end *time.Time, currencyID *int64) (Balances, error) {
	var out Balances
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, account, err := s.loadAccount(ctx, tx, scope, accountID)
		if err != nil {
			return err
		}
		to := s.now()
		if end != nil {
			to = *end
		}
		from := PeriodStart(entity, to)
		if start != nil {
			from = *start
		}
		out, err = s.currentBalance(ctx, tx, entity, account, from, to, currencyID)
		return err
	})
	return out, err
}

// ClosingBalance returns opening(year of end) + movement(period start .. end).
// End defaults to the end of the current fiscal year.
func (s *Service) ClosingBalance(ctx context.Context, scope Scope, accountID int64, end *time.Time, currencyID *int64) (Balances, error) {
	var to time.Time
	if end != nil {
		to = *end
	} else {
		entity, err := s.GetEntity(ctx, scope)
		if err != nil {
			return nil, err
		}
		to = PeriodEnd(entity, s.now())
	}
	parts := []string{"closing", fmt.Sprint(accountID), stamp(to), optID(currencyID)}
	return s.cachedBalances(ctx, scope, parts, func(ctx context.Context) (Balances, error) {
		var out Balances
		err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
			entity, account, err := s.loadAccount(ctx, tx, scope, accountID)
			if err != nil {
				return err
			}
			out, err = s.closingBalance(ctx, tx, entity, account, to, currencyID)
			return err
		})
		return out, err
	})
}

// AccountTransactions lists posted transactions that touch the account on either
// side of a posting pair, with each one's contribution to the account.
func (s *Service) AccountTransactions(ctx context.Context, scope Scope, accountID int64, start, end *time.Time) (AccountStatement, error) {
	statement := AccountStatement{Total: decimal.Zero}
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, account, err := s.loadAccount(ctx, tx, scope, accountID)
		if err != nil {
			return err
		}
		to := s.now()
		if end != nil {
			to = *end
		}
		from := PeriodStart(entity, to)
		if start != nil {
			from = *start
		}
		rows, err := tx.ListLedgers(ctx, LedgerFilter{EntityID: entity.ID, AnyAccountID: &account.ID, From: &from, To: &to})
		if err != nil {
			return err
		}
		contributions := map[int64]decimal.Decimal{}
		var order []int64
		for _, row := range rows {
			if _, seen := contributions[row.TransactionID]; !seen {
				contributions[row.TransactionID] = decimal.Zero
				order = append(order, row.TransactionID)
			}
			if row.PostAccountID == account.ID {
				contributions[row.TransactionID] = contributions[row.TransactionID].Add(signed(row.EntryType, row.Amount))
			}
		}
		net := decimal.Zero
		for _, id := range order {
			t, err := tx.GetTransaction(ctx, entity.ID, id)
			if err != nil {
				return err
			}
			c := contributions[id]
			net = net.Add(c)
			statement.Transactions = append(statement.Transactions, AccountTransaction{Transaction: t, Contribution: c, Amount: c.Abs()})
		}
		sort.SliceStable(statement.Transactions, func(i, j int) bool {
			a, b := statement.Transactions[i].Transaction, statement.Transactions[j].Transaction
			if a.TransactionDate.Equal(b.TransactionDate) {
				return a.ID < b.ID
			}
			return a.TransactionDate.Before(b.TransactionDate)
		})
		statement.Total = net.Abs()
		return nil
	})
	return statement, err
}

// OpeningBalances lists accounts with a non-zero opening balance for a fiscal
// year. Credit is reported as a positive magnitude.
func (s *Service) OpeningBalances(ctx context.Context, scope Scope, year int) (OpeningBalanceSummary, error) {
	summary := OpeningBalanceSummary{Debit: decimal.Zero, Credit: decimal.Zero}
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		accounts, err := tx.ListAccounts(ctx, AccountFilter{EntityID: entity.ID})
		if err != nil {
			return err
		}
		for _, account := range accounts {
			opening, err := s.openingBalance(ctx, tx, entity, account, year, nil)
			if err != nil {
				return err
			}
			balance := opening[entity.CurrencyID]
			if balance.IsZero() {
				continue
			}
			summary.Accounts = append(summary.Accounts, AccountOpening{Account: account, Balance: balance})
			if balance.IsPositive() {
				summary.Debit = summary.Debit.Add(balance)
			} else {
				summary.Credit = summary.Credit.Add(balance.Neg())
			}
		}
		return nil
	})
	return summary, err
}

func optID(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func stamp(v time.Time) string {
	return v.UTC().Format(time.RFC3339Nano)
}
