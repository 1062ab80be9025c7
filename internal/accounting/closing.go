package accounting

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// AddClosingRate registers the rate a currency is translated at when the period closes.
func (s *Service) AddClosingRate(ctx context.Context, scope Scope, periodID, exchangeRateID int64) (ClosingRate, error) {
	var cr ClosingRate
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriod(ctx, scope.EntityID, periodID)
		if err != nil {
			return err
		}
		if period.Status == PeriodStatusClosed {
			return ErrPeriodClosed
		}
		if _, err := tx.GetExchangeRate(ctx, scope.EntityID, exchangeRateID); err != nil {
			return err
		}
		cr, err = tx.InsertClosingRate(ctx, ClosingRate{
			EntityID:          scope.EntityID,
			ReportingPeriodID: period.ID,
			ExchangeRateID:    exchangeRateID,
			CreatedAt:         s.now(),
		})
		return err
	})
	return cr, err
}

// PrepareBalancesTranslation moves the period to ADJUSTING and posts, for every
// foreign balance sheet account, a journal entry against the forex account that
// restates its closing balance at the registered closing rate.
func (s *Service) PrepareBalancesTranslation(ctx context.Context, scope Scope, periodID, forexAccountID int64) ([]Transaction, error) {
	var posted []Transaction
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		period, err := s.transitionPeriod(ctx, tx, entity.ID, periodID, PeriodStatusAdjusting)
		if err != nil {
			return err
		}
		forex, err := liveAccount(ctx, tx, entity.ID, forexAccountID)
		if err != nil {
			return err
		}
		rates, err := tx.ListClosingRates(ctx, entity.ID, period.ID)
		if err != nil {
			return err
		}
		_, end := YearBounds(entity, period.CalendarYear)
		unit, err := resolveRate(ctx, tx, entity, entity.CurrencyID, end)
		if err != nil {
			return err
		}
		done, err := tx.ListClosingTransactions(ctx, ClosingFilter{EntityID: entity.ID, PeriodID: &period.ID})
		if err != nil {
			return err
		}
		translated := map[[2]int64]bool{}
		for _, c := range done {
			translated[[2]int64{c.AccountID, c.CurrencyID}] = true
		}

		for _, cr := range rates {
			rate, err := tx.GetExchangeRate(ctx, entity.ID, cr.ExchangeRateID)
			if err != nil {
				return err
			}
			if rate.CurrencyID == entity.CurrencyID {
				continue
			}
			currency, err := tx.GetCurrency(ctx, entity.ID, rate.CurrencyID)
			if err != nil {
				return err
			}
			accounts, err := tx.ListAccounts(ctx, AccountFilter{
				EntityID:   entity.ID,
				Types:      s.settings.BalanceSheetTypes(),
				CurrencyID: &rate.CurrencyID,
			})
			if err != nil {
				return err
			}
			for _, account := range accounts {
				if translated[[2]int64{account.ID, rate.CurrencyID}] {
					continue
				}
				t, ok, err := s.translateAccount(ctx, tx, entity, period, account, forex, currency, rate, unit)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				if _, err := tx.InsertClosingTransaction(ctx, ClosingTransaction{
					EntityID:          entity.ID,
					ReportingPeriodID: period.ID,
					AccountID:         account.ID,
					CurrencyID:        rate.CurrencyID,
					TransactionID:     t.ID,
					CreatedAt:         s.now(),
				}); err != nil {
					return err
				}
				posted = append(posted, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, scope, "period.translate", "reporting_period", fmt.Sprintf("%d", periodID), map[string]any{
		"transactions": len(posted),
	})
	return posted, nil
}

// translateAccount posts the translation difference of one account. It reports
// false when the account needs no adjustment.
func (s *Service) translateAccount(ctx context.Context, tx TxRepository, entity Entity, period ReportingPeriod, account, forex Account, currency Currency, rate, unit ExchangeRate) (Transaction, bool, error) {
	_, end := YearBounds(entity, period.CalendarYear)
	closing, err := s.closingBalance(ctx, tx, entity, account, end, &currency.ID)
	if err != nil {
		return Transaction{}, false, err
	}
	foreign := closing[currency.ID]
	if foreign.IsZero() {
		return Transaction{}, false, nil
	}
	diff := foreign.Mul(rate.Rate).Sub(closing[entity.CurrencyID]).Round(money.DefaultScale)
	if diff.IsZero() {
		return Transaction{}, false, nil
	}
	now := s.now()
	t, err := s.insertTransaction(ctx, tx, entity, period, Transaction{
		EntityID:        entity.ID,
		AccountID:       forex.ID,
		CurrencyID:      entity.CurrencyID,
		ExchangeRateID:  unit.ID,
		TransactionDate: end,
		TransactionType: TransactionTypeJournalEntry,
		Narration:       fmt.Sprintf("%s %d Forex Balance Translation", currency.CurrencyCode, period.CalendarYear),
		Credited:        diff.IsPositive(),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Transaction{}, false, err
	}
	if _, err := tx.InsertLineItem(ctx, LineItem{
		EntityID:      entity.ID,
		TransactionID: t.ID,
		AccountID:     account.ID,
		Narration:     t.Narration,
		Amount:        diff.Abs(),
		Quantity:      decimal.NewFromInt(1),
		Credited:      !t.Credited,
		CreatedAt:     now,
	}); err != nil {
		return Transaction{}, false, err
	}
	t, _, err = s.post(ctx, tx, entity, t)
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

// IsClosed reports whether the account has been translated for the fiscal year.
func (s *Service) IsClosed(ctx context.Context, scope Scope, accountID int64, year int) (bool, error) {
	var closed bool
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodByYear(ctx, scope.EntityID, year)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		rows, err := tx.ListClosingTransactions(ctx, ClosingFilter{EntityID: scope.EntityID, AccountID: &accountID, PeriodID: &period.ID})
		if err != nil {
			return err
		}
		closed = len(rows) > 0
		return nil
	})
	return closed, err
}

// carriedType is the clearable type an account's carried balance takes.
func carriedType(t AccountType) TransactionType {
	switch t {
	case AccountTypeReceivable:
		return TransactionTypeClientInvoice
	case AccountTypePayable:
		return TransactionTypeSupplierBill
	default:
		return TransactionTypeJournalEntry
	}
}

// ClosePeriod moves an ADJUSTING period to CLOSED and carries balance sheet
// closing balances into the next period's opening balances. When a retained
// earnings account is given, the year's profit or loss is carried into it.
func (s *Service) ClosePeriod(ctx context.Context, scope Scope, periodID int64, retainedEarningsAccountID *int64) (ReportingPeriod, error) {
	var (
		period  ReportingPeriod
		carried int
	)
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		period, err = s.transitionPeriod(ctx, tx, entity.ID, periodID, PeriodStatusClosed)
		if err != nil {
			return err
		}
		next, err := s.ensurePeriod(ctx, tx, entity, period.CalendarYear+1)
		if err != nil {
			return err
		}
		_, end := YearBounds(entity, period.CalendarYear)
		nextStart, _ := YearBounds(entity, next.CalendarYear)
		unit, err := resolveRate(ctx, tx, entity, entity.CurrencyID, nextStart)
		if err != nil {
			return err
		}

		profit := decimal.Zero
		if retainedEarningsAccountID != nil {
			retained, err := liveAccount(ctx, tx, entity.ID, *retainedEarningsAccountID)
			if err != nil {
				return err
			}
			if retained.AccountType != AccountTypeEquity {
				return accountTypeError("Retained Earnings Account", s.settings.AccountLabel(AccountTypeEquity))
			}
			income, err := tx.ListAccounts(ctx, AccountFilter{EntityID: entity.ID, Types: IncomeStatementTypes})
			if err != nil {
				return err
			}
			for _, account := range income {
				closing, err := s.closingBalance(ctx, tx, entity, account, end, nil)
				if err != nil {
					return err
				}
				profit = profit.Add(closing[entity.CurrencyID])
			}
		}

		accounts, err := tx.ListAccounts(ctx, AccountFilter{EntityID: entity.ID, Types: s.settings.BalanceSheetTypes()})
		if err != nil {
			return err
		}
		for _, account := range accounts {
			closing, err := s.closingBalance(ctx, tx, entity, account, end, nil)
			if err != nil {
				return err
			}
			reporting := closing[entity.CurrencyID]
			if retainedEarningsAccountID != nil && account.ID == *retainedEarningsAccountID {
				reporting = reporting.Add(profit)
			}
			if reporting.IsZero() {
				continue
			}
			b := Balance{
				EntityID:          entity.ID,
				AccountID:         account.ID,
				ReportingPeriodID: next.ID,
				CurrencyID:        entity.CurrencyID,
				ExchangeRateID:    unit.ID,
				TransactionType:   carriedType(account.AccountType),
				TransactionNo:     fmt.Sprintf("%d/%02d/C", account.Code, next.PeriodCount),
				TransactionDate:   nextStart,
				Reference:         fmt.Sprintf("%d closing balance", period.CalendarYear),
				BalanceType:       EntryDebit,
				Amount:            reporting.Abs(),
				CreatedAt:         s.now(),
			}
			if reporting.IsNegative() {
				b.BalanceType = EntryCredit
			}
			if account.CurrencyID != entity.CurrencyID {
				foreign, err := s.closingBalance(ctx, tx, entity, account, end, &account.CurrencyID)
				if err != nil {
					return err
				}
				if amount := foreign[account.CurrencyID]; !amount.IsZero() {
					rate, err := tx.InsertExchangeRate(ctx, ExchangeRate{
						EntityID:   entity.ID,
						CurrencyID: account.CurrencyID,
						Rate:       reporting.Div(amount).Abs(),
						ValidFrom:  nextStart,
						ValidTo:    &nextStart,
						CreatedAt:  s.now(),
					})
					if err != nil {
						return err
					}
					b.CurrencyID = account.CurrencyID
					b.ExchangeRateID = rate.ID
				}
			}
			if _, err := tx.InsertBalance(ctx, b); err != nil {
				return err
			}
			carried++
		}
		return nil
	})
	if err != nil {
		return ReportingPeriod{}, err
	}
	s.record(ctx, scope, "period.close", "reporting_period", fmt.Sprintf("%d", period.ID), map[string]any{
		"year":     period.CalendarYear,
		"balances": carried,
	})
	return period, nil
}
