package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceInput records an opening balance. Amount is in the balance currency
// and is stored translated at the exchange rate.
type BalanceInput struct {
	AccountID       int64 `validate:"required"`
	Year            *int
	CurrencyID      *int64
	ExchangeRateID  *int64
	TransactionType TransactionType
	TransactionDate *time.Time
	Reference       string
	BalanceType     EntryType `validate:"required,oneof=DEBIT CREDIT"`
	Amount          decimal.Decimal
}

// SaveBalance stores an opening balance for an account in a reporting period.
// Opening balances act as clearables in assignments.
func (s *Service) SaveBalance(ctx context.Context, scope Scope, in BalanceInput) (Balance, error) {
	if err := s.validate.Struct(in); err != nil {
		return Balance{}, fmt.Errorf("accounting: balance: %w", err)
	}
	if in.Amount.IsNegative() {
		return Balance{}, negativeAmount("Balance")
	}
	txType := in.TransactionType
	if txType == "" {
		txType = TransactionTypeJournalEntry
	}
	if !txType.IsClearable() {
		return Balance{}, unclearableTransaction(s.settings.TransactionLabel(txType), s.settings.TransactionLabelsOf(Clearables))
	}
	var balance Balance
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		balance, err = s.insertBalance(ctx, tx, entity, in, txType)
		return err
	})
	if err != nil {
		return Balance{}, err
	}
	s.record(ctx, scope, "balance.create", "balance", fmt.Sprintf("%d", balance.ID), map[string]any{
		"account_id": balance.AccountID,
		"amount":     balance.Amount.String(),
	})
	return balance, nil
}

func (s *Service) insertBalance(ctx context.Context, tx TxRepository, entity Entity, in BalanceInput, txType TransactionType) (Balance, error) {
	account, err := liveAccount(ctx, tx, entity.ID, in.AccountID)
	if err != nil {
		return Balance{}, err
	}
	if account.AccountType.IsIncomeStatement() {
		return Balance{}, invalidAccountClassBalance()
	}
	currencyID := account.CurrencyID
	if in.CurrencyID != nil {
		currencyID = *in.CurrencyID
	}
	if account.CurrencyID != entity.CurrencyID && currencyID != account.CurrencyID {
		return Balance{}, invalidBalanceCurrency()
	}
	if s.settings.IsSingleCurrency(account.AccountType) && currencyID != entity.CurrencyID {
		return Balance{}, invalidCurrency(s.settings.AccountLabel(account.AccountType))
	}

	year := ReportingYear(entity, s.now())
	if in.Year != nil {
		year = *in.Year
	}
	period, err := s.ensurePeriod(ctx, tx, entity, year)
	if err != nil {
		return Balance{}, err
	}
	if period.Status == PeriodStatusClosed {
		return Balance{}, ErrPeriodClosed
	}
	day, _ := YearBounds(entity, year)
	if in.TransactionDate != nil {
		day = *in.TransactionDate
	}

	var rate ExchangeRate
	if in.ExchangeRateID != nil {
		rate, err = tx.GetExchangeRate(ctx, entity.ID, *in.ExchangeRateID)
		if err != nil {
			return Balance{}, err
		}
		if rate.CurrencyID != currencyID {
			return Balance{}, invalidBalanceCurrency()
		}
	} else {
		rate, err = resolveRate(ctx, tx, entity, currencyID, day)
		if err != nil {
			return Balance{}, err
		}
	}

	existing, err := tx.ListBalances(ctx, BalanceFilter{EntityID: entity.ID, AccountID: &account.ID, PeriodID: &period.ID})
	if err != nil {
		return Balance{}, err
	}
	return tx.InsertBalance(ctx, Balance{
		EntityID:          entity.ID,
		AccountID:         account.ID,
		ReportingPeriodID: period.ID,
		CurrencyID:        currencyID,
		ExchangeRateID:    rate.ID,
		TransactionType:   txType,
		TransactionNo:     fmt.Sprintf("%d/%02d/%04d", account.Code, period.PeriodCount, len(existing)+1),
		TransactionDate:   day,
		Reference:         in.Reference,
		BalanceType:       in.BalanceType,
		Amount:            in.Amount.Mul(rate.Rate),
		CreatedAt:         s.now(),
	})
}

// ListBalances lists the opening balances of an account for a fiscal year.
func (s *Service) ListBalances(ctx context.Context, scope Scope, accountID int64, year int) ([]Balance, error) {
	var out []Balance
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodByYear(ctx, scope.EntityID, year)
		if err != nil {
			return err
		}
		out, err = tx.ListBalances(ctx, BalanceFilter{EntityID: scope.EntityID, AccountID: &accountID, PeriodID: &period.ID})
		return err
	})
	return out, err
}
