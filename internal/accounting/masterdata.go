package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EntityInput creates a reporting entity with its reporting currency.
type EntityInput struct {
	Name         string `validate:"required"`
	CurrencyCode string `validate:"required,len=3"`
	CurrencyName string
	YearStart    int `validate:"omitempty,min=1,max=12"`
}

// CurrencyInput registers a currency for an entity.
type CurrencyInput struct {
	Name         string `validate:"required"`
	CurrencyCode string `validate:"required,len=3"`
}

// ExchangeRateInput registers a rate for a currency.
type ExchangeRateInput struct {
	CurrencyID int64 `validate:"required"`
	Rate       decimal.Decimal
	ValidFrom  time.Time `validate:"required"`
	ValidTo    *time.Time
}

// CategoryInput registers an account category.
type CategoryInput struct {
	Name string      `validate:"required"`
	Type AccountType `validate:"required"`
}

// CostCenterInput registers a cost center.
type CostCenterInput struct {
	Code        string `validate:"required"`
	Name        string `validate:"required"`
	Description string
}

// VatInput registers a VAT rate.
type VatInput struct {
	Code      string `validate:"required"`
	Name      string `validate:"required"`
	Rate      decimal.Decimal
	AccountID *int64
}

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// CreateEntity creates an entity, its reporting currency, a unit rate for that
// currency and the current reporting period.
func (s *Service) CreateEntity(ctx context.Context, in EntityInput) (Entity, error) {
	if err := s.validate.Struct(in); err != nil {
		return Entity{}, fmt.Errorf("accounting: entity: %w", err)
	}
	var entity Entity
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		var err error
		entity, err = tx.InsertEntity(ctx, Entity{
			Name:      in.Name,
			YearStart: time.Month(in.YearStart),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		name := in.CurrencyName
		if name == "" {
			name = strings.ToUpper(in.CurrencyCode)
		}
		currency, err := tx.InsertCurrency(ctx, Currency{
			EntityID:     entity.ID,
			Name:         name,
			CurrencyCode: strings.ToUpper(in.CurrencyCode),
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		entity.CurrencyID = currency.ID
		if err := tx.UpdateEntity(ctx, entity); err != nil {
			return err
		}
		if _, err := tx.InsertExchangeRate(ctx, ExchangeRate{
			EntityID:   entity.ID,
			CurrencyID: currency.ID,
			Rate:       decimal.NewFromInt(1),
			ValidFrom:  epoch,
			CreatedAt:  now,
		}); err != nil {
			return err
		}
		_, err = s.ensurePeriod(ctx, tx, entity, ReportingYear(entity, now))
		return err
	})
	if err != nil {
		return Entity{}, err
	}
	s.record(ctx, ForEntity(entity.ID), "entity.create", "entity", fmt.Sprintf("%d", entity.ID), map[string]any{"name": entity.Name})
	return entity, nil
}

// ListEntities lists every entity in the store.
func (s *Service) ListEntities(ctx context.Context) ([]Entity, error) {
	var out []Entity
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListEntities(ctx)
		return err
	})
	return out, err
}

// GetEntity loads the scoped entity.
func (s *Service) GetEntity(ctx context.Context, scope Scope) (Entity, error) {
	var entity Entity
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		entity, err = tx.GetEntity(ctx, scope.EntityID)
		return err
	})
	return entity, err
}

// CreateCurrency registers a currency.
func (s *Service) CreateCurrency(ctx context.Context, scope Scope, in CurrencyInput) (Currency, error) {
	if err := s.validate.Struct(in); err != nil {
		return Currency{}, fmt.Errorf("accounting: currency: %w", err)
	}
	var currency Currency
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		currency, err = tx.InsertCurrency(ctx, Currency{
			EntityID:     scope.EntityID,
			Name:         in.Name,
			CurrencyCode: strings.ToUpper(in.CurrencyCode),
			CreatedAt:    s.now(),
		})
		return err
	})
	return currency, err
}

// CreateExchangeRate registers a rate of reporting currency units per foreign unit.
func (s *Service) CreateExchangeRate(ctx context.Context, scope Scope, in ExchangeRateInput) (ExchangeRate, error) {
	if err := s.validate.Struct(in); err != nil {
		return ExchangeRate{}, fmt.Errorf("accounting: exchange rate: %w", err)
	}
	if !in.Rate.IsPositive() {
		return ExchangeRate{}, errors.New("accounting: exchange rate must be positive")
	}
	var rate ExchangeRate
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetCurrency(ctx, scope.EntityID, in.CurrencyID); err != nil {
			return err
		}
		var err error
		rate, err = tx.InsertExchangeRate(ctx, ExchangeRate{
			EntityID:   scope.EntityID,
			CurrencyID: in.CurrencyID,
			Rate:       in.Rate,
			ValidFrom:  in.ValidFrom,
			ValidTo:    in.ValidTo,
			CreatedAt:  s.now(),
		})
		return err
	})
	return rate, err
}

// CreateCategory registers an account category of one account type.
func (s *Service) CreateCategory(ctx context.Context, scope Scope, in CategoryInput) (Category, error) {
	if err := s.validate.Struct(in); err != nil {
		return Category{}, fmt.Errorf("accounting: category: %w", err)
	}
	if !in.Type.Valid() {
		return Category{}, missingAccountType()
	}
	var category Category
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		category, err = tx.InsertCategory(ctx, Category{EntityID: scope.EntityID, Name: in.Name, CategoryType: in.Type})
		return err
	})
	return category, err
}

// CreateCostCenter registers an active cost center.
func (s *Service) CreateCostCenter(ctx context.Context, scope Scope, in CostCenterInput) (CostCenter, error) {
	if err := s.validate.Struct(in); err != nil {
		return CostCenter{}, fmt.Errorf("accounting: cost center: %w", err)
	}
	var center CostCenter
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		center, err = tx.InsertCostCenter(ctx, CostCenter{
			EntityID:    scope.EntityID,
			Code:        in.Code,
			Name:        in.Name,
			Description: in.Description,
			Active:      true,
		})
		return err
	})
	return center, err
}

// SaveVat registers a VAT rate. Negative rates are stored as their absolute
// value and a non-zero rate needs a CONTROL account.
func (s *Service) SaveVat(ctx context.Context, scope Scope, in VatInput) (Vat, error) {
	if err := s.validate.Struct(in); err != nil {
		return Vat{}, fmt.Errorf("accounting: vat: %w", err)
	}
	rate := in.Rate.Abs()
	var vat Vat
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		if rate.IsPositive() {
			if in.AccountID == nil {
				return missingVatAccount(rate)
			}
			account, err := liveAccount(ctx, tx, scope.EntityID, *in.AccountID)
			if err != nil {
				return err
			}
			if account.AccountType != AccountTypeControl {
				return invalidVatAccountType(s.settings.AccountLabel(AccountTypeControl))
			}
		}
		var err error
		vat, err = tx.InsertVat(ctx, Vat{
			EntityID:  scope.EntityID,
			Code:      in.Code,
			Name:      in.Name,
			Rate:      rate,
			AccountID: in.AccountID,
		})
		return err
	})
	return vat, err
}

// resolveRate picks the exchange rate of a currency for a date. The reporting
// currency always resolves to its unit rate.
func resolveRate(ctx context.Context, tx TxRepository, entity Entity, currencyID int64, day time.Time) (ExchangeRate, error) {
	rate, err := tx.FindExchangeRate(ctx, entity.ID, currencyID, day)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ExchangeRate{}, err
	}
	currency, cerr := tx.GetCurrency(ctx, entity.ID, currencyID)
	if cerr != nil {
		return ExchangeRate{}, cerr
	}
	return ExchangeRate{}, missingExchangeRate(currency.CurrencyCode)
}
