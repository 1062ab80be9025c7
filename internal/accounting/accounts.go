package accounting

import (
	"context"
	"errors"
	"fmt"
)

// RecyclableAccount is the recycle bin kind for accounts.
const RecyclableAccount = "account"

// AccountInput creates or updates an account. A nil ID creates.
type AccountInput struct {
	ID           *int64
	Name         string `validate:"required"`
	Description  string
	Type         AccountType
	Code         *int
	CurrencyID   *int64
	CategoryID   *int64
	CostCenterID *int64
}

// SaveAccount validates and stores an account, assigning its code when needed.
func (s *Service) SaveAccount(ctx context.Context, scope Scope, in AccountInput) (Account, error) {
	if in.Type == "" {
		return Account{}, missingAccountType()
	}
	if !in.Type.Valid() {
		return Account{}, newError(KindInvalidAccountType, "%s is not a valid Account Type", in.Type)
	}
	if err := s.validate.Struct(in); err != nil {
		return Account{}, fmt.Errorf("accounting: account: %w", err)
	}
	var account Account
	created := in.ID == nil
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		if created {
			account = Account{EntityID: entity.ID, CreatedAt: s.now()}
		} else {
			account, err = tx.GetAccount(ctx, entity.ID, *in.ID)
			if err != nil {
				return err
			}
		}
		typeChanged := account.AccountType != in.Type
		account.Name = in.Name
		account.Description = in.Description
		account.AccountType = in.Type
		account.CostCenterID = in.CostCenterID
		account.UpdatedAt = s.now()

		if created {
			account.CurrencyID = entity.CurrencyID
		}
		if in.CurrencyID != nil && *in.CurrencyID != account.CurrencyID {
			if _, err := tx.GetCurrency(ctx, entity.ID, *in.CurrencyID); err != nil {
				return err
			}
			if !created {
				used, err := accountHasHistory(ctx, tx, entity.ID, account.ID)
				if err != nil {
					return err
				}
				if used {
					return ErrCurrencyInUse
				}
			}
			account.CurrencyID = *in.CurrencyID
		}
		if s.settings.IsSingleCurrency(in.Type) && account.CurrencyID != entity.CurrencyID {
			return invalidCurrency(s.settings.AccountLabel(in.Type))
		}

		account.CategoryID = in.CategoryID
		if in.CategoryID != nil {
			category, err := tx.GetCategory(ctx, entity.ID, *in.CategoryID)
			if err != nil {
				return err
			}
			if category.CategoryType != in.Type {
				return invalidCategoryType(s.settings.AccountLabel(in.Type), s.settings.AccountLabel(category.CategoryType))
			}
		}
		if in.CostCenterID != nil {
			if _, err := tx.GetCostCenter(ctx, entity.ID, *in.CostCenterID); err != nil {
				return err
			}
		}

		switch {
		case !created && typeChanged:
			account.Code, err = s.nextAccountCode(ctx, tx, entity.ID, in.Type, account.ID)
		case in.Code != nil:
			account.Code = *in.Code
		case created:
			account.Code, err = s.nextAccountCode(ctx, tx, entity.ID, in.Type, 0)
		}
		if err != nil {
			return err
		}

		if created {
			account, err = tx.InsertAccount(ctx, account)
			return err
		}
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return Account{}, err
	}
	action := "account.update"
	if created {
		action = "account.create"
	}
	s.record(ctx, scope, action, "account", fmt.Sprintf("%d", account.ID), map[string]any{
		"code": account.Code,
		"type": string(account.AccountType),
	})
	return account, nil
}

// nextAccountCode returns base + count of accounts of the type + 1, moving past
// any code already taken so codes never collide within a type.
func (s *Service) nextAccountCode(ctx context.Context, tx TxRepository, entityID int64, t AccountType, self int64) (int, error) {
	accounts, err := tx.ListAccounts(ctx, AccountFilter{EntityID: entityID, Types: []AccountType{t}, IncludeDeleted: true})
	if err != nil {
		return 0, err
	}
	taken := make(map[int]bool, len(accounts))
	count := 0
	for _, a := range accounts {
		if a.ID == self {
			continue
		}
		count++
		taken[a.Code] = true
	}
	code := s.settings.AccountCodes[t] + count + 1
	for taken[code] {
		code++
	}
	return code, nil
}

// accountHasHistory reports whether the account carries ledger rows or opening balances.
func accountHasHistory(ctx context.Context, tx TxRepository, entityID, accountID int64) (bool, error) {
	rows, err := tx.ListLedgers(ctx, LedgerFilter{EntityID: entityID, AccountID: &accountID})
	if err != nil || len(rows) > 0 {
		return len(rows) > 0, err
	}
	balances, err := tx.ListBalances(ctx, BalanceFilter{EntityID: entityID, AccountID: &accountID})
	return len(balances) > 0, err
}

// liveAccount loads an account that can still receive postings.
func liveAccount(ctx context.Context, tx TxRepository, entityID, id int64) (Account, error) {
	account, err := tx.GetAccount(ctx, entityID, id)
	if err != nil {
		return Account{}, err
	}
	if account.DeletedAt != nil {
		return Account{}, fmt.Errorf("%w: %d", ErrAccountDeleted, id)
	}
	return account, nil
}

// GetAccount loads an account of the scoped entity.
func (s *Service) GetAccount(ctx context.Context, scope Scope, id int64) (Account, error) {
	var account Account
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		account, err = tx.GetAccount(ctx, scope.EntityID, id)
		return err
	})
	return account, err
}

// ListAccounts lists live accounts of the given types, or all types when none are given.
func (s *Service) ListAccounts(ctx context.Context, scope Scope, types ...AccountType) ([]Account, error) {
	var accounts []Account
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, AccountFilter{EntityID: scope.EntityID, Types: types})
		return err
	})
	return accounts, err
}

// DeleteAccount soft deletes an account whose current period closing balance is zero.
func (s *Service) DeleteAccount(ctx context.Context, scope Scope, id int64) error {
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		account, err := tx.GetAccount(ctx, entity.ID, id)
		if err != nil {
			return err
		}
		if account.DeletedAt != nil {
			return nil
		}
		end := PeriodEnd(entity, s.now())
		closing, err := s.closingBalance(ctx, tx, entity, account, end, nil)
		if err != nil {
			return err
		}
		if !closing[entity.CurrencyID].IsZero() {
			return hangingTransactions()
		}
		now := s.now()
		account.DeletedAt = &now
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		_, err = tx.InsertRecycledObject(ctx, RecycledObject{
			EntityID:       entity.ID,
			ActorID:        scope.ActorID,
			RecyclableKind: RecyclableAccount,
			RecyclableID:   account.ID,
			CreatedAt:      now,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "account.delete", "account", fmt.Sprintf("%d", id), nil)
	return nil
}

// RestoreAccount reverses a soft delete.
func (s *Service) RestoreAccount(ctx context.Context, scope Scope, id int64) error {
	return s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, scope.EntityID, id)
		if err != nil {
			return err
		}
		if account.DeletedAt == nil {
			return nil
		}
		account.DeletedAt = nil
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}
		return tx.DeleteRecycledObject(ctx, scope.EntityID, RecyclableAccount, id)
	})
}

// DestroyAccount permanently retires a soft deleted account.
func (s *Service) DestroyAccount(ctx context.Context, scope Scope, id int64) error {
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccount(ctx, scope.EntityID, id)
		if err != nil {
			return err
		}
		if account.DeletedAt == nil {
			return errors.New("accounting: account must be deleted before it is destroyed")
		}
		now := s.now()
		account.DestroyedAt = &now
		return tx.UpdateAccount(ctx, account)
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "account.destroy", "account", fmt.Sprintf("%d", id), nil)
	return nil
}
