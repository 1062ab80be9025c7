package accounting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// AssignmentInput settles part of an assignable transaction against a clearable.
// Date defaults to the service clock.
type AssignmentInput struct {
	TransactionID  int64 `validate:"required"`
	Cleared        Clearable
	Amount         decimal.Decimal
	ForexAccountID *int64
	Date           *time.Time
}

// clearableView is the common shape of a clearable transaction or balance.
// Amount and Cleared are in the item's own currency.
type clearableView struct {
	Ref        Clearable
	Type       TransactionType
	Number     string
	AccountID  int64
	CurrencyID int64
	Rate       decimal.Decimal
	Credited   bool
	Posted     bool
	Compound   bool
	Amount     decimal.Decimal
	Cleared    decimal.Decimal
	Assigned   decimal.Decimal
	Date       time.Time
}

func (c clearableView) outstanding() decimal.Decimal {
	return c.Amount.Sub(c.Cleared)
}

type clearableLoader func(ctx context.Context, s *Service, tx TxRepository, entityID, id int64) (clearableView, error)

var clearableLoaders = map[ClearedKind]clearableLoader{
	ClearedTransaction: loadClearedTransaction,
	ClearedBalance:     loadClearedBalance,
}

func (s *Service) loadClearable(ctx context.Context, tx TxRepository, entityID int64, ref Clearable) (clearableView, error) {
	load, ok := clearableLoaders[ref.Kind]
	if !ok {
		return clearableView{}, fmt.Errorf("accounting: unknown clearable kind %q", ref.Kind)
	}
	return load(ctx, s, tx, entityID, ref.ID)
}

func loadClearedTransaction(ctx context.Context, s *Service, tx TxRepository, entityID, id int64) (clearableView, error) {
	t, err := tx.GetTransaction(ctx, entityID, id)
	if err != nil {
		return clearableView{}, err
	}
	return s.transactionView(ctx, tx, t)
}

func (s *Service) transactionView(ctx context.Context, tx TxRepository, t Transaction) (clearableView, error) {
	detail, err := s.transactionDetail(ctx, tx, t)
	if err != nil {
		return clearableView{}, err
	}
	rate, err := tx.GetExchangeRate(ctx, t.EntityID, t.ExchangeRateID)
	if err != nil {
		return clearableView{}, err
	}
	return clearableView{
		Ref:        Clearable{Kind: ClearedTransaction, ID: t.ID},
		Type:       t.TransactionType,
		Number:     t.TransactionNo,
		AccountID:  t.AccountID,
		CurrencyID: t.CurrencyID,
		Rate:       rate.Rate,
		Credited:   t.Credited,
		Posted:     t.Posted,
		Compound:   t.Compound,
		Amount:     detail.Amount,
		Cleared:    detail.ClearedAmount,
		Assigned:   detail.Amount.Sub(detail.Balance),
		Date:       t.TransactionDate,
	}, nil
}

func loadClearedBalance(ctx context.Context, s *Service, tx TxRepository, entityID, id int64) (clearableView, error) {
	b, err := tx.GetBalance(ctx, entityID, id)
	if err != nil {
		return clearableView{}, err
	}
	return balanceView(ctx, tx, b)
}

func balanceView(ctx context.Context, tx TxRepository, b Balance) (clearableView, error) {
	rate, err := tx.GetExchangeRate(ctx, b.EntityID, b.ExchangeRateID)
	if err != nil {
		return clearableView{}, err
	}
	ref := Clearable{Kind: ClearedBalance, ID: b.ID}
	received, err := tx.ListAssignments(ctx, AssignmentFilter{EntityID: b.EntityID, Cleared: &ref})
	if err != nil {
		return clearableView{}, err
	}
	cleared := decimal.Zero
	for _, a := range received {
		cleared = cleared.Add(a.Amount)
	}
	return clearableView{
		Ref:        ref,
		Type:       b.TransactionType,
		Number:     b.TransactionNo,
		AccountID:  b.AccountID,
		CurrencyID: b.CurrencyID,
		Rate:       rate.Rate,
		Credited:   b.BalanceType == EntryCredit,
		Posted:     true,
		Amount:     money.Foreign(b.Amount, rate.Rate),
		Cleared:    cleared,
		Assigned:   decimal.Zero,
		Date:       b.TransactionDate,
	}, nil
}

// validateAssignment applies the clearance rules in order and reports whether
// the rates differ enough to need a forex posting.
func (s *Service) validateAssignment(t, cleared clearableView, amount decimal.Decimal, forexAccountID *int64) (bool, error) {
	txLabel := s.settings.TransactionLabel(t.Type)
	clearedLabel := s.settings.TransactionLabel(cleared.Type)
	switch {
	case !t.Type.IsAssignable():
		return false, unassignableTransaction(txLabel, s.settings.TransactionLabelsOf(Assignables))
	case !cleared.Type.IsClearable():
		return false, unclearableTransaction(clearedLabel, s.settings.TransactionLabelsOf(Clearables))
	case amount.IsNegative():
		return false, negativeAmount("Assignment")
	case cleared.Ref.Kind == ClearedTransaction && cleared.Ref.ID == t.Ref.ID:
		return false, selfClearance()
	case !t.Posted || !cleared.Posted:
		return false, unpostedAssignment()
	case t.AccountID != cleared.AccountID:
		return false, invalidClearanceAccount()
	case t.CurrencyID != cleared.CurrencyID:
		return false, invalidClearanceCurrency()
	case t.Credited == cleared.Credited:
		return false, invalidClearanceEntry()
	}
	scale := s.settings.ForexScale
	balance := t.Amount.Sub(t.Assigned)
	if money.Compare(balance, amount, scale) < 0 {
		return false, insufficientBalance(txLabel, amount, clearedLabel)
	}
	if money.Compare(cleared.outstanding(), amount, scale) < 0 {
		return false, overClearance(clearedLabel, amount)
	}
	forex := !money.Equal(t.Rate, cleared.Rate, scale)
	if forex && forexAccountID == nil {
		return false, missingForexAccount()
	}
	switch {
	case cleared.Ref.Kind != ClearedBalance && cleared.Assigned.IsPositive():
		return false, mixedAssignment("Assigned", "Cleared")
	case t.Cleared.IsPositive():
		return false, mixedAssignment("Cleared", "Assigned")
	case t.Compound || cleared.Compound:
		return false, invalidTransaction()
	}
	return forex, nil
}

// assign validates and stores one assignment, posting the forex difference first.
func (s *Service) assign(ctx context.Context, tx TxRepository, entity Entity, t Transaction, ref Clearable, amount decimal.Decimal, forexAccountID *int64, day time.Time) (Assignment, bool, error) {
	view, err := s.transactionView(ctx, tx, t)
	if err != nil {
		return Assignment{}, false, err
	}
	cleared, err := s.loadClearable(ctx, tx, entity.ID, ref)
	if err != nil {
		return Assignment{}, false, err
	}
	forex, err := s.validateAssignment(view, cleared, amount, forexAccountID)
	if err != nil {
		return Assignment{}, false, err
	}
	if _, err := s.writablePeriod(ctx, tx, entity, day); err != nil {
		return Assignment{}, false, err
	}
	a := Assignment{
		EntityID:       entity.ID,
		TransactionID:  t.ID,
		Cleared:        ref,
		AssignmentDate: day,
		Amount:         amount,
		ForexAccountID: forexAccountID,
		CreatedAt:      s.now(),
	}
	if forex {
		if _, err := liveAccount(ctx, tx, entity.ID, *forexAccountID); err != nil {
			return Assignment{}, false, err
		}
		batch, err := s.postForex(ctx, tx, entity, t, a, view.Rate, cleared.Rate)
		if err != nil {
			return Assignment{}, false, err
		}
		if batch != uuid.Nil {
			a.ForexBatchID = &batch
		}
	}
	a, err = tx.InsertAssignment(ctx, a)
	return a, forex, err
}

// SaveAssignment settles part of a posted assignable transaction against a
// posted clearable of the opposite side.
func (s *Service) SaveAssignment(ctx context.Context, scope Scope, in AssignmentInput) (Assignment, error) {
	if err := s.validate.Struct(in); err != nil {
		return Assignment{}, fmt.Errorf("accounting: assignment: %w", err)
	}
	day := s.now()
	if in.Date != nil {
		day = *in.Date
	}
	var (
		a     Assignment
		forex bool
	)
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		t, err := tx.GetTransaction(ctx, entity.ID, in.TransactionID)
		if err != nil {
			return err
		}
		a, forex, err = s.assign(ctx, tx, entity, t, in.Cleared, in.Amount, in.ForexAccountID, day)
		return err
	})
	if err != nil {
		return Assignment{}, err
	}
	s.observeAssignment(forex)
	s.record(ctx, scope, "assignment.save", "assignment", fmt.Sprintf("%d", a.ID), map[string]any{
		"transaction_id": a.TransactionID,
		"cleared_kind":   string(a.Cleared.Kind),
		"cleared_id":     a.Cleared.ID,
		"amount":         a.Amount.String(),
	})
	return a, nil
}

func (s *Service) observeAssignment(forex bool) {
	if s.metrics != nil {
		s.metrics.ObserveAssignment(forex)
	}
}

// clearanceSchedule lists the posted items an assignable transaction could
// clear, oldest first. Balances sort before transactions of the same day.
func (s *Service) clearanceSchedule(ctx context.Context, tx TxRepository, entity Entity, t Transaction) ([]clearableView, error) {
	var schedule []clearableView
	candidates, err := tx.ListTransactions(ctx, TransactionFilter{
		EntityID:   entity.ID,
		AccountID:  &t.AccountID,
		CurrencyID: &t.CurrencyID,
		Types:      Clearables,
		PostedOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.ID == t.ID || c.Credited == t.Credited || c.Compound {
			continue
		}
		view, err := s.transactionView(ctx, tx, c)
		if err != nil {
			return nil, err
		}
		if view.Assigned.IsPositive() || !view.outstanding().IsPositive() {
			continue
		}
		schedule = append(schedule, view)
	}
	balances, err := tx.ListBalances(ctx, BalanceFilter{EntityID: entity.ID, AccountID: &t.AccountID, CurrencyID: &t.CurrencyID})
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		view, err := balanceView(ctx, tx, b)
		if err != nil {
			return nil, err
		}
		if !view.Type.IsClearable() || view.Credited == t.Credited || !view.outstanding().IsPositive() {
			continue
		}
		schedule = append(schedule, view)
	}
	sort.SliceStable(schedule, func(i, j int) bool {
		a, b := schedule[i], schedule[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Ref.Kind != b.Ref.Kind {
			return a.Ref.Kind == ClearedBalance
		}
		return a.Ref.ID < b.Ref.ID
	})
	return schedule, nil
}

// BulkAssign settles an assignable transaction against its account's
// outstanding clearables, oldest first, until its balance is used up.
func (s *Service) BulkAssign(ctx context.Context, scope Scope, transactionID int64, forexAccountID *int64) ([]Assignment, error) {
	var (
		out   []Assignment
		flags []bool
	)
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		t, err := tx.GetTransaction(ctx, entity.ID, transactionID)
		if err != nil {
			return err
		}
		if !t.TransactionType.IsAssignable() {
			return unassignableTransaction(s.settings.TransactionLabel(t.TransactionType), s.settings.TransactionLabelsOf(Assignables))
		}
		view, err := s.transactionView(ctx, tx, t)
		if err != nil {
			return err
		}
		remaining := view.Amount.Sub(view.Assigned)
		schedule, err := s.clearanceSchedule(ctx, tx, entity, t)
		if err != nil {
			return err
		}
		day := s.now()
		for _, item := range schedule {
			if !remaining.IsPositive() {
				break
			}
			amount := item.outstanding()
			if amount.GreaterThan(remaining) {
				amount = remaining
			}
			a, forex, err := s.assign(ctx, tx, entity, t, item.Ref, amount, forexAccountID, day)
			if err != nil {
				return err
			}
			out = append(out, a)
			flags = append(flags, forex)
			remaining = remaining.Sub(amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, forex := range flags {
		s.observeAssignment(forex)
	}
	s.record(ctx, scope, "assignment.bulk", "transaction", fmt.Sprintf("%d", transactionID), map[string]any{
		"assignments": len(out),
	})
	return out, nil
}

// DeleteAssignment removes an assignment and reverses its forex posting.
func (s *Service) DeleteAssignment(ctx context.Context, scope Scope, assignmentID int64) error {
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		a, err := tx.GetAssignment(ctx, entity.ID, assignmentID)
		if err != nil {
			return err
		}
		if _, err := s.writablePeriod(ctx, tx, entity, a.AssignmentDate); err != nil {
			return err
		}
		if a.ForexBatchID != nil {
			if err := s.reverseBatch(ctx, tx, entity.ID, *a.ForexBatchID); err != nil {
				return err
			}
		}
		return tx.DeleteAssignment(ctx, entity.ID, a.ID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "assignment.delete", "assignment", fmt.Sprintf("%d", assignmentID), nil)
	return nil
}

// Assignments lists the assignments a transaction has made.
func (s *Service) Assignments(ctx context.Context, scope Scope, transactionID int64) ([]Assignment, error) {
	return s.listAssignments(ctx, scope, AssignmentFilter{EntityID: scope.EntityID, TransactionID: &transactionID})
}

// Clearances lists the assignments made against a clearable.
func (s *Service) Clearances(ctx context.Context, scope Scope, ref Clearable) ([]Assignment, error) {
	return s.listAssignments(ctx, scope, AssignmentFilter{EntityID: scope.EntityID, Cleared: &ref})
}

func (s *Service) listAssignments(ctx context.Context, scope Scope, f AssignmentFilter) ([]Assignment, error) {
	var out []Assignment
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListAssignments(ctx, f)
		return err
	})
	return out, err
}
