package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// RecyclableTransaction is the recycle bin kind for transactions.
const RecyclableTransaction = "transaction"

// ErrCompoundType rejects compound mode on anything but a journal entry.
var ErrCompoundType = errors.New("accounting: only journal entries can be compound")

// TransactionInput creates or edits a draft transaction. A nil ID creates.
// Credited is honoured only by types that allow overriding their side.
type TransactionInput struct {
	ID                *int64
	Type              TransactionType `validate:"required"`
	AccountID         int64           `validate:"required"`
	Date              time.Time       `validate:"required"`
	CurrencyID        *int64
	ExchangeRateID    *int64
	Reference         string
	Narration         string
	Credited          *bool
	Compound          bool
	MainAccountAmount decimal.Decimal
}

// LineItemInput adds a counter leg to a draft transaction. Credited is used by
// compound journal entries only.
type LineItemInput struct {
	TransactionID int64 `validate:"required"`
	AccountID     int64 `validate:"required"`
	VatID         *int64
	Narration     string
	Amount        decimal.Decimal
	Quantity      decimal.Decimal
	CompoundVat   bool
	Credited      bool
}

// TransactionDetail is a transaction with its lines and derived amounts.
type TransactionDetail struct {
	Transaction   Transaction
	LineItems     []LineItem
	Amount        decimal.Decimal
	Balance       decimal.Decimal
	ClearedAmount decimal.Decimal
}

// SaveTransaction creates or edits a draft transaction.
func (s *Service) SaveTransaction(ctx context.Context, scope Scope, in TransactionInput) (Transaction, error) {
	if err := s.validate.Struct(in); err != nil {
		return Transaction{}, fmt.Errorf("accounting: transaction: %w", err)
	}
	desc, ok := Describe(in.Type)
	if !ok {
		return Transaction{}, fmt.Errorf("accounting: unknown transaction type %q", in.Type)
	}
	if in.Compound && in.Type != TransactionTypeJournalEntry {
		return Transaction{}, ErrCompoundType
	}
	if in.MainAccountAmount.IsNegative() {
		return Transaction{}, negativeAmount("Transaction")
	}
	var t Transaction
	created := in.ID == nil
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		entity, err := tx.GetEntity(ctx, scope.EntityID)
		if err != nil {
			return err
		}
		if created {
			t = Transaction{EntityID: entity.ID, TransactionType: in.Type, CreatedAt: s.now()}
		} else {
			t, err = tx.GetTransaction(ctx, entity.ID, *in.ID)
			if err != nil {
				return err
			}
			if t.Posted {
				return postedTransaction("edit")
			}
			if t.TransactionType != in.Type {
				return fmt.Errorf("accounting: transaction type cannot change from %s to %s", t.TransactionType, in.Type)
			}
			if ReportingYear(entity, t.TransactionDate) != ReportingYear(entity, in.Date) {
				return ErrPeriodChange
			}
		}

		account, err := liveAccount(ctx, tx, entity.ID, in.AccountID)
		if err != nil {
			return err
		}
		if !desc.AcceptsMain(account.AccountType) {
			return mainAccountError(s.settings.TransactionLabel(in.Type), s.settings.AccountLabel(*desc.MainAccountType))
		}

		currencyID := account.CurrencyID
		if in.CurrencyID != nil {
			currencyID = *in.CurrencyID
		}
		if s.settings.IsSingleCurrency(account.AccountType) && currencyID != entity.CurrencyID {
			return invalidCurrency(s.settings.AccountLabel(account.AccountType))
		}
		var rate ExchangeRate
		if in.ExchangeRateID != nil {
			rate, err = tx.GetExchangeRate(ctx, entity.ID, *in.ExchangeRateID)
			if err != nil {
				return err
			}
			if rate.CurrencyID != currencyID {
				return invalidCurrency(s.settings.TransactionLabel(in.Type))
			}
		} else {
			rate, err = resolveRate(ctx, tx, entity, currencyID, in.Date)
			if err != nil {
				return err
			}
		}

		period, err := s.writablePeriod(ctx, tx, entity, in.Date)
		if err != nil {
			return err
		}

		t.AccountID = account.ID
		t.CurrencyID = currencyID
		t.ExchangeRateID = rate.ID
		t.TransactionDate = in.Date
		t.Reference = in.Reference
		t.Narration = in.Narration
		t.Credited = desc.Credited
		if desc.CreditOverride && in.Credited != nil {
			t.Credited = *in.Credited
		}
		t.Compound = in.Compound
		t.MainAccountAmount = in.MainAccountAmount
		t.UpdatedAt = s.now()

		if !created {
			return tx.UpdateTransaction(ctx, t)
		}
		t, err = s.insertTransaction(ctx, tx, entity, period, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	action := "transaction.update"
	if created {
		action = "transaction.create"
	}
	s.record(ctx, scope, action, "transaction", fmt.Sprintf("%d", t.ID), map[string]any{
		"transaction_no": t.TransactionNo,
		"type":           string(t.TransactionType),
	})
	return t, nil
}

// insertTransaction numbers a new transaction within its type and period, then stores it.
func (s *Service) insertTransaction(ctx context.Context, tx TxRepository, entity Entity, period ReportingPeriod, t Transaction) (Transaction, error) {
	start, end := YearBounds(entity, period.CalendarYear)
	count, err := tx.CountTransactions(ctx, entity.ID, t.TransactionType, start, end)
	if err != nil {
		return Transaction{}, err
	}
	t.TransactionNo = fmt.Sprintf("%s%02d/%04d", t.TransactionType, period.PeriodCount, count+1)
	return tx.InsertTransaction(ctx, t)
}

// AddLineItem appends a line to a draft transaction after checking the account
// type and VAT rules of its transaction type.
func (s *Service) AddLineItem(ctx context.Context, scope Scope, in LineItemInput) (LineItem, error) {
	if err := s.validate.Struct(in); err != nil {
		return LineItem{}, fmt.Errorf("accounting: line item: %w", err)
	}
	if in.Amount.IsNegative() {
		return LineItem{}, negativeAmount("LineItem")
	}
	if in.Quantity.IsNegative() {
		return LineItem{}, negativeQuantity()
	}
	var line LineItem
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransaction(ctx, scope.EntityID, in.TransactionID)
		if err != nil {
			return err
		}
		if t.Posted {
			return postedTransaction("add LineItem to")
		}
		desc, _ := Describe(t.TransactionType)
		label := s.settings.TransactionLabel(t.TransactionType)
		account, err := liveAccount(ctx, tx, scope.EntityID, in.AccountID)
		if err != nil {
			return err
		}
		if !desc.AcceptsLine(account.AccountType) {
			return lineItemAccountError(label, s.settings.AccountLabelsOf(desc.LineAccountTypes))
		}
		if in.VatID != nil {
			vat, err := tx.GetVat(ctx, scope.EntityID, *in.VatID)
			if err != nil {
				return err
			}
			if vat.Rate.IsPositive() {
				if !desc.AllowVat {
					return vatCharge(label)
				}
				if t.Compound {
					return multipleVat()
				}
			}
		}
		qty := in.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		credited := !t.Credited
		if t.Compound {
			credited = in.Credited
		}
		line, err = tx.InsertLineItem(ctx, LineItem{
			EntityID:      scope.EntityID,
			TransactionID: t.ID,
			AccountID:     account.ID,
			VatID:         in.VatID,
			Narration:     in.Narration,
			Amount:        in.Amount,
			Quantity:      qty,
			CompoundVat:   in.CompoundVat,
			Credited:      credited,
			CreatedAt:     s.now(),
		})
		return err
	})
	return line, err
}

// RemoveLineItem drops a line from a draft transaction.
func (s *Service) RemoveLineItem(ctx context.Context, scope Scope, transactionID, lineItemID int64) error {
	return s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransaction(ctx, scope.EntityID, transactionID)
		if err != nil {
			return err
		}
		if t.Posted {
			return postedTransaction("remove LineItem from")
		}
		return tx.DeleteLineItem(ctx, scope.EntityID, lineItemID)
	})
}

// Post writes a draft transaction to the ledger. Posting is final.
func (s *Service) Post(ctx context.Context, scope Scope, transactionID int64) (Transaction, error) {
	var (
		posted Transaction
		rows   int
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
		posted, rows, err = s.post(ctx, tx, entity, t)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	if s.metrics != nil {
		s.metrics.ObservePosting(string(posted.TransactionType), rows)
	}
	s.record(ctx, scope, "transaction.post", "transaction", fmt.Sprintf("%d", posted.ID), map[string]any{
		"transaction_no": posted.TransactionNo,
		"rows":           rows,
	})
	return posted, nil
}

// DeleteTransaction soft deletes a draft transaction.
func (s *Service) DeleteTransaction(ctx context.Context, scope Scope, transactionID int64) error {
	err := s.write(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransaction(ctx, scope.EntityID, transactionID)
		if err != nil {
			return err
		}
		if t.Posted {
			return postedTransaction("delete")
		}
		now := s.now()
		t.DeletedAt = &now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		_, err = tx.InsertRecycledObject(ctx, RecycledObject{
			EntityID:       scope.EntityID,
			ActorID:        scope.ActorID,
			RecyclableKind: RecyclableTransaction,
			RecyclableID:   t.ID,
			CreatedAt:      now,
		})
		return err
	})
	if err != nil {
		return err
	}
	s.record(ctx, scope, "transaction.delete", "transaction", fmt.Sprintf("%d", transactionID), nil)
	return nil
}

// GetTransaction loads a transaction with its lines and derived amounts.
func (s *Service) GetTransaction(ctx context.Context, scope Scope, transactionID int64) (TransactionDetail, error) {
	var detail TransactionDetail
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransaction(ctx, scope.EntityID, transactionID)
		if err != nil {
			return err
		}
		detail, err = s.transactionDetail(ctx, tx, t)
		return err
	})
	return detail, err
}

// ListTransactions lists live transactions matching the filter.
func (s *Service) ListTransactions(ctx context.Context, scope Scope, f TransactionFilter) ([]Transaction, error) {
	f.EntityID = scope.EntityID
	var out []Transaction
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

func (s *Service) transactionDetail(ctx context.Context, tx TxRepository, t Transaction) (TransactionDetail, error) {
	lines, err := tx.ListLineItems(ctx, t.EntityID, t.ID)
	if err != nil {
		return TransactionDetail{}, err
	}
	amount, err := s.transactionAmount(ctx, tx, t, lines)
	if err != nil {
		return TransactionDetail{}, err
	}
	assigned, cleared, err := assignmentTotals(ctx, tx, t)
	if err != nil {
		return TransactionDetail{}, err
	}
	return TransactionDetail{
		Transaction:   t,
		LineItems:     lines,
		Amount:        amount,
		Balance:       amount.Sub(assigned),
		ClearedAmount: cleared,
	}, nil
}

// transactionAmount is the gross value of a transaction in its own currency.
func (s *Service) transactionAmount(ctx context.Context, tx TxRepository, t Transaction, lines []LineItem) (decimal.Decimal, error) {
	if t.Compound {
		return t.MainAccountAmount, nil
	}
	total := decimal.Zero
	for _, line := range lines {
		net := line.Net()
		total = total.Add(net)
		if line.VatID == nil || line.CompoundVat {
			continue
		}
		vat, err := tx.GetVat(ctx, t.EntityID, *line.VatID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(money.Percent(net, vat.Rate))
	}
	return total, nil
}

// assignmentTotals returns what t has assigned to others and what has been
// assigned against it.
func assignmentTotals(ctx context.Context, tx TxRepository, t Transaction) (assigned, cleared decimal.Decimal, err error) {
	made, err := tx.ListAssignments(ctx, AssignmentFilter{EntityID: t.EntityID, TransactionID: &t.ID})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	received, err := tx.ListAssignments(ctx, AssignmentFilter{EntityID: t.EntityID, Cleared: &Clearable{Kind: ClearedTransaction, ID: t.ID}})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	assigned, cleared = decimal.Zero, decimal.Zero
	for _, a := range made {
		assigned = assigned.Add(a.Amount)
	}
	for _, a := range received {
		cleared = cleared.Add(a.Amount)
	}
	return assigned, cleared, nil
}
