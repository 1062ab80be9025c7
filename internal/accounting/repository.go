package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AccountFilter narrows ListAccounts. Every filter carries the entity explicitly.
type AccountFilter struct {
	EntityID       int64
	Types          []AccountType
	CurrencyID     *int64
	IncludeDeleted bool
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	EntityID   int64
	AccountID  *int64
	CurrencyID *int64
	Types      []TransactionType
	PostedOnly bool
	From       *time.Time
	To         *time.Time
}

// LedgerFilter narrows ledger queries. AccountID matches the post account only;
// AnyAccountID matches either side of a pair.
type LedgerFilter struct {
	EntityID      int64
	TransactionID *int64
	AccountID     *int64
	AnyAccountID  *int64
	CurrencyID    *int64
	BatchID       *uuid.UUID
	From          *time.Time
	To            *time.Time
}

// LedgerTotals aggregates ledger rows. Foreign totals divide each row by its rate.
type LedgerTotals struct {
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	ForeignDebit  decimal.Decimal
	ForeignCredit decimal.Decimal
}

// BalanceFilter narrows ListBalances.
type BalanceFilter struct {
	EntityID   int64
	AccountID  *int64
	PeriodID   *int64
	CurrencyID *int64
}

// AssignmentFilter narrows ListAssignments.
type AssignmentFilter struct {
	EntityID      int64
	TransactionID *int64
	Cleared       *Clearable
}

// ClosingFilter narrows ListClosingTransactions.
type ClosingFilter struct {
	EntityID  int64
	AccountID *int64
	PeriodID  *int64
}

// TxRepository exposes the persistence operations used inside one unit of work.
// Implementations must scope every query by the entity id they are given.
// ListLedgers returns rows in insertion order; Get* and List* skip destroyed and
// soft deleted rows unless a filter asks for them, and missing rows are ErrNotFound.
type TxRepository interface {
	InsertEntity(ctx context.Context, e Entity) (Entity, error)
	UpdateEntity(ctx context.Context, e Entity) error
	GetEntity(ctx context.Context, entityID int64) (Entity, error)
	ListEntities(ctx context.Context) ([]Entity, error)
	LockEntity(ctx context.Context, entityID int64) error

	InsertCurrency(ctx context.Context, c Currency) (Currency, error)
	GetCurrency(ctx context.Context, entityID, id int64) (Currency, error)
	InsertExchangeRate(ctx context.Context, r ExchangeRate) (ExchangeRate, error)
	GetExchangeRate(ctx context.Context, entityID, id int64) (ExchangeRate, error)
	FindExchangeRate(ctx context.Context, entityID, currencyID int64, day time.Time) (ExchangeRate, error)
	InsertCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, entityID, id int64) (Category, error)
	InsertCostCenter(ctx context.Context, c CostCenter) (CostCenter, error)
	GetCostCenter(ctx context.Context, entityID, id int64) (CostCenter, error)
	InsertVat(ctx context.Context, v Vat) (Vat, error)
	GetVat(ctx context.Context, entityID, id int64) (Vat, error)

	InsertAccount(ctx context.Context, a Account) (Account, error)
	UpdateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, entityID, id int64) (Account, error)
	ListAccounts(ctx context.Context, f AccountFilter) ([]Account, error)
	InsertRecycledObject(ctx context.Context, r RecycledObject) (RecycledObject, error)
	DeleteRecycledObject(ctx context.Context, entityID int64, kind string, id int64) error

	InsertPeriod(ctx context.Context, p ReportingPeriod) (ReportingPeriod, error)
	UpdatePeriod(ctx context.Context, p ReportingPeriod) error
	GetPeriod(ctx context.Context, entityID, id int64) (ReportingPeriod, error)
	GetPeriodForUpdate(ctx context.Context, entityID, id int64) (ReportingPeriod, error)
	GetPeriodByYear(ctx context.Context, entityID int64, year int) (ReportingPeriod, error)
	ListPeriods(ctx context.Context, entityID int64) ([]ReportingPeriod, error)

	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) error
	GetTransaction(ctx context.Context, entityID, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	CountTransactions(ctx context.Context, entityID int64, t TransactionType, from, to time.Time) (int, error)
	InsertLineItem(ctx context.Context, l LineItem) (LineItem, error)
	DeleteLineItem(ctx context.Context, entityID, id int64) error
	ListLineItems(ctx context.Context, entityID, transactionID int64) ([]LineItem, error)

	InsertLedgers(ctx context.Context, rows []Ledger) ([]Ledger, error)
	ListLedgers(ctx context.Context, f LedgerFilter) ([]Ledger, error)
	SumLedger(ctx context.Context, f LedgerFilter) (LedgerTotals, error)
	LastLedger(ctx context.Context, entityID int64) (Ledger, bool, error)

	InsertBalance(ctx context.Context, b Balance) (Balance, error)
	GetBalance(ctx context.Context, entityID, id int64) (Balance, error)
	ListBalances(ctx context.Context, f BalanceFilter) ([]Balance, error)

	InsertAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, entityID, id int64) (Assignment, error)
	DeleteAssignment(ctx context.Context, entityID, id int64) error
	ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error)

	InsertClosingRate(ctx context.Context, r ClosingRate) (ClosingRate, error)
	ListClosingRates(ctx context.Context, entityID, periodID int64) ([]ClosingRate, error)
	InsertClosingTransaction(ctx context.Context, c ClosingTransaction) (ClosingTransaction, error)
	ListClosingTransactions(ctx context.Context, f ClosingFilter) ([]ClosingTransaction, error)
}
