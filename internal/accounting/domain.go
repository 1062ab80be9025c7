package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates the chart of accounts classes.
type AccountType string

const (
	AccountTypeNonCurrentAsset     AccountType = "NON_CURRENT_ASSET"
	AccountTypeContraAsset         AccountType = "CONTRA_ASSET"
	AccountTypeInventory           AccountType = "INVENTORY"
	AccountTypeBank                AccountType = "BANK"
	AccountTypeCurrentAsset        AccountType = "CURRENT_ASSET"
	AccountTypeReceivable          AccountType = "RECEIVABLE"
	AccountTypeNonCurrentLiability AccountType = "NON_CURRENT_LIABILITY"
	AccountTypeControl             AccountType = "CONTROL"
	AccountTypeCurrentLiability    AccountType = "CURRENT_LIABILITY"
	AccountTypePayable             AccountType = "PAYABLE"
	AccountTypeEquity              AccountType = "EQUITY"
	AccountTypeOperatingRevenue    AccountType = "OPERATING_REVENUE"
	AccountTypeOperatingExpense    AccountType = "OPERATING_EXPENSE"
	AccountTypeNonOperatingRevenue AccountType = "NON_OPERATING_REVENUE"
	AccountTypeDirectExpense       AccountType = "DIRECT_EXPENSE"
	AccountTypeOverheadExpense     AccountType = "OVERHEAD_EXPENSE"
	AccountTypeOtherExpense        AccountType = "OTHER_EXPENSE"
	AccountTypeReconciliation      AccountType = "RECONCILIATION"
)

// AccountTypes lists every account type in chart order.
var AccountTypes = []AccountType{
	AccountTypeNonCurrentAsset,
	AccountTypeContraAsset,
	AccountTypeInventory,
	AccountTypeBank,
	AccountTypeCurrentAsset,
	AccountTypeReceivable,
	AccountTypeNonCurrentLiability,
	AccountTypeControl,
	AccountTypeCurrentLiability,
	AccountTypePayable,
	AccountTypeEquity,
	AccountTypeOperatingRevenue,
	AccountTypeOperatingExpense,
	AccountTypeNonOperatingRevenue,
	AccountTypeDirectExpense,
	AccountTypeOverheadExpense,
	AccountTypeOtherExpense,
	AccountTypeReconciliation,
}

// Purchasables are the account types a purchase line item may hit.
var Purchasables = []AccountType{
	AccountTypeOperatingExpense,
	AccountTypeDirectExpense,
	AccountTypeOverheadExpense,
	AccountTypeOtherExpense,
	AccountTypeNonCurrentAsset,
	AccountTypeCurrentAsset,
	AccountTypeInventory,
}

// IncomeStatementTypes are the account types closed into profit at year end.
var IncomeStatementTypes = []AccountType{
	AccountTypeOperatingRevenue,
	AccountTypeNonOperatingRevenue,
	AccountTypeOperatingExpense,
	AccountTypeDirectExpense,
	AccountTypeOverheadExpense,
	AccountTypeOtherExpense,
}

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	return containsType(AccountTypes, t)
}

// IsIncomeStatement reports whether t belongs to the income statement.
func (t AccountType) IsIncomeStatement() bool {
	return containsType(IncomeStatementTypes, t)
}

func containsType(types []AccountType, t AccountType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// TransactionType enumerates the ten transaction kinds by their number prefix.
type TransactionType string

const (
	TransactionTypeCashSale      TransactionType = "CS"
	TransactionTypeClientInvoice TransactionType = "IN"
	TransactionTypeCreditNote    TransactionType = "CN"
	TransactionTypeClientReceipt TransactionType = "RC"
	TransactionTypeCashPurchase  TransactionType = "CP"
	TransactionTypeSupplierBill  TransactionType = "BL"
	TransactionTypeDebitNote     TransactionType = "DN"
	TransactionTypePayment       TransactionType = "PY"
	TransactionTypeContraEntry   TransactionType = "CE"
	TransactionTypeJournalEntry  TransactionType = "JN"
)

// EntryType marks the side of a posting.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// Opposite returns the other side.
func (e EntryType) Opposite() EntryType {
	if e == EntryDebit {
		return EntryCredit
	}
	return EntryDebit
}

func entryFor(credited bool) EntryType {
	if credited {
		return EntryCredit
	}
	return EntryDebit
}

// PeriodStatus enumerates reporting period states.
type PeriodStatus string

const (
	PeriodStatusOpen      PeriodStatus = "OPEN"
	PeriodStatusAdjusting PeriodStatus = "ADJUSTING"
	PeriodStatusClosed    PeriodStatus = "CLOSED"
)

// Entity is the reporting tenant every other record belongs to. YearStart is
// the first month of its fiscal year.
type Entity struct {
	ID         int64
	Name       string
	CurrencyID int64
	YearStart  time.Month
	CreatedAt  time.Time
}

// Currency is a denomination used by accounts and transactions.
type Currency struct {
	ID           int64
	EntityID     int64
	Name         string
	CurrencyCode string
	CreatedAt    time.Time
}

// ExchangeRate is the number of reporting currency units per unit of Currency.
type ExchangeRate struct {
	ID         int64
	EntityID   int64
	CurrencyID int64
	Rate       decimal.Decimal
	ValidFrom  time.Time
	ValidTo    *time.Time
	CreatedAt  time.Time
}

// ValidAt reports whether the rate covers day.
func (r ExchangeRate) ValidAt(day time.Time) bool {
	if day.Before(r.ValidFrom) {
		return false
	}
	return r.ValidTo == nil || !day.After(*r.ValidTo)
}

// Category groups accounts of a single type for statements.
type Category struct {
	ID           int64
	EntityID     int64
	Name         string
	CategoryType AccountType
	DeletedAt    *time.Time
}

// CostCenter tags accounts for managerial reporting.
type CostCenter struct {
	ID          int64
	EntityID    int64
	Code        string
	Name        string
	Description string
	Active      bool
	DeletedAt   *time.Time
}

// Account models a chart of accounts entry.
type Account struct {
	ID           int64
	EntityID     int64
	Name         string
	Description  string
	Code         int
	AccountType  AccountType
	CurrencyID   int64
	CategoryID   *int64
	CostCenterID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	DestroyedAt  *time.Time
}

// Vat is a tax rate charged through a control account.
type Vat struct {
	ID        int64
	EntityID  int64
	Code      string
	Name      string
	Rate      decimal.Decimal
	AccountID *int64
	DeletedAt *time.Time
}

// ReportingPeriod is the fiscal year window of an entity.
type ReportingPeriod struct {
	ID           int64
	EntityID     int64
	CalendarYear int
	PeriodCount  int
	Status       PeriodStatus
	ClosingDate  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transaction is the document posted to the ledger against a main account.
type Transaction struct {
	ID                int64
	EntityID          int64
	AccountID         int64
	CurrencyID        int64
	ExchangeRateID    int64
	TransactionDate   time.Time
	TransactionNo     string
	TransactionType   TransactionType
	Reference         string
	Narration         string
	Credited          bool
	Compound          bool
	MainAccountAmount decimal.Decimal
	Posted            bool
	PostedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// LineItem is one counter leg of a transaction.
type LineItem struct {
	ID            int64
	EntityID      int64
	TransactionID int64
	AccountID     int64
	VatID         *int64
	Narration     string
	Amount        decimal.Decimal
	Quantity      decimal.Decimal
	CompoundVat   bool
	Credited      bool
	CreatedAt     time.Time
}

// Net returns amount × quantity.
func (l LineItem) Net() decimal.Decimal {
	qty := l.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return l.Amount.Mul(qty)
}

// Ledger is an immutable posting row. Amount is in the reporting currency.
type Ledger struct {
	ID             int64
	EntityID       int64
	TransactionID  int64
	LineItemID     *int64
	VatID          *int64
	CurrencyID     int64
	PostAccountID  int64
	FolioAccountID int64
	PostingDate    time.Time
	EntryType      EntryType
	Amount         decimal.Decimal
	Rate           decimal.Decimal
	BatchID        uuid.UUID
	Hash           string
	CreatedAt      time.Time
}

// Balance is an opening position of an account for a reporting period. Amount
// is stored in the reporting currency.
type Balance struct {
	ID                int64
	EntityID          int64
	AccountID         int64
	ReportingPeriodID int64
	CurrencyID        int64
	ExchangeRateID    int64
	TransactionType   TransactionType
	TransactionNo     string
	TransactionDate   time.Time
	Reference         string
	BalanceType       EntryType
	Amount            decimal.Decimal
	CreatedAt         time.Time
	DeletedAt         *time.Time
}

// ClearedKind tags what an assignment clears.
type ClearedKind string

const (
	ClearedTransaction ClearedKind = "TRANSACTION"
	ClearedBalance     ClearedKind = "BALANCE"
)

// Clearable references the target of an assignment.
type Clearable struct {
	Kind ClearedKind
	ID   int64
}

// Assignment applies part of an assignable transaction against a clearable.
type Assignment struct {
	ID             int64
	EntityID       int64
	TransactionID  int64
	Cleared        Clearable
	AssignmentDate time.Time
	Amount         decimal.Decimal
	ForexAccountID *int64
	ForexBatchID   *uuid.UUID
	CreatedAt      time.Time
}

// ClosingRate registers the rate used to translate a currency at period end.
type ClosingRate struct {
	ID                int64
	EntityID          int64
	ReportingPeriodID int64
	ExchangeRateID    int64
	CreatedAt         time.Time
}

// ClosingTransaction links a translation transaction to the account it closed.
type ClosingTransaction struct {
	ID                int64
	EntityID          int64
	ReportingPeriodID int64
	AccountID         int64
	CurrencyID        int64
	TransactionID     int64
	CreatedAt         time.Time
}

// RecycledObject records a soft delete.
type RecycledObject struct {
	ID             int64
	EntityID       int64
	ActorID        *int64
	RecyclableKind string
	RecyclableID   int64
	CreatedAt      time.Time
}

// Balances maps currency id to amount.
type Balances map[int64]decimal.Decimal
