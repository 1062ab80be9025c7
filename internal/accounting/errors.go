package accounting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ErrorKind classifies ledger rule violations.
type ErrorKind string

const (
	KindMissingAccountType         ErrorKind = "MissingAccountType"
	KindMissingVatAccount          ErrorKind = "MissingVatAccount"
	KindInvalidAccountType         ErrorKind = "InvalidAccountType"
	KindInvalidCategoryType        ErrorKind = "InvalidCategoryType"
	KindInvalidCurrency            ErrorKind = "InvalidCurrency"
	KindInvalidAccountClassBalance ErrorKind = "InvalidAccountClassBalance"
	KindInvalidBalanceCurrency     ErrorKind = "InvalidBalanceCurrency"
	KindMissingExchangeRate        ErrorKind = "MissingExchangeRate"
	KindMissingLineItem            ErrorKind = "MissingLineItem"
	KindPostedTransaction          ErrorKind = "PostedTransaction"
	KindMainAccount                ErrorKind = "MainAccount"
	KindLineItemAccount            ErrorKind = "LineItemAccount"
	KindVatCharge                  ErrorKind = "VatCharge"
	KindMissingMainAccountAmount   ErrorKind = "MissingMainAccountAmount"
	KindMultipleVat                ErrorKind = "MultipleVatError"
	KindUnassignableTransaction    ErrorKind = "UnassignableTransaction"
	KindUnclearableTransaction     ErrorKind = "UnclearableTransaction"
	KindNegativeAmount             ErrorKind = "NegativeAmount"
	KindSelfClearance              ErrorKind = "SelfClearance"
	KindUnpostedAssignment         ErrorKind = "UnpostedAssignment"
	KindInvalidClearanceAccount    ErrorKind = "InvalidClearanceAccount"
	KindInvalidClearanceCurrency   ErrorKind = "InvalidClearanceCurrency"
	KindInvalidClearanceEntry      ErrorKind = "InvalidClearanceEntry"
	KindInsufficientBalance        ErrorKind = "InsufficientBalance"
	KindOverClearance              ErrorKind = "OverClearance"
	KindMissingForexAccount        ErrorKind = "MissingForexAccount"
	KindMixedAssignment            ErrorKind = "MixedAssignment"
	KindInvalidTransaction         ErrorKind = "InvalidTransaction"
	KindHangingTransactions        ErrorKind = "HangingTransactions"
)

// Error is a ledger rule violation. Message is meant for end users verbatim.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "accounting: " + string(e.Kind)
	}
	return e.Message
}

// Is matches any Error of the same kind, so the Err* values below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a ledger rule violation, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var (
	ErrMissingAccountType         = &Error{Kind: KindMissingAccountType}
	ErrMissingVatAccount          = &Error{Kind: KindMissingVatAccount}
	ErrInvalidAccountType         = &Error{Kind: KindInvalidAccountType}
	ErrInvalidCategoryType        = &Error{Kind: KindInvalidCategoryType}
	ErrInvalidCurrency            = &Error{Kind: KindInvalidCurrency}
	ErrInvalidAccountClassBalance = &Error{Kind: KindInvalidAccountClassBalance}
	ErrInvalidBalanceCurrency     = &Error{Kind: KindInvalidBalanceCurrency}
	ErrMissingExchangeRate        = &Error{Kind: KindMissingExchangeRate}
	ErrMissingLineItem            = &Error{Kind: KindMissingLineItem}
	ErrPostedTransaction          = &Error{Kind: KindPostedTransaction}
	ErrMainAccount                = &Error{Kind: KindMainAccount}
	ErrLineItemAccount            = &Error{Kind: KindLineItemAccount}
	ErrVatCharge                  = &Error{Kind: KindVatCharge}
	ErrMissingMainAccountAmount   = &Error{Kind: KindMissingMainAccountAmount}
	ErrMultipleVat                = &Error{Kind: KindMultipleVat}
	ErrUnassignableTransaction    = &Error{Kind: KindUnassignableTransaction}
	ErrUnclearableTransaction     = &Error{Kind: KindUnclearableTransaction}
	ErrNegativeAmount             = &Error{Kind: KindNegativeAmount}
	ErrSelfClearance              = &Error{Kind: KindSelfClearance}
	ErrUnpostedAssignment         = &Error{Kind: KindUnpostedAssignment}
	ErrInvalidClearanceAccount    = &Error{Kind: KindInvalidClearanceAccount}
	ErrInvalidClearanceCurrency   = &Error{Kind: KindInvalidClearanceCurrency}
	ErrInvalidClearanceEntry      = &Error{Kind: KindInvalidClearanceEntry}
	ErrInsufficientBalance        = &Error{Kind: KindInsufficientBalance}
	ErrOverClearance              = &Error{Kind: KindOverClearance}
	ErrMissingForexAccount        = &Error{Kind: KindMissingForexAccount}
	ErrMixedAssignment            = &Error{Kind: KindMixedAssignment}
	ErrInvalidTransaction         = &Error{Kind: KindInvalidTransaction}
	ErrHangingTransactions        = &Error{Kind: KindHangingTransactions}
)

var (
	// ErrNotFound indicates a missing record within the entity.
	ErrNotFound = fmt.Errorf("accounting: record %w", shared.ErrNotFound)
	// ErrPeriodClosed blocks writes dated inside a closed reporting period.
	ErrPeriodClosed = errors.New("accounting: reporting period is closed")
	// ErrInvalidPeriodTransition indicates a status regression or skip.
	ErrInvalidPeriodTransition = shared.ErrInvalidPeriodTransition
	// ErrUnbalancedPosting is an internal fault: a posting produced unequal sides.
	ErrUnbalancedPosting = errors.New("accounting: posting debits and credits differ")
	// ErrAccountDeleted rejects postings to a soft deleted account.
	ErrAccountDeleted = errors.New("accounting: account is deleted")
	// ErrPeriodChange rejects moving a draft into another reporting period.
	ErrPeriodChange = errors.New("accounting: transaction date cannot move to another reporting period")
	// ErrCurrencyInUse rejects a currency change on an account with ledger history.
	ErrCurrencyInUse = errors.New("accounting: account currency cannot change once it has postings or balances")
	// ErrEntityRequired indicates a scope without an entity.
	ErrEntityRequired = errors.New("accounting: entity required")
	// ErrLedgerTampered indicates a broken ledger hash chain.
	ErrLedgerTampered = errors.New("accounting: ledger hash chain broken")
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func missingAccountType() error {
	return newError(KindMissingAccountType, "Account type is Required")
}

func invalidCategoryType(accountLabel, categoryLabel string) error {
	return newError(KindInvalidCategoryType, "Cannot assign %s Account to %s Category", accountLabel, categoryLabel)
}

func hangingTransactions() error {
	return newError(KindHangingTransactions, "Account cannot be deleted because it has existing Transactions/Balances in the current Reporting Period")
}

func missingVatAccount(rate decimal.Decimal) error {
	return newError(KindMissingVatAccount, "%s%% VAT requires a Vat Account", rate.String())
}

func invalidVatAccountType(label string) error {
	return accountTypeError("Vat Account", label)
}

func accountTypeError(role, label string) error {
	return newError(KindInvalidAccountType, "%s must be of Type %s", role, label)
}

func invalidCurrency(label string) error {
	return newError(KindInvalidCurrency, "%s Accounts must be denominated in the Entity reporting currency", label)
}

func invalidAccountClassBalance() error {
	return newError(KindInvalidAccountClassBalance, "Income Statement Accounts cannot have Opening Balances")
}

func invalidBalanceCurrency() error {
	return newError(KindInvalidBalanceCurrency, "Opening Balance Currency must be the same as the Account Currency for foreign currency Accounts")
}

func missingExchangeRate(code string) error {
	return newError(KindMissingExchangeRate, "No Exchange Rate is available for %s on the Transaction date", code)
}

func missingLineItem() error {
	return newError(KindMissingLineItem, "A Transaction must have at least one LineItem to be posted")
}

func postedTransaction(action string) error {
	return newError(KindPostedTransaction, "Cannot %s a posted Transaction", action)
}

func mainAccountError(txLabel, accountLabel string) error {
	return newError(KindMainAccount, "%s Main Account must be of type %s", txLabel, accountLabel)
}

func lineItemAccountError(txLabel string, labels []string) error {
	return newError(KindLineItemAccount, "%s LineItem Account must be of type %s", txLabel, strings.Join(labels, ", "))
}

func vatCharge(txLabel string) error {
	return newError(KindVatCharge, "%s LineItems cannot be Charged VAT", txLabel)
}

func missingMainAccountAmount(debits, credits decimal.Decimal) error {
	return newError(KindMissingMainAccountAmount, "Compound Journal Entry debits (%s) must equal credits (%s) including the Main Account Amount", debits.String(), credits.String())
}

func multipleVat() error {
	return newError(KindMultipleVat, "Compound Journal Entry LineItems cannot carry VAT")
}

func unassignableTransaction(txLabel string, allowed []string) error {
	return newError(KindUnassignableTransaction, "%s Transaction cannot have assignments. Assignment Transaction must be one of: %s", txLabel, strings.Join(allowed, ", "))
}

func unclearableTransaction(txLabel string, allowed []string) error {
	return newError(KindUnclearableTransaction, "%s Transaction cannot be cleared. Transaction to be cleared must be one of: %s", txLabel, strings.Join(allowed, ", "))
}

func negativeAmount(subject string) error {
	return newError(KindNegativeAmount, "%s Amount cannot be negative", subject)
}

func negativeQuantity() error {
	return newError(KindNegativeAmount, "LineItem Quantity cannot be negative")
}

func selfClearance() error {
	return newError(KindSelfClearance, "Transaction cannot clear itself")
}

func unpostedAssignment() error {
	return newError(KindUnpostedAssignment, "An unposted Transaction cannot be Assigned or Cleared")
}

func invalidClearanceAccount() error {
	return newError(KindInvalidClearanceAccount, "Assignment and Clearance Main Account must be the same")
}

func invalidClearanceCurrency() error {
	return newError(KindInvalidClearanceCurrency, "Assignment and Clearance Currency must be the same")
}

func invalidClearanceEntry() error {
	return newError(KindInvalidClearanceEntry, "Transaction Entry increases the Main Account outstanding balance instead of reducing it")
}

func insufficientBalance(txLabel string, amount decimal.Decimal, clearedLabel string) error {
	return newError(KindInsufficientBalance, "%s Transaction does not have sufficient balance to clear %s of the %s", txLabel, amount.String(), clearedLabel)
}

func overClearance(clearedLabel string, amount decimal.Decimal) error {
	return newError(KindOverClearance, "%s Transaction amount remaining to be cleared is less than %s", clearedLabel, amount.String())
}

func missingForexAccount() error {
	return newError(KindMissingForexAccount, "A Forex Differences Account is required when the Assignment and Clearance exchange rates differ")
}

func mixedAssignment(previous, attempted string) error {
	return newError(KindMixedAssignment, "A Transaction that has been %s cannot be %s", previous, attempted)
}

func invalidTransaction() error {
	return newError(KindInvalidTransaction, "Compound Journal Entries cannot be used in Assignments")
}
