package accounting

// TypeDescriptor captures what a transaction type allows. A nil MainAccountType
// or LineAccountTypes means any account type is accepted.
type TypeDescriptor struct {
	Type             TransactionType
	Credited         bool
	CreditOverride   bool
	MainAccountType  *AccountType
	LineAccountTypes []AccountType
	AllowVat         bool
	Assignable       bool
	Clearable        bool
}

func accountType(t AccountType) *AccountType { return &t }

var descriptors = map[TransactionType]TypeDescriptor{
	TransactionTypeCashSale: {
		Type:             TransactionTypeCashSale,
		MainAccountType:  accountType(AccountTypeBank),
		LineAccountTypes: []AccountType{AccountTypeOperatingRevenue},
		AllowVat:         true,
	},
	TransactionTypeClientInvoice: {
		Type:             TransactionTypeClientInvoice,
		MainAccountType:  accountType(AccountTypeReceivable),
		LineAccountTypes: []AccountType{AccountTypeOperatingRevenue},
		AllowVat:         true,
		Clearable:        true,
	},
	TransactionTypeCreditNote: {
		Type:             TransactionTypeCreditNote,
		Credited:         true,
		MainAccountType:  accountType(AccountTypeReceivable),
		LineAccountTypes: []AccountType{AccountTypeOperatingRevenue},
		AllowVat:         true,
		Assignable:       true,
	},
	TransactionTypeClientReceipt: {
		Type:             TransactionTypeClientReceipt,
		Credited:         true,
		MainAccountType:  accountType(AccountTypeReceivable),
		LineAccountTypes: []AccountType{AccountTypeBank},
		Assignable:       true,
	},
	TransactionTypeCashPurchase: {
		Type:             TransactionTypeCashPurchase,
		Credited:         true,
		MainAccountType:  accountType(AccountTypeBank),
		LineAccountTypes: Purchasables,
		AllowVat:         true,
	},
	TransactionTypeSupplierBill: {
		Type:             TransactionTypeSupplierBill,
		Credited:         true,
		MainAccountType:  accountType(AccountTypePayable),
		LineAccountTypes: Purchasables,
		AllowVat:         true,
		Clearable:        true,
	},
	TransactionTypeDebitNote: {
		Type:             TransactionTypeDebitNote,
		MainAccountType:  accountType(AccountTypePayable),
		LineAccountTypes: Purchasables,
		AllowVat:         true,
		Assignable:       true,
	},
	TransactionTypePayment: {
		Type:             TransactionTypePayment,
		MainAccountType:  accountType(AccountTypePayable),
		LineAccountTypes: []AccountType{AccountTypeBank},
		Assignable:       true,
	},
	TransactionTypeContraEntry: {
		Type:             TransactionTypeContraEntry,
		MainAccountType:  accountType(AccountTypeBank),
		LineAccountTypes: []AccountType{AccountTypeBank},
	},
	TransactionTypeJournalEntry: {
		Type:           TransactionTypeJournalEntry,
		Credited:       true,
		CreditOverride: true,
		AllowVat:       true,
		Assignable:     true,
		Clearable:      true,
	},
}

// TransactionTypes lists the ten transaction types in prefix order.
var TransactionTypes = []TransactionType{
	TransactionTypeCashSale,
	TransactionTypeClientInvoice,
	TransactionTypeCreditNote,
	TransactionTypeClientReceipt,
	TransactionTypeCashPurchase,
	TransactionTypeSupplierBill,
	TransactionTypeDebitNote,
	TransactionTypePayment,
	TransactionTypeContraEntry,
	TransactionTypeJournalEntry,
}

// Assignables are the types that may settle other transactions.
var Assignables = []TransactionType{
	TransactionTypeClientReceipt,
	TransactionTypeCreditNote,
	TransactionTypeDebitNote,
	TransactionTypePayment,
	TransactionTypeJournalEntry,
}

// Clearables are the types that may be settled.
var Clearables = []TransactionType{
	TransactionTypeClientInvoice,
	TransactionTypeSupplierBill,
	TransactionTypeJournalEntry,
}

// Describe returns the descriptor for t.
func Describe(t TransactionType) (TypeDescriptor, bool) {
	d, ok := descriptors[t]
	return d, ok
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	_, ok := descriptors[t]
	return ok
}

// IsAssignable reports whether t may settle other transactions.
func (t TransactionType) IsAssignable() bool {
	return descriptors[t].Assignable
}

// IsClearable reports whether t may be settled.
func (t TransactionType) IsClearable() bool {
	return descriptors[t].Clearable
}

// AcceptsLine reports whether a line item account of type at is allowed.
func (d TypeDescriptor) AcceptsLine(at AccountType) bool {
	if d.LineAccountTypes == nil {
		return true
	}
	return containsType(d.LineAccountTypes, at)
}

// AcceptsMain reports whether a main account of type at is allowed.
func (d TypeDescriptor) AcceptsMain(at AccountType) bool {
	return d.MainAccountType == nil || *d.MainAccountType == at
}
