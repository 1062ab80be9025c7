package accounting

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// Statement section names.
const (
	SectionAssets         = "ASSETS"
	SectionLiabilities    = "LIABILITIES"
	SectionEquity         = "EQUITY"
	SectionReconciliation = "RECONCILIATION"

	SectionOperatingRevenues    = "OPERATING_REVENUES"
	SectionNonOperatingRevenues = "NON_OPERATING_REVENUES"
	SectionOperatingExpenses    = "OPERATING_EXPENSES"
	SectionNonOperatingExpenses = "NON_OPERATING_EXPENSES"
)

// Settings is the ledger configuration surface: labels, code bases, forex scale,
// single currency account types and statement groupings.
type Settings struct {
	ForexScale        int32
	AccountLabels     map[AccountType]string
	AccountCodes      map[AccountType]int
	TransactionLabels map[TransactionType]string
	SingleCurrency    []AccountType
	BalanceSheet      map[string][]AccountType
	IncomeStatement   map[string][]AccountType
}

var transactionNames = map[TransactionType]string{
	TransactionTypeCashSale:      "CASH_SALE",
	TransactionTypeClientInvoice: "CLIENT_INVOICE",
	TransactionTypeCreditNote:    "CREDIT_NOTE",
	TransactionTypeClientReceipt: "CLIENT_RECEIPT",
	TransactionTypeCashPurchase:  "CASH_PURCHASE",
	TransactionTypeSupplierBill:  "SUPPLIER_BILL",
	TransactionTypeDebitNote:     "DEBIT_NOTE",
	TransactionTypePayment:       "SUPPLIER_PAYMENT",
	TransactionTypeContraEntry:   "CONTRA_ENTRY",
	TransactionTypeJournalEntry:  "JOURNAL_ENTRY",
}

var defaultCodes = map[AccountType]int{
	AccountTypeNonCurrentAsset:     0,
	AccountTypeContraAsset:         100,
	AccountTypeInventory:           200,
	AccountTypeBank:                300,
	AccountTypeCurrentAsset:        400,
	AccountTypeReceivable:          500,
	AccountTypeNonCurrentLiability: 1000,
	AccountTypeControl:             1100,
	AccountTypeCurrentLiability:    1200,
	AccountTypePayable:             1300,
	AccountTypeEquity:              2000,
	AccountTypeOperatingRevenue:    3000,
	AccountTypeOperatingExpense:    4000,
	AccountTypeNonOperatingRevenue: 5000,
	AccountTypeDirectExpense:       6000,
	AccountTypeOverheadExpense:     7000,
	AccountTypeOtherExpense:        8000,
	AccountTypeReconciliation:      9000,
}

// humanize turns "NON_CURRENT_ASSET" into "Non Current Asset".
func humanize(code string) string {
	words := strings.ReplaceAll(strings.ToLower(code), "_", " ")
	return cases.Title(language.English).String(words)
}

// DefaultSettings returns the stock configuration.
func DefaultSettings() Settings {
	s := Settings{
		ForexScale:        money.DefaultScale,
		AccountLabels:     make(map[AccountType]string, len(AccountTypes)),
		AccountCodes:      make(map[AccountType]int, len(defaultCodes)),
		TransactionLabels: make(map[TransactionType]string, len(transactionNames)),
		SingleCurrency: []AccountType{
			AccountTypeContraAsset,
			AccountTypeInventory,
			AccountTypeControl,
			AccountTypeEquity,
			AccountTypeReconciliation,
		},
		BalanceSheet: map[string][]AccountType{
			SectionAssets: {
				AccountTypeNonCurrentAsset,
				AccountTypeContraAsset,
				AccountTypeInventory,
				AccountTypeBank,
				AccountTypeCurrentAsset,
				AccountTypeReceivable,
			},
			SectionLiabilities: {
				AccountTypeNonCurrentLiability,
				AccountTypeControl,
				AccountTypeCurrentLiability,
				AccountTypePayable,
			},
			SectionEquity:         {AccountTypeEquity},
			SectionReconciliation: {AccountTypeReconciliation},
		},
		IncomeStatement: map[string][]AccountType{
			SectionOperatingRevenues:    {AccountTypeOperatingRevenue},
			SectionNonOperatingRevenues: {AccountTypeNonOperatingRevenue},
			SectionOperatingExpenses:    {AccountTypeOperatingExpense},
			SectionNonOperatingExpenses: {
				AccountTypeDirectExpense,
				AccountTypeOverheadExpense,
				AccountTypeOtherExpense,
			},
		},
	}
	for _, t := range AccountTypes {
		s.AccountLabels[t] = humanize(string(t))
	}
	for t, code := range defaultCodes {
		s.AccountCodes[t] = code
	}
	for t, name := range transactionNames {
		s.TransactionLabels[t] = humanize(name)
	}
	return s
}

// AccountLabel returns the display name of an account type.
func (s Settings) AccountLabel(t AccountType) string {
	if label, ok := s.AccountLabels[t]; ok && label != "" {
		return label
	}
	return humanize(string(t))
}

// AccountLabelsOf maps a list of types to their labels.
func (s Settings) AccountLabelsOf(types []AccountType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, s.AccountLabel(t))
	}
	return out
}

// TransactionLabel returns the display name of a transaction type.
func (s Settings) TransactionLabel(t TransactionType) string {
	if label, ok := s.TransactionLabels[t]; ok && label != "" {
		return label
	}
	return string(t)
}

// TransactionLabelsOf maps a list of transaction types to their labels.
func (s Settings) TransactionLabelsOf(types []TransactionType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, s.TransactionLabel(t))
	}
	return out
}

// IsSingleCurrency reports whether accounts of type t must use the reporting currency.
func (s Settings) IsSingleCurrency(t AccountType) bool {
	return containsType(s.SingleCurrency, t)
}

// BalanceSheetTypes flattens the balance sheet sections.
func (s Settings) BalanceSheetTypes() []AccountType {
	var out []AccountType
	for _, section := range []string{SectionAssets, SectionLiabilities, SectionEquity, SectionReconciliation} {
		out = append(out, s.BalanceSheet[section]...)
	}
	return out
}

type settingsFile struct {
	ForexScale      *int32              `toml:"forex_scale"`
	Accounts        map[string]string   `toml:"accounts"`
	AccountCodes    map[string]int      `toml:"account_codes"`
	Transactions    map[string]string   `toml:"transactions"`
	SingleCurrency  []string            `toml:"single_currency"`
	BalanceSheet    map[string][]string `toml:"balance_sheet"`
	IncomeStatement map[string][]string `toml:"income_statement"`
}

// LoadSettings overlays a TOML settings file on top of DefaultSettings. An empty
// path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}
	var file settingsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Settings{}, fmt.Errorf("accounting: load settings %s: %w", path, err)
	}
	if err := s.apply(file); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ParseSettings overlays TOML text on top of DefaultSettings.
func ParseSettings(data string) (Settings, error) {
	s := DefaultSettings()
	var file settingsFile
	if _, err := toml.Decode(data, &file); err != nil {
		return Settings{}, fmt.Errorf("accounting: parse settings: %w", err)
	}
	if err := s.apply(file); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) apply(file settingsFile) error {
	if file.ForexScale != nil {
		if *file.ForexScale < 0 {
			return fmt.Errorf("accounting: forex_scale must not be negative")
		}
		s.ForexScale = *file.ForexScale
	}
	for key, label := range file.Accounts {
		t := AccountType(strings.ToUpper(key))
		if !t.Valid() {
			return fmt.Errorf("accounting: unknown account type %q", key)
		}
		s.AccountLabels[t] = label
	}
	for key, code := range file.AccountCodes {
		t := AccountType(strings.ToUpper(key))
		if !t.Valid() {
			return fmt.Errorf("accounting: unknown account type %q", key)
		}
		s.AccountCodes[t] = code
	}
	for key, label := range file.Transactions {
		t := TransactionType(strings.ToUpper(key))
		if _, ok := transactionNames[t]; !ok {
			return fmt.Errorf("accounting: unknown transaction type %q", key)
		}
		s.TransactionLabels[t] = label
	}
	if file.SingleCurrency != nil {
		types, err := parseTypes(file.SingleCurrency)
		if err != nil {
			return err
		}
		s.SingleCurrency = types
	}
	for section, raw := range file.BalanceSheet {
		types, err := parseTypes(raw)
		if err != nil {
			return err
		}
		s.BalanceSheet[strings.ToUpper(section)] = types
	}
	for section, raw := range file.IncomeStatement {
		types, err := parseTypes(raw)
		if err != nil {
			return err
		}
		s.IncomeStatement[strings.ToUpper(section)] = types
	}
	return nil
}

func parseTypes(raw []string) ([]AccountType, error) {
	out := make([]AccountType, 0, len(raw))
	for _, r := range raw {
		t := AccountType(strings.ToUpper(r))
		if !t.Valid() {
			return nil, fmt.Errorf("accounting: unknown account type %q", r)
		}
		out = append(out, t)
	}
	return out, nil
}
