package accounting

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
)

// rateScale is the precision ledger rates are hashed at.
const rateScale = 8

// posting is one balanced pair before it is expanded into ledger rows. Amount is
// in the transaction currency.
type posting struct {
	Debit      int64
	Credit     int64
	Amount     decimal.Decimal
	LineItemID *int64
	VatID      *int64
}

// leg is one side of a compound journal entry.
type leg struct {
	account    int64
	amount     decimal.Decimal
	lineItemID *int64
}

// pair orders two accounts by side: the first argument takes entry.
func pair(entry EntryType, account, counter int64) (debit, credit int64) {
	if entry == EntryDebit {
		return account, counter
	}
	return counter, account
}

// buildPostings expands a transaction into balanced pairs. vats holds every Vat
// referenced by the lines.
func buildPostings(t Transaction, lines []LineItem, vats map[int64]Vat) ([]posting, error) {
	if len(lines) == 0 {
		return nil, missingLineItem()
	}
	if t.Compound {
		return compoundPostings(t, lines, vats)
	}
	main := entryFor(t.Credited)
	var out []posting
	for i := range lines {
		line := lines[i]
		net := line.Net()
		debit, credit := pair(main, t.AccountID, line.AccountID)
		out = append(out, posting{Debit: debit, Credit: credit, Amount: net, LineItemID: &line.ID})

		if line.VatID == nil {
			continue
		}
		vat, ok := vats[*line.VatID]
		if !ok {
			return nil, fmt.Errorf("accounting: vat %d not loaded", *line.VatID)
		}
		if !vat.Rate.IsPositive() {
			continue
		}
		if vat.AccountID == nil {
			return nil, missingVatAccount(vat.Rate)
		}
		charge := money.Percent(net, vat.Rate)
		if line.CompoundVat {
			debit, credit = pair(main, line.AccountID, *vat.AccountID)
		} else {
			debit, credit = pair(main, t.AccountID, *vat.AccountID)
		}
		out = append(out, posting{Debit: debit, Credit: credit, Amount: charge, LineItemID: &line.ID, VatID: &vat.ID})
	}
	return out, nil
}

// compoundPostings matches debit legs against credit legs in order, splitting
// legs as needed so every pair balances.
func compoundPostings(t Transaction, lines []LineItem, vats map[int64]Vat) ([]posting, error) {
	var debits, credits []leg
	add := func(entry EntryType, l leg) {
		if entry == EntryDebit {
			debits = append(debits, l)
		} else {
			credits = append(credits, l)
		}
	}
	add(entryFor(t.Credited), leg{account: t.AccountID, amount: t.MainAccountAmount})
	for i := range lines {
		line := lines[i]
		if line.VatID != nil && vats[*line.VatID].Rate.IsPositive() {
			return nil, multipleVat()
		}
		add(entryFor(line.Credited), leg{account: line.AccountID, amount: line.Net(), lineItemID: &line.ID})
	}
	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, l := range debits {
		totalDebit = totalDebit.Add(l.amount)
	}
	for _, l := range credits {
		totalCredit = totalCredit.Add(l.amount)
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, missingMainAccountAmount(totalDebit, totalCredit)
	}

	var out []posting
	i, j := 0, 0
	for i < len(debits) && j < len(credits) {
		d, c := &debits[i], &credits[j]
		amount := decimal.Min(d.amount, c.amount)
		if amount.IsPositive() {
			lineItem := d.lineItemID
			if lineItem == nil {
				lineItem = c.lineItemID
			}
			out = append(out, posting{Debit: d.account, Credit: c.account, Amount: amount, LineItemID: lineItem})
		}
		d.amount = d.amount.Sub(amount)
		c.amount = c.amount.Sub(amount)
		if !d.amount.IsPositive() {
			i++
		}
		if !c.amount.IsPositive() {
			j++
		}
	}
	return out, nil
}

// ledgerRows turns pairs into two rows each: the debit account's row and the
// credit account's row, each naming the other as folio.
func ledgerRows(t Transaction, rate decimal.Decimal, batch uuid.UUID, postings []posting) []Ledger {
	rows := make([]Ledger, 0, len(postings)*2)
	for _, p := range postings {
		amount := p.Amount.Mul(rate).Round(money.DefaultScale)
		base := Ledger{
			EntityID:      t.EntityID,
			TransactionID: t.ID,
			LineItemID:    p.LineItemID,
			VatID:         p.VatID,
			CurrencyID:    t.CurrencyID,
			PostingDate:   t.TransactionDate,
			Amount:        amount,
			Rate:          rate,
			BatchID:       batch,
		}
		debit, credit := base, base
		debit.PostAccountID, debit.FolioAccountID, debit.EntryType = p.Debit, p.Credit, EntryDebit
		credit.PostAccountID, credit.FolioAccountID, credit.EntryType = p.Credit, p.Debit, EntryCredit
		rows = append(rows, debit, credit)
	}
	return rows
}

func checkBalanced(rows []Ledger) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, row := range rows {
		if row.EntryType == EntryDebit {
			debit = debit.Add(row.Amount)
		} else {
			credit = credit.Add(row.Amount)
		}
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalancedPosting, debit, credit)
	}
	return nil
}

// ledgerHash chains a row to its predecessor.
func ledgerHash(prev string, row Ledger) string {
	h, _ := blake2b.New256(nil)
	line := prev + "|" +
		strconv.FormatInt(row.EntityID, 10) + "|" +
		strconv.FormatInt(row.TransactionID, 10) + "|" +
		strconv.FormatInt(row.PostAccountID, 10) + "|" +
		strconv.FormatInt(row.FolioAccountID, 10) + "|" +
		strconv.FormatInt(row.CurrencyID, 10) + "|" +
		string(row.EntryType) + "|" +
		row.Amount.StringFixed(money.DefaultScale) + "|" +
		row.Rate.StringFixed(rateScale) + "|" +
		row.PostingDate.UTC().Format("2006-01-02T15:04:05.000000Z") + "|" +
		row.BatchID.String()
	_, _ = h.Write([]byte(line))
	return hex.EncodeToString(h.Sum(nil))
}

// appendLedger hashes rows onto the entity's chain and stores them.
func (s *Service) appendLedger(ctx context.Context, tx TxRepository, entityID int64, rows []Ledger) ([]Ledger, error) {
	if err := checkBalanced(rows); err != nil {
		return nil, err
	}
	last, ok, err := tx.LastLedger(ctx, entityID)
	if err != nil {
		return nil, err
	}
	prev := ""
	if ok {
		prev = last.Hash
	}
	now := s.now()
	for i := range rows {
		rows[i].CreatedAt = now
		rows[i].Hash = ledgerHash(prev, rows[i])
		prev = rows[i].Hash
	}
	return tx.InsertLedgers(ctx, rows)
}

// post writes the ledger rows of a draft transaction and marks it posted.
func (s *Service) post(ctx context.Context, tx TxRepository, entity Entity, t Transaction) (Transaction, int, error) {
	if t.Posted {
		return Transaction{}, 0, postedTransaction("post")
	}
	if _, err := s.writablePeriod(ctx, tx, entity, t.TransactionDate); err != nil {
		return Transaction{}, 0, err
	}
	lines, err := tx.ListLineItems(ctx, entity.ID, t.ID)
	if err != nil {
		return Transaction{}, 0, err
	}
	if _, err := liveAccount(ctx, tx, entity.ID, t.AccountID); err != nil {
		return Transaction{}, 0, err
	}
	vats := map[int64]Vat{}
	for _, line := range lines {
		if _, err := liveAccount(ctx, tx, entity.ID, line.AccountID); err != nil {
			return Transaction{}, 0, err
		}
		if line.VatID == nil {
			continue
		}
		if _, ok := vats[*line.VatID]; ok {
			continue
		}
		vat, err := tx.GetVat(ctx, entity.ID, *line.VatID)
		if err != nil {
			return Transaction{}, 0, err
		}
		vats[vat.ID] = vat
	}
	postings, err := buildPostings(t, lines, vats)
	if err != nil {
		return Transaction{}, 0, err
	}
	rate, err := tx.GetExchangeRate(ctx, entity.ID, t.ExchangeRateID)
	if err != nil {
		return Transaction{}, 0, err
	}
	rows, err := s.appendLedger(ctx, tx, entity.ID, ledgerRows(t, rate.Rate, uuid.New(), postings))
	if err != nil {
		return Transaction{}, 0, err
	}
	now := s.now()
	t.Posted = true
	t.PostedAt = &now
	t.UpdatedAt = now
	if err := tx.UpdateTransaction(ctx, t); err != nil {
		return Transaction{}, 0, err
	}
	return t, len(rows), nil
}

// forexEntry returns the side of the main account in a forex difference pair.
func forexEntry(credited bool, diff decimal.Decimal) EntryType {
	if (credited && diff.IsPositive()) || (!credited && diff.IsNegative()) {
		return EntryDebit
	}
	return EntryCredit
}

// postForex recognises the realised exchange difference of an assignment between
// the assigning transaction's rate and the cleared item's rate. The pair is
// posted in the reporting currency at rate 1.
func (s *Service) postForex(ctx context.Context, tx TxRepository, entity Entity, t Transaction, a Assignment, txRate, clearedRate decimal.Decimal) (uuid.UUID, error) {
	diff := txRate.Sub(clearedRate).Round(s.settings.ForexScale)
	amount := a.Amount.Mul(diff).Abs().Round(money.DefaultScale)
	if amount.IsZero() || a.ForexAccountID == nil {
		return uuid.Nil, nil
	}
	debit, credit := pair(forexEntry(t.Credited, diff), t.AccountID, *a.ForexAccountID)
	batch := uuid.New()
	fx := Transaction{
		ID:              a.TransactionID,
		EntityID:        entity.ID,
		CurrencyID:      entity.CurrencyID,
		TransactionDate: a.AssignmentDate,
	}
	rows := ledgerRows(fx, decimal.NewFromInt(1), batch, []posting{{Debit: debit, Credit: credit, Amount: amount}})
	if _, err := s.appendLedger(ctx, tx, entity.ID, rows); err != nil {
		return uuid.Nil, err
	}
	return batch, nil
}

// reverseBatch posts the mirror image of a ledger batch.
func (s *Service) reverseBatch(ctx context.Context, tx TxRepository, entityID int64, batch uuid.UUID) error {
	rows, err := tx.ListLedgers(ctx, LedgerFilter{EntityID: entityID, BatchID: &batch})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	reversal := uuid.New()
	out := make([]Ledger, 0, len(rows))
	for _, row := range rows {
		row.ID = 0
		row.EntryType = row.EntryType.Opposite()
		row.BatchID = reversal
		row.Hash = ""
		out = append(out, row)
	}
	_, err = s.appendLedger(ctx, tx, entityID, out)
	return err
}
