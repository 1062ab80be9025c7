package accounting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

// IntegrityReport summarises a ledger verification run.
type IntegrityReport struct {
	Rows         int
	Transactions int
	Unbalanced   []int64
	BrokenAt     *int64
}

// OK reports whether the ledger passed every check.
func (r IntegrityReport) OK() bool {
	return len(r.Unbalanced) == 0 && r.BrokenAt == nil
}

// Err returns ErrLedgerTampered describing the first failure, or nil.
func (r IntegrityReport) Err() error {
	switch {
	case r.BrokenAt != nil:
		return fmt.Errorf("%w: at ledger row %d", ErrLedgerTampered, *r.BrokenAt)
	case len(r.Unbalanced) > 0:
		return fmt.Errorf("%w: transaction %d", ErrUnbalancedPosting, r.Unbalanced[0])
	}
	return nil
}

// VerifyLedgerIntegrity recomputes the row hash chain of the entity and checks
// that every transaction's debits equal its credits.
func (s *Service) VerifyLedgerIntegrity(ctx context.Context, scope Scope) (IntegrityReport, error) {
	var report IntegrityReport
	err := s.read(ctx, scope, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.ListLedgers(ctx, LedgerFilter{EntityID: scope.EntityID})
		if err != nil {
			return err
		}
		report.Rows = len(rows)
		net := map[int64]decimal.Decimal{}
		var order []int64
		prev := ""
		for _, row := range rows {
			if report.BrokenAt == nil && ledgerHash(prev, row) != row.Hash {
				id := row.ID
				report.BrokenAt = &id
			}
			prev = row.Hash
			if _, ok := net[row.TransactionID]; !ok {
				order = append(order, row.TransactionID)
			}
			net[row.TransactionID] = net[row.TransactionID].Add(signed(row.EntryType, row.Amount))
		}
		report.Transactions = len(order)
		for _, id := range order {
			if !net[id].IsZero() {
				report.Unbalanced = append(report.Unbalanced, id)
			}
		}
		return nil
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	if !report.OK() {
		s.log().Error("ledger integrity", slog.Int64("entity_id", scope.EntityID), slog.Any("error", report.Err()))
	}
	return report, nil
}
