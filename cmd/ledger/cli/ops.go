package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// IntegrityResult is the outcome of one entity's integrity check.
type IntegrityResult struct {
	EntityID     int64   `json:"entity_id"`
	OK           bool    `json:"ok"`
	Rows         int     `json:"rows"`
	Transactions int     `json:"transactions"`
	Unbalanced   []int64 `json:"unbalanced,omitempty"`
	BrokenAt     *int64  `json:"broken_at,omitempty"`
}

func newIntegrityCommand(e *env) *cobra.Command {
	var (
		entityID int64
		enqueue  bool
	)
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Verify balanced postings and the ledger hash chain",
		Long: `Verify that every posted transaction balances and that the ledger hash
chain is unbroken. Without --entity every entity is checked. Exits with
status 10 when an entity fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := e.session(ctx)
			if err != nil {
				return err
			}
			if enqueue {
				info, err := s.Enqueuer.EnqueueIntegrity(ctx, jobs.IntegrityPayload{EntityID: entityID})
				if err != nil {
					return err
				}
				return e.printEnqueued(info)
			}

			job := jobs.NewIntegrityJob(s.Ledger, e.logger, nil)
			reports, err := job.Run(ctx, entityID)
			if err != nil {
				return err
			}
			results := make([]IntegrityResult, 0, len(reports))
			failed := false
			for id, report := range reports {
				results = append(results, IntegrityResult{
					EntityID:     id,
					OK:           report.OK(),
					Rows:         report.Rows,
					Transactions: report.Transactions,
					Unbalanced:   report.Unbalanced,
					BrokenAt:     report.BrokenAt,
				})
				failed = failed || !report.OK()
			}
			sort.Slice(results, func(i, j int) bool { return results[i].EntityID < results[j].EntityID })
			if err := e.print(results, func(w io.Writer) { renderIntegrity(w, results) }); err != nil {
				return err
			}
			if failed {
				return ErrFindings
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&entityID, "entity", 0, "entity id (default: all entities)")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the check for the worker instead of running it")
	return cmd
}

func renderIntegrity(w io.Writer, results []IntegrityResult) {
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "FAILED"
		}
		_, _ = fmt.Fprintf(w, "entity %d: %s (%d rows, %d transactions)\n", r.EntityID, status, r.Rows, r.Transactions)
		for _, id := range r.Unbalanced {
			_, _ = fmt.Fprintf(w, "  unbalanced transaction %d\n", id)
		}
		if r.BrokenAt != nil {
			_, _ = fmt.Fprintf(w, "  hash chain broken at ledger row %d\n", *r.BrokenAt)
		}
	}
}

func newTranslateCommand(e *env) *cobra.Command {
	var (
		payload jobs.TranslatePayload
		enqueue bool
	)
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate foreign balances at the period's closing rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("entity", payload.EntityID); err != nil {
				return err
			}
			if err := requireFlag("forex-account", payload.ForexAccountID); err != nil {
				return err
			}
			if payload.Year == 0 {
				payload.Year = e.now().Year()
			}
			ctx := cmd.Context()
			s, err := e.session(ctx)
			if err != nil {
				return err
			}
			if enqueue {
				info, err := s.Enqueuer.EnqueueTranslate(ctx, payload)
				if err != nil {
					return err
				}
				return e.printEnqueued(info)
			}

			job := jobs.NewPeriodJob(s.Ledger, e.logger, nil)
			job.Locker = s.Locker
			posted, err := job.Translate(ctx, payload)
			if err != nil {
				return err
			}
			numbers := make([]string, 0, len(posted))
			for _, t := range posted {
				numbers = append(numbers, t.TransactionNo)
			}
			return e.print(numbers, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "posted %d translation journal(s)\n", len(numbers))
				for _, n := range numbers {
					_, _ = fmt.Fprintf(w, "  %s\n", n)
				}
			})
		},
	}
	cmd.Flags().Int64Var(&payload.EntityID, "entity", 0, "entity id")
	cmd.Flags().IntVar(&payload.Year, "year", 0, "reporting year (default: current year)")
	cmd.Flags().Int64Var(&payload.ForexAccountID, "forex-account", 0, "account receiving translation differences")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the translation for the worker")
	return cmd
}

// ClosedPeriod summarises a close run.
type ClosedPeriod struct {
	PeriodID int64                   `json:"period_id"`
	Year     int                     `json:"year"`
	Status   accounting.PeriodStatus `json:"status"`
}

func newCloseCommand(e *env) *cobra.Command {
	var (
		payload  jobs.ClosePayload
		retained int64
		enqueue  bool
	)
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a reporting period and carry balances forward",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("entity", payload.EntityID); err != nil {
				return err
			}
			if payload.Year == 0 {
				payload.Year = e.now().Year()
			}
			if retained > 0 {
				payload.RetainedEarningsAccountID = &retained
			}
			ctx := cmd.Context()
			s, err := e.session(ctx)
			if err != nil {
				return err
			}
			if enqueue {
				info, err := s.Enqueuer.EnqueueClose(ctx, payload)
				if err != nil {
					return err
				}
				return e.printEnqueued(info)
			}

			job := jobs.NewPeriodJob(s.Ledger, e.logger, nil)
			job.Locker = s.Locker
			period, err := job.Close(ctx, payload)
			if err != nil {
				return err
			}
			out := ClosedPeriod{PeriodID: period.ID, Year: period.CalendarYear, Status: period.Status}
			return e.print(out, func(w io.Writer) {
				_, _ = fmt.Fprintf(w, "period %d (%d) is %s\n", out.PeriodID, out.Year, out.Status)
			})
		},
	}
	cmd.Flags().Int64Var(&payload.EntityID, "entity", 0, "entity id")
	cmd.Flags().IntVar(&payload.Year, "year", 0, "reporting year (default: current year)")
	cmd.Flags().Int64Var(&retained, "retained-account", 0, "equity account receiving the year's profit")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the close for the worker")
	return cmd
}
