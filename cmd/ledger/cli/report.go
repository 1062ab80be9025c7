package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
)

const dateLayout = "2006-01-02"

type reportFlags struct {
	entityID int64
	start    string
	end      string
}

// window parses the date flags. An end date covers the whole day.
func (f reportFlags) window() (start, end *time.Time, err error) {
	if f.start != "" {
		t, err := time.Parse(dateLayout, strings.TrimSpace(f.start))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --start %q (expected YYYY-MM-DD)", f.start)
		}
		start = &t
	}
	if f.end != "" {
		t, err := time.Parse(dateLayout, strings.TrimSpace(f.end))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --end %q (expected YYYY-MM-DD)", f.end)
		}
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		end = &t
	}
	return start, end, nil
}

func newReportCommand(e *env) *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute financial statements",
	}
	cmd.PersistentFlags().Int64Var(&flags.entityID, "entity", 0, "entity id")
	cmd.PersistentFlags().StringVar(&flags.start, "start", "", "window start YYYY-MM-DD (default: start of the fiscal year)")
	cmd.PersistentFlags().StringVar(&flags.end, "end", "", "window end YYYY-MM-DD (default: today)")

	statement := func(use, short string, build func(ctx context.Context, b *reports.Builder, scope accounting.Scope, start, end *time.Time) (any, func(io.Writer), error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := requireFlag("entity", flags.entityID); err != nil {
					return err
				}
				start, end, err := flags.window()
				if err != nil {
					return err
				}
				s, err := e.session(cmd.Context())
				if err != nil {
					return err
				}
				builder := reports.NewBuilder(s.Ledger)
				builder.WithNow(e.now)
				out, human, err := build(cmd.Context(), builder, accounting.ForEntity(flags.entityID), start, end)
				if err != nil {
					return err
				}
				return e.print(out, human)
			},
		}
	}

	cmd.AddCommand(
		statement("trial-balance", "Trial balance as at --end", func(ctx context.Context, b *reports.Builder, scope accounting.Scope, _, end *time.Time) (any, func(io.Writer), error) {
			tb, err := b.TrialBalance(ctx, scope, end)
			return tb, func(w io.Writer) { renderTrialBalance(w, tb) }, err
		}),
		statement("income", "Income statement over the window", func(ctx context.Context, b *reports.Builder, scope accounting.Scope, start, end *time.Time) (any, func(io.Writer), error) {
			is, err := b.IncomeStatement(ctx, scope, start, end)
			return is, nil, err
		}),
		statement("balance-sheet", "Balance sheet as at --end", func(ctx context.Context, b *reports.Builder, scope accounting.Scope, _, end *time.Time) (any, func(io.Writer), error) {
			bs, err := b.BalanceSheet(ctx, scope, end)
			return bs, nil, err
		}),
		statement("cash-flow", "Cash flow statement over the window", func(ctx context.Context, b *reports.Builder, scope accounting.Scope, start, end *time.Time) (any, func(io.Writer), error) {
			cf, err := b.CashFlow(ctx, scope, start, end)
			return cf, nil, err
		}),
	)
	return cmd
}

func renderTrialBalance(w io.Writer, tb reports.TrialBalance) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintf(tw, "Code\tAccount\tOpening\tDebit\tCredit\tClosing\t\n")
	for _, group := range tb.Groups {
		_, _ = fmt.Fprintf(tw, "\t%s\t\t\t\t\t\n", group.Key)
		for _, a := range group.Accounts {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
				a.Code, a.Name, a.Opening.StringFixed(2), a.Debit.StringFixed(2), a.Credit.StringFixed(2), a.Closing.StringFixed(2))
		}
	}
	_, _ = fmt.Fprintf(tw, "\tTotal\t%s\t%s\t%s\t%s\t\n",
		tb.TotalOpening.StringFixed(2), tb.TotalDebit.StringFixed(2), tb.TotalCredit.StringFixed(2), tb.TotalClosing.StringFixed(2))
	_ = tw.Flush()
	if !tb.Balanced() {
		_, _ = fmt.Fprintln(w, "warning: trial balance does not balance")
	}
}
