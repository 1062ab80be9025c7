package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

func newSettingsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective ledger settings",
		Long: `Print the ledger settings after applying LEDGER_SETTINGS_FILE and
LEDGER_FOREX_SCALE. Fails when the settings file is invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := e.cfg.LedgerSettings()
			if err != nil {
				return err
			}
			return e.print(settings, func(w io.Writer) { renderSettings(w, settings) })
		},
	}
}

func renderSettings(w io.Writer, s accounting.Settings) {
	_, _ = fmt.Fprintf(w, "forex scale: %d\n\n", s.ForexScale)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Type\tLabel\tCode base\tSingle currency")
	for _, t := range accounting.AccountTypes {
		single := ""
		if s.IsSingleCurrency(t) {
			single = "yes"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", t, s.AccountLabel(t), s.AccountCodes[t], single)
	}
	_ = tw.Flush()
}
