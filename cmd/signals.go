package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var hotLimit int

var hotCmd = &cobra.Command{
	Use:   "hot",
	Short: "Show the highest-pain signals across the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		signals, err := st.HotSignals(ctx, hotLimit)
		if err != nil {
			return eris.Wrap(err, "hot signals")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PAIN\tTYPE\tCOMPANY\tSUMMARY")
		for _, sig := range signals {
			name := sig.CompanyID
			if company, err := st.GetCompany(ctx, sig.CompanyID); err == nil {
				name = company.DisplayName()
			}
			fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n",
				sig.PainScore, sig.SignalType, name, truncate(sig.Summary, 70))
		}
		return w.Flush()
	},
}

func init() {
	hotCmd.Flags().IntVar(&hotLimit, "limit", 20, "maximum signals to show")
	rootCmd.AddCommand(hotCmd)
}
