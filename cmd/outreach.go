package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ir-radar/internal/model"
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Record and review outreach actions",
}

var outreachNote string

func recordOutreach(cmd *cobra.Command, companyID string, actionType model.OutreachType) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	action, err := st.AddOutreach(ctx, model.OutreachAction{
		CompanyID:  companyID,
		ActionType: actionType,
		Note:       outreachNote,
	})
	if err != nil {
		return eris.Wrap(err, "add outreach")
	}

	fmt.Printf("recorded %s for %s (%s)\n", action.ActionType, companyID, action.ID)
	return nil
}

var outreachContactedCmd = &cobra.Command{
	Use:   "contacted <company-id>",
	Short: "Record that the company was contacted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordOutreach(cmd, args[0], model.OutreachContacted)
	},
}

var outreachSnoozeCmd = &cobra.Command{
	Use:   "snooze <company-id>",
	Short: "Snooze a company out of summaries for a while",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return recordOutreach(cmd, args[0], model.OutreachSnoozed)
	},
}

var outreachNoteCmd = &cobra.Command{
	Use:   "note <company-id>",
	Short: "Attach a free-form note to a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if outreachNote == "" {
			return eris.New("a note requires --note text")
		}
		return recordOutreach(cmd, args[0], model.OutreachNote)
	},
}

var outreachLogLimit int

var outreachLogCmd = &cobra.Command{
	Use:   "log <company-id>",
	Short: "Show a company's outreach history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		actions, err := st.ListOutreach(ctx, args[0], outreachLogLimit)
		if err != nil {
			return eris.Wrap(err, "list outreach")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tACTION\tNOTE")
		for _, a := range actions {
			fmt.Fprintf(w, "%s\t%s\t%s\n",
				a.CreatedAt.Format("2006-01-02 15:04"), a.ActionType, a.Note)
		}
		return w.Flush()
	},
}

func init() {
	outreachContactedCmd.Flags().StringVar(&outreachNote, "note", "", "optional note")
	outreachSnoozeCmd.Flags().StringVar(&outreachNote, "note", "", "optional note")
	outreachNoteCmd.Flags().StringVar(&outreachNote, "note", "", "note text (required)")
	outreachLogCmd.Flags().IntVar(&outreachLogLimit, "limit", 20, "maximum actions to show")

	outreachCmd.AddCommand(outreachContactedCmd)
	outreachCmd.AddCommand(outreachSnoozeCmd)
	outreachCmd.AddCommand(outreachNoteCmd)
	outreachCmd.AddCommand(outreachLogCmd)
	rootCmd.AddCommand(outreachCmd)
}
