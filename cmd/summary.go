package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ir-radar/internal/model"
	"github.com/sells-group/ir-radar/internal/pipeline"
)

var (
	summaryDays          int
	summaryCompanyIDs    []string
	summaryHideContacted int
	summaryHideSnoozed   int
	summaryXLSXPath      string
)

// summaryRow is one company's pain summary joined with its market context.
type summaryRow struct {
	model.CompanyPainSummary
	Urgency model.UrgencyTier   `json:"urgency"`
	CapTier model.MarketCapTier `json:"cap_tier"`
	IRStage model.IRCycleStage  `json:"ir_stage"`
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Rank the watchlist by IR pain",
	Long:  "Aggregates in-window signals per company and ranks by max pain, with urgency, market-cap tier, and IR-cycle stage from market data.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summaries, err := env.Aggregator.GetPainSummary(ctx, pipeline.SummaryFilter{
			Days:              summaryDays,
			CompanyIDs:        summaryCompanyIDs,
			HideContactedDays: summaryHideContacted,
			HideSnoozedDays:   summaryHideSnoozed,
		})
		if err != nil {
			return eris.Wrap(err, "pain summary")
		}

		rows := enrichSummaries(ctx, env, summaries)

		if summaryXLSXPath != "" {
			if err := writeSummaryXLSX(rows, summaryXLSXPath); err != nil {
				return err
			}
			fmt.Printf("wrote %d rows to %s\n", len(rows), summaryXLSXPath)
			return nil
		}

		printSummaryTable(rows)
		return nil
	},
}

// enrichSummaries joins each pain summary with financials-derived tiers.
// Companies without financials get unknown tiers, never an error.
func enrichSummaries(ctx context.Context, env *appEnv, summaries []model.CompanyPainSummary) []summaryRow {
	now := time.Now().UTC()
	rows := make([]summaryRow, len(summaries))
	for i, s := range summaries {
		row := summaryRow{
			CompanyPainSummary: s,
			Urgency:            env.Scorer.UrgencyTier(s.MaxPainScore, s.NewestSignalAgeHours),
			CapTier:            model.CapTierUnknown,
			IRStage:            model.StageUnknown,
		}
		if fin, err := env.Store.GetFinancials(ctx, s.CompanyID); err == nil && fin != nil {
			row.Urgency = env.Scorer.EnhancedUrgency(s.MaxPainScore, s.NewestSignalAgeHours, fin.NextEarnings, now)
			row.CapTier = fin.MarketCapTier
			row.IRStage = env.Scorer.IRCycleStage(fin.LastEarnings, fin.NextEarnings, now)
		}
		rows[i] = row
	}
	return rows
}

func printSummaryTable(rows []summaryRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPANY\tTICKER\tPAIN\tSIGNALS\tAGE(H)\tURGENCY\tCAP\tIR CYCLE\tTOP SIGNAL")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%.0f\t%s\t%s\t%s\t%s\n",
			r.Name, r.Ticker, r.MaxPainScore, r.SignalCount, r.NewestSignalAgeHours,
			r.Urgency, r.CapTier, r.IRStage, truncate(r.MaxPainSummary, 60),
		)
	}
	_ = w.Flush()
}

var summaryHeader = []string{
	"Company", "Ticker", "Max Pain", "Signals", "Newest Age (h)",
	"Urgency", "Cap Tier", "IR Cycle", "Top Signal", "Talking Point",
}

func writeSummaryXLSX(rows []summaryRow, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pain Summary")
	if err != nil {
		return eris.Wrap(err, "summary: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range summaryHeader {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetString(r.Ticker)
		row.AddCell().SetFloat(r.MaxPainScore)
		row.AddCell().SetInt(r.SignalCount)
		row.AddCell().SetFloat(r.NewestSignalAgeHours)
		row.AddCell().SetString(string(r.Urgency))
		row.AddCell().SetString(string(r.CapTier))
		row.AddCell().SetString(string(r.IRStage))
		row.AddCell().SetString(r.MaxPainSummary)
		row.AddCell().SetString(firstTalkingPoint(r.Signals))
	}

	return eris.Wrap(f.Save(path), "summary: save xlsx")
}

func firstTalkingPoint(signals []model.Signal) string {
	for _, sig := range signals {
		if sig.TalkingPoint != nil {
			return *sig.TalkingPoint
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	summaryCmd.Flags().IntVar(&summaryDays, "days", 7, "lookback window in days")
	summaryCmd.Flags().StringSliceVar(&summaryCompanyIDs, "company", nil, "limit to specific company IDs (repeatable)")
	summaryCmd.Flags().IntVar(&summaryHideContacted, "hide-contacted", 0, "hide companies contacted within N days")
	summaryCmd.Flags().IntVar(&summaryHideSnoozed, "hide-snoozed", 0, "hide companies snoozed within N days")
	summaryCmd.Flags().StringVar(&summaryXLSXPath, "xlsx", "", "write the summary to an xlsx file instead of stdout")
	rootCmd.AddCommand(summaryCmd)
}
