package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/model"
)

var financialsCmd = &cobra.Command{
	Use:   "financials",
	Short: "Manage company market data",
}

var financialsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh stale price data from the market feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		refreshed, err := env.Refresher.Refresh(ctx)
		if err != nil {
			return eris.Wrap(err, "refresh financials")
		}

		zap.L().Info("financials refreshed", zap.Int("companies", refreshed))
		return nil
	},
}

var (
	setMarketCap    float64
	setLastEarnings string
	setNextEarnings string
)

// financials set maintains the operator-entered fields the market feed
// does not carry: market cap and earnings dates.
var financialsSetCmd = &cobra.Command{
	Use:   "set <company-id>",
	Short: "Set operator-maintained fields: market cap and earnings dates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		companyID := args[0]
		record := model.FinancialSnapshot{CompanyID: companyID}
		if existing, err := env.Store.GetFinancials(ctx, companyID); err == nil && existing != nil {
			record = *existing
		}

		if cmd.Flags().Changed("market-cap") {
			record.MarketCap = setMarketCap
		}
		if setLastEarnings != "" {
			ts, err := time.Parse("2006-01-02", setLastEarnings)
			if err != nil {
				return eris.Wrap(err, "parse --last-earnings")
			}
			record.LastEarnings = &ts
		}
		if setNextEarnings != "" {
			ts, err := time.Parse("2006-01-02", setNextEarnings)
			if err != nil {
				return eris.Wrap(err, "parse --next-earnings")
			}
			record.NextEarnings = &ts
		}

		record.MarketCapTier = env.Scorer.MarketCapTier(record.MarketCap)
		record.UpdatedAt = time.Now().UTC()

		if err := env.Store.UpsertFinancials(ctx, record); err != nil {
			return eris.Wrap(err, "upsert financials")
		}

		fmt.Printf("updated financials for %s (cap tier %s)\n", companyID, record.MarketCapTier)
		return nil
	},
}

func init() {
	financialsSetCmd.Flags().Float64Var(&setMarketCap, "market-cap", 0, "market capitalization in USD")
	financialsSetCmd.Flags().StringVar(&setLastEarnings, "last-earnings", "", "last earnings date (YYYY-MM-DD)")
	financialsSetCmd.Flags().StringVar(&setNextEarnings, "next-earnings", "", "next earnings date (YYYY-MM-DD)")

	financialsCmd.AddCommand(financialsRefreshCmd)
	financialsCmd.AddCommand(financialsSetCmd)
	rootCmd.AddCommand(financialsCmd)
}
