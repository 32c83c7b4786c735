package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCompanyIDs []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the signal pipeline over the watchlist",
	Long:  "Fetches news for every active company (or the given company IDs), classifies it for IR pain, and persists the resulting signals.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Coordinator.Run(ctx, runCompanyIDs)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.Int("companies", stats.Companies),
			zap.Int("articles_new", stats.ArticlesNew),
			zap.Int("signals_created", stats.SignalsCreated),
			zap.Int("errors", len(stats.Errors)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry companies whose last run dead-lettered",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		retried, err := env.Coordinator.RetryDeadLetters(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "retry dead letters")
		}

		zap.L().Info("retry complete", zap.Int("retried", retried))
		return nil
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&runCompanyIDs, "company", nil, "limit the run to specific company IDs (repeatable)")
	retryCmd.Flags().Int("limit", 20, "maximum dead letters to retry")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(retryCmd)
}
