package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/monitoring"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run store migrations",
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
		fmt.Println("migrations applied")
		return nil
	},
}

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all signals and articles, keeping the watchlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !clearYes {
			fmt.Print("delete ALL signals and articles? [y/N] ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(answer)) != "y" {
				fmt.Println("aborted")
				return nil
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		signals, articles, err := st.ClearSignalsAndArticles(ctx)
		if err != nil {
			return eris.Wrap(err, "clear signals and articles")
		}

		zap.L().Info("cleared",
			zap.Int64("signals", signals),
			zap.Int64("articles", articles),
		)
		fmt.Printf("deleted %d signals and %d articles\n", signals, articles)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a system health snapshot",
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

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(statusCmd)
}
