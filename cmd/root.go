package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ir-radar/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ir-radar",
	Short: "IR outreach receptiveness radar",
	Long:  "Ingests company news, classifies it for investor-relations pain via tiered Claude models, and ranks the watchlist by outreach receptiveness.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
