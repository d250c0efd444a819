package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shoreline-data/beachsync/internal/config"
	"github.com/shoreline-data/beachsync/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "beachsync",
	Short: "Beach data collection pipeline",
	Long:  "Queries OpenStreetMap for beach points of interest per coastal region, cleans and enriches them, and upserts the results into a document store.",
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

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
