package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopbot/internal/config"
	"shopbot/internal/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shopbot",
	Short: "Telegram shop bot with Stripe payments",
	Long: `shopbot sells catalog products through a Telegram bot, takes payment
through Stripe Checkout and keeps the order lifecycle in PostgreSQL.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		log, err = logger.NewLogger(cfg.App)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refundCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(simulateCmd)

	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		if err != errSilentFailure {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}
