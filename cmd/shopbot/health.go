package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shopbot/internal/config"
	"shopbot/internal/database"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/infrastructure/telegram"
)

const healthCheckTimeout = 10 * time.Second

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check configuration, database, Stripe and Telegram connectivity",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

type healthCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runHealth(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	checks := []healthCheck{
		{"environment", checkEnvironment},
		{"database", checkDatabase},
		{"stripe", checkStripe},
		{"telegram", checkTelegram},
	}

	healthy := true
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(cmd.Context(), healthCheckTimeout)
		detail, err := c.run(ctx)
		cancel()
		report(out, c.name, detail, err)
		if err != nil {
			healthy = false
		}
	}

	if !healthy {
		fmt.Fprintln(out, "\nSome checks failed")
		return errSilentFailure
	}
	fmt.Fprintln(out, "\nAll checks passed")
	return nil
}

func report(out io.Writer, name, detail string, err error) {
	if err != nil {
		fmt.Fprintf(out, "❌ %-12s %v\n", name, err)
		return
	}
	fmt.Fprintf(out, "✅ %-12s %s\n", name, detail)
}

func checkEnvironment(context.Context) (string, error) {
	if missing := cfg.Missing(config.AllRequirements...); len(missing) > 0 {
		return "", fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return "all required variables set", nil
}

func checkDatabase(ctx context.Context) (string, error) {
	if cfg.Database.DSN == "" {
		return "", fmt.Errorf("DATABASE_URL not set")
	}
	db, err := database.NewPostgres(ctx, cfg.Database, log.Named("database"))
	if err != nil {
		return "", err
	}
	defer db.Close()

	ok, err := db.HasTable(ctx, "orders")
	if err != nil {
		return "", fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("table orders missing, run shopbot migrate")
	}
	return "connected, orders table present", nil
}

func checkStripe(ctx context.Context) (string, error) {
	if cfg.Stripe.SecretKey == "" {
		return "", fmt.Errorf("STRIPE_SECRET_KEY not set")
	}
	if err := payment.NewStripeGateway(cfg.Stripe).Ping(ctx); err != nil {
		return "", err
	}
	return "API key accepted", nil
}

func checkTelegram(ctx context.Context) (string, error) {
	if cfg.Bot.Token == "" {
		return "", fmt.Errorf("BOT_TOKEN not set")
	}
	tg, err := telegram.NewClient(cfg.Bot.Token, log.Named("telegram"))
	if err != nil {
		return "", err
	}
	name, err := tg.Username()
	if err != nil {
		return "", err
	}
	return "@" + name, nil
}
