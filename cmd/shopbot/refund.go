package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopbot/internal/config"
	"shopbot/internal/domain"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/infrastructure/telegram"
	"shopbot/internal/service"
)

// errSilentFailure makes the process exit 1 after the command already
// printed its own result.
var errSilentFailure = errors.New("command failed")

var refundJSON bool

var refundCmd = &cobra.Command{
	Use:   "refund <orderId|externalId>",
	Short: "Refund a paid order",
	Long: `Refund a paid order in full through Stripe and mark it refunded.

The order is looked up by numeric id first, then by external id. Repeating
the command for the same order never refunds twice.

Examples:
  shopbot refund 42
  shopbot refund 3f1c9a1e-8a4b-4f37-9a62-0c5c1f4a7e11 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRefund,
}

func init() {
	refundCmd.Flags().BoolVar(&refundJSON, "json", false, "print the result as JSON")
}

func runRefund(cmd *cobra.Command, args []string) error {
	if err := cfg.Require(config.NeedDatabase, config.NeedStripeKey); err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, payment.NewStripeGateway(cfg.Stripe), refundMessenger())
	if err != nil {
		return err
	}
	defer a.Close()

	var result domain.RefundResult
	order, err := a.orders.Lookup(ctx, args[0])
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		result = domain.RefundFailed(domain.ErrOrderNotFound)
	case err != nil:
		return err
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "Refunding order %d (%s, %s, %s)\n",
			order.ID, order.ExternalID, order.Status, service.FormatAmount(order.Amount, order.Currency))
		result = a.refunds.CreateRefund(ctx, order.ID)
	}

	if err := printRefundResult(cmd, result); err != nil {
		return err
	}
	if !result.Success {
		return errSilentFailure
	}
	return nil
}

func printRefundResult(cmd *cobra.Command, result domain.RefundResult) error {
	out := cmd.OutOrStdout()
	if refundJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if result.Success {
		fmt.Fprintf(out, "✅ Refund created: %s\n", result.RefundID)
		return nil
	}
	fmt.Fprintf(out, "❌ Refund failed: %s\n", result.Error)
	switch {
	case result.RefundID != "":
		fmt.Fprintf(out, "   Stripe refund %s exists; the order will be updated by the charge.refunded webhook\n", result.RefundID)
	case !service.IsRefundFinal(result):
		fmt.Fprintln(out, "   Stripe was not reached; retrying is safe")
	case result.Kind == domain.KindUpstreamFailure:
		fmt.Fprintln(out, "   Stripe replays this answer for the same order for 24 hours")
	}
	return nil
}

// refundMessenger returns the bot when it is configured and reachable; the
// refund itself never depends on it.
func refundMessenger() service.Messenger {
	if cfg.Bot.Token == "" {
		return unavailableMessenger{}
	}
	tg, err := telegram.NewClient(cfg.Bot.Token, log.Named("telegram"))
	if err != nil {
		log.Warn("telegram unavailable, refund notification will be skipped", zap.Error(err))
		return unavailableMessenger{}
	}
	return tg
}

type unavailableMessenger struct{}

func (unavailableMessenger) SendMessage(context.Context, int64, string) (int, error) {
	return 0, errors.New("telegram bot not configured")
}
