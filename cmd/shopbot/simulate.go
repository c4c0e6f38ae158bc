package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shopbot/internal/config"
	"shopbot/internal/domain"
	"shopbot/internal/handler"
	"shopbot/internal/infrastructure/payment"
	"shopbot/internal/webhook"
	"shopbot/internal/worker"
)

const simulationSecret = "whsec_simulation"

var (
	simulateOrders int
	simulateSeed   uint64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive orders through the lifecycle against an in-memory processor",
	Long: `Create orders in the configured database and play processor events
against them: payments, duplicate and lost webhooks, expiries and refunds.
Webhooks go through the real HTTP handler with signed payloads; lost ones
are recovered by a reconciliation pass. Nothing is sent to Stripe or Telegram.`,
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateOrders, "orders", "n", 20, "number of orders to simulate")
	simulateCmd.Flags().Uint64Var(&simulateSeed, "seed", 1, "random seed")
}

// consoleMessenger prints notifications instead of sending them.
type consoleMessenger struct {
	out  io.Writer
	next atomic.Int64
}

func (m *consoleMessenger) SendMessage(_ context.Context, chatID int64, text string) (int, error) {
	fmt.Fprintf(m.out, "    [chat %d] %q\n", chatID, text)
	return int(m.next.Add(1)), nil
}

type simulation struct {
	app      *app
	fake     *payment.FakeGateway
	endpoint http.Handler
	out      io.Writer
	events   int
}

func runSimulate(cmd *cobra.Command, args []string) error {
	if err := cfg.Require(config.NeedDatabase); err != nil {
		return err
	}
	gin.SetMode(gin.TestMode)
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	fake := payment.NewFakeGateway(simulationSecret)
	a, err := newApp(ctx, cfg, fake, &consoleMessenger{out: out})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.db.RunMigrations(); err != nil {
		return err
	}

	events := webhook.NewRouter(a.orders, a.refunds, log.Named("webhook"))
	sim := &simulation{
		app:  a,
		fake: fake,
		endpoint: handler.NewRouter(cfg.HTTP,
			handler.NewWebhookHandler(fake, events, log.Named("webhook")),
			handler.NewHealthHandler(a.db),
			log.Named("http")),
		out: out,
	}

	rng := rand.New(rand.NewPCG(simulateSeed, simulateSeed))
	products := a.catalog.Products()
	var created []*domain.Order

	fmt.Fprintf(out, "--- STARTING SIMULATION (%d ORDERS) ---\n", simulateOrders)
	for i := 0; i < simulateOrders; i++ {
		product := products[rng.IntN(len(products))]
		co, err := a.checkouts.Initiate(ctx, int64(1000+i), int64(5000+i), product.ID)
		if err != nil {
			fmt.Fprintf(out, "[%d] checkout failed: %v\n", i+1, err)
			continue
		}
		order := co.Order
		created = append(created, order)
		fmt.Fprintf(out, "[%d] order %d %s (%s)\n", i+1, order.ID, order.ProductName, order.CheckoutSessionID)

		switch roll := rng.IntN(10); {
		case roll < 4:
			fmt.Fprintln(out, "    customer paid")
			sim.complete(ctx, order, 1)
		case roll < 6:
			fmt.Fprintln(out, "    customer paid, processor redelivered the webhook")
			sim.complete(ctx, order, 2)
		case roll < 8:
			fmt.Fprintln(out, "    customer paid, webhook lost")
			fake.CompleteSession(order.CheckoutSessionID)
		default:
			fmt.Fprintln(out, "    session expired")
			fake.ExpireSession(order.CheckoutSessionID)
			sim.deliver(ctx, "checkout.session.expired", map[string]any{
				"id": order.CheckoutSessionID, "object": "checkout.session", "status": "expired",
			})
		}
	}

	fmt.Fprintln(out, "--- RECONCILING LOST WEBHOOKS ---")
	reconciler := worker.NewReconciliationWorker(a.orderRepo, a.orders, fake, time.Minute, 0, len(created)+1, log.Named("reconcile"))
	changed, err := reconciler.Process(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "reconciled %d orders\n", changed)

	fmt.Fprintln(out, "--- REFUNDS ---")
	refunded := 0
	for _, order := range created {
		current, err := a.orderRepo.FindById(ctx, order.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != domain.OrderPaid || refunded >= 2 {
			continue
		}
		refunded++
		first := a.refunds.CreateRefund(ctx, current.ID)
		second := a.refunds.CreateRefund(ctx, current.ID)
		fmt.Fprintf(out, "order %d: first=%+v second=%+v\n", current.ID, first, second)

		// the processor's own notification arrives afterwards and must be a no-op
		sim.deliver(ctx, "charge.refunded", map[string]any{
			"id": "ch_sim", "object": "charge", "payment_intent": current.PaymentIntentID, "refunded": true,
			"refunds": map[string]any{"object": "list", "data": []any{map[string]any{"id": first.RefundID, "object": "refund"}}},
		})
	}

	fmt.Fprintln(out, "--- FINAL STATE ---")
	counts := map[domain.OrderStatus]int{}
	for _, order := range created {
		current, err := a.orderRepo.FindById(ctx, order.ID)
		if err != nil {
			return err
		}
		counts[current.Status]++
		fmt.Fprintf(out, "order %d: %s pi=%q refund=%q\n", current.ID, current.Status, current.PaymentIntentID, current.RefundID)
	}
	fmt.Fprintf(out, "pending=%d paid=%d failed=%d refunded=%d webhooks=%d processor_refund_calls=%d\n",
		counts[domain.OrderPending], counts[domain.OrderPaid], counts[domain.OrderFailed], counts[domain.OrderRefunded],
		sim.events, fake.RefundCalls())
	return nil
}

func (s *simulation) complete(ctx context.Context, order *domain.Order, deliveries int) {
	pi := s.fake.CompleteSession(order.CheckoutSessionID)
	for i := 0; i < deliveries; i++ {
		s.deliver(ctx, "checkout.session.completed", map[string]any{
			"id": order.CheckoutSessionID, "object": "checkout.session",
			"status": "complete", "payment_status": "paid", "payment_intent": pi,
		})
	}
}

// deliver posts a signed event to the webhook endpoint the way the processor would.
func (s *simulation) deliver(ctx context.Context, eventType string, object map[string]any) {
	s.events++
	payload, err := json.Marshal(map[string]any{
		"id":          fmt.Sprintf("evt_sim_%d", s.events),
		"object":      "event",
		"type":        eventType,
		"api_version": "2023-10-16",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		log.Error("failed to encode simulated event", zap.Error(err))
		return
	}

	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload)).WithContext(ctx)
	req.Header.Set("Stripe-Signature", s.fake.Sign(payload))
	w := httptest.NewRecorder()
	s.endpoint.ServeHTTP(w, req)
	fmt.Fprintf(s.out, "    webhook %s -> %d\n", eventType, w.Code)
}
