package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
)

// EventKind is the closed set of processor events the lifecycle reacts to.
type EventKind int

const (
	Ignored EventKind = iota
	CheckoutCompleted
	CheckoutExpired
	PaymentFailed
	ChargeRefunded
)

func (k EventKind) String() string {
	switch k {
	case CheckoutCompleted:
		return "checkout_completed"
	case CheckoutExpired:
		return "checkout_expired"
	case PaymentFailed:
		return "payment_failed"
	case ChargeRefunded:
		return "charge_refunded"
	default:
		return "ignored"
	}
}

// Event is a verified processor event reduced to the ids each kind needs.
// RefundID is the first refund on a refunded charge and may be empty.
type Event struct {
	Kind          EventKind
	ID            string
	Type          string
	Session       string
	PaymentIntent string
	Reason        string
	RefundID      string
}

var kinds = map[stripe.EventType]EventKind{
	stripe.EventTypeCheckoutSessionCompleted:   CheckoutCompleted,
	stripe.EventTypeCheckoutSessionExpired:     CheckoutExpired,
	stripe.EventTypePaymentIntentPaymentFailed: PaymentFailed,
	stripe.EventTypeChargeRefunded:             ChargeRefunded,
}

// Classify maps a verified event onto an EventKind and decodes its object.
// Unknown event types classify as Ignored without error.
func Classify(event stripe.Event) (Event, error) {
	ev := Event{ID: event.ID, Type: string(event.Type)}

	kind, ok := kinds[event.Type]
	if !ok {
		return ev, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ev, fmt.Errorf("event %s has no data object", event.ID)
	}
	raw := event.Data.Raw

	switch kind {
	case CheckoutCompleted, CheckoutExpired:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return ev, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		if sess.ID == "" {
			return ev, fmt.Errorf("event %s: checkout session without id", event.ID)
		}
		ev.Session = sess.ID
		if sess.PaymentIntent != nil {
			ev.PaymentIntent = sess.PaymentIntent.ID
		}

	case PaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(raw, &pi); err != nil {
			return ev, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		if pi.ID == "" {
			return ev, fmt.Errorf("event %s: payment intent without id", event.ID)
		}
		ev.PaymentIntent = pi.ID
		if pi.LastPaymentError != nil {
			ev.Reason = pi.LastPaymentError.Msg
		}

	case ChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(raw, &charge); err != nil {
			return ev, fmt.Errorf("failed to parse charge: %w", err)
		}
		if charge.PaymentIntent != nil {
			ev.PaymentIntent = charge.PaymentIntent.ID
		}
		if charge.Refunds != nil && len(charge.Refunds.Data) > 0 && charge.Refunds.Data[0] != nil {
			ev.RefundID = charge.Refunds.Data[0].ID
		}
	}

	ev.Kind = kind
	return ev, nil
}
