package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderFailed   OrderStatus = "failed"
	OrderRefunded OrderStatus = "refunded"
)

// transitions lists the only edges the lifecycle may take.
var transitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed},
	OrderPaid:    {OrderRefunded},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderFailed, OrderRefunded:
		return true
	}
	return false
}

// Order is a snapshot of one checkout attempt. Product fields are copied
// from the catalog at creation time and never change afterwards.
type Order struct {
	ID                int64
	ExternalID        string
	UserID            int64
	ChatID            int64
	ProductID         int64
	ProductName       string
	Amount            int64
	Currency          string
	CheckoutSessionID string
	PaymentIntentID   string
	Status            OrderStatus
	RefundID          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (o *Order) HasPaymentIntent() bool {
	return o.PaymentIntentID != ""
}

// OrderRefKind selects which processor identifier an OrderRef carries.
type OrderRefKind int

const (
	RefCheckoutSession OrderRefKind = iota
	RefPaymentIntent
)

func (k OrderRefKind) String() string {
	if k == RefPaymentIntent {
		return "payment_intent"
	}
	return "checkout_session"
}

// OrderRef identifies an order by one of the processor-side ids.
type OrderRef struct {
	Kind  OrderRefKind
	Value string
}

func ByCheckoutSession(id string) OrderRef {
	return OrderRef{Kind: RefCheckoutSession, Value: id}
}

func ByPaymentIntent(id string) OrderRef {
	return OrderRef{Kind: RefPaymentIntent, Value: id}
}
