package domain

import (
	"errors"
)

// Outcome tags what a lifecycle operation did.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeError          Outcome = "error"
)

// TransitionResult is returned by every lifecycle operation instead of an error.
type TransitionResult struct {
	Outcome  Outcome
	Order    *Order
	Notified bool
	Err      error
}

func (r TransitionResult) Changed() bool {
	return r.Outcome == OutcomeApplied
}

// RefundResult is the operator-facing answer of a refund request.
type RefundResult struct {
	Success  bool      `json:"success"`
	RefundID string    `json:"refundId,omitempty"`
	Kind     ErrorKind `json:"kind,omitempty"`
	Error    string    `json:"error,omitempty"`
}

var refundMessages = map[error]string{
	ErrOrderNotFound:         "Order not found",
	ErrAlreadyRefunded:       "Order already refunded",
	ErrMissingPaymentIntent:  "Payment intent not found",
	ErrPaymentIntentNotFound: "Payment intent not found",
}

func RefundSucceeded(refundID string) RefundResult {
	return RefundResult{Success: true, RefundID: refundID}
}

func RefundFailed(err error) RefundResult {
	res := RefundResult{Kind: KindOf(err), Error: err.Error()}
	for sentinel, msg := range refundMessages {
		if errors.Is(err, sentinel) {
			res.Error = msg
			return res
		}
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Message != "" {
		res.Error = upstream.Message
	}
	return res
}
