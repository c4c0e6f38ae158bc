package domain

import (
	"errors"
)

var (
	ErrInternal = errors.New("internal error")

	// * Data errors.
	ErrOrderNotFound   = errors.New("order not found")
	ErrConflictingData = errors.New("data conflicts with existing data in unique column")

	// * Lifecycle errors.
	ErrAlreadyRefunded       = errors.New("order already refunded")
	ErrInvalidTransition     = errors.New("status transition not allowed")
	ErrMissingPaymentIntent  = errors.New("order has no payment intent")
	ErrPaymentIntentNotFound = errors.New("payment intent not found")

	// * External systems.
	ErrUpstream         = errors.New("payment processor request failed")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrDelivery         = errors.New("notification delivery failed")
	ErrUnknownProduct   = errors.New("unknown product")
)

// ErrorKind is the coarse classification callers branch on.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindNotFound              ErrorKind = "not_found"
	KindAlreadyTerminal       ErrorKind = "already_terminal"
	KindMissingPrecondition   ErrorKind = "missing_precondition"
	KindUpstreamFailure       ErrorKind = "upstream_failure"
	KindAuthenticationFailure ErrorKind = "authentication_failure"
	KindDeliveryFailure       ErrorKind = "delivery_failure"
	KindInternal              ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrOrderNotFound, KindNotFound},
	{ErrPaymentIntentNotFound, KindMissingPrecondition},
	{ErrMissingPaymentIntent, KindMissingPrecondition},
	{ErrAlreadyRefunded, KindAlreadyTerminal},
	{ErrInvalidTransition, KindAlreadyTerminal},
	{ErrUpstream, KindUpstreamFailure},
	{ErrInvalidSignature, KindAuthenticationFailure},
	{ErrDelivery, KindDeliveryFailure},
	{ErrUnknownProduct, KindNotFound},
}

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}

// UpstreamError carries the processor's own message and code.
type UpstreamError struct {
	Code    string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}
