package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"shopbot/internal/webhook"
)

// maxBodyBytes bounds the webhook payload; Stripe events are well below it.
const maxBodyBytes = int64(65536)

const signatureHeader = "Stripe-Signature"

type EventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, ev webhook.Event) error
}

type WebhookHandler struct {
	verifier   EventVerifier
	dispatcher EventDispatcher
	logger     *zap.Logger
}

func NewWebhookHandler(verifier EventVerifier, dispatcher EventDispatcher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle authenticates the raw body and routes the event. Once the signature
// checks out the answer is always 200 so the processor does not redeliver;
// internal faults are logged and recovered by reconciliation.
func (h *WebhookHandler) Handle(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBodyBytes)
	payload, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = errors.New("payload too large")
		}
		h.logger.Warn("webhook body rejected", zap.Error(err))
		ctx.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
		return
	}

	event, err := h.verifier.VerifyEvent(payload, ctx.GetHeader(signatureHeader))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		ctx.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
		return
	}

	log := h.logger.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	log.Info("received webhook event")

	ev, err := webhook.Classify(event)
	if err != nil {
		log.Error("malformed webhook event", zap.Error(err))
		ctx.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// a dropped connection must not cut off the notification after the transition won
	if err := h.dispatcher.Dispatch(context.WithoutCancel(ctx.Request.Context()), ev); err != nil {
		log.Error("error processing webhook", zap.Error(err))
	}
	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
