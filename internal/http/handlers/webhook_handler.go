package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v78"

	stripeint "github.com/Dhoini/seatsync/internal/integration/stripe"
	"github.com/Dhoini/seatsync/internal/service"
	"github.com/Dhoini/seatsync/pkg/logger"
	"github.com/Dhoini/seatsync/pkg/res"
)

// maxRequestBodySize caps webhook bodies at Stripe's recommended 64 KiB.
const maxRequestBodySize = int64(65536)

// EventProcessor applies a verified event.
type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) (*service.Outcome, error)
}

// WebhookHandler receives Stripe webhook deliveries.
type WebhookHandler struct {
	verifier  *stripeint.Verifier
	processor EventProcessor
	log       *logger.Logger
}

func NewWebhookHandler(verifier *stripeint.Verifier, processor EventProcessor, log *logger.Logger) (*WebhookHandler, error) {
	if verifier == nil {
		return nil, errors.New("stripe webhook verifier is required")
	}
	return &WebhookHandler{verifier: verifier, processor: processor, log: log}, nil
}

// Preflight answers CORS preflight requests. Headers come from the CORS middleware.
func (h *WebhookHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// HandleStripeWebhook verifies and processes one delivery. Any failure is a
// 400 so that Stripe redelivers; duplicates are acknowledged with 200.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, "", err)
		return
	}

	event, err := h.verifier.Verify(payload, c.GetHeader(stripeint.SignatureHeader))
	if err != nil {
		h.fail(c, "", err)
		return
	}
	h.log.Infow("Received verified Stripe event", "eventID", event.ID, "eventType", event.Type)

	if _, err := h.processor.Process(c.Request.Context(), event); err != nil {
		h.fail(c, event.ID, err)
		return
	}
	res.TextResponse(c.Writer, "Webhook processed", http.StatusOK)
}

func (h *WebhookHandler) fail(c *gin.Context, eventID string, err error) {
	h.log.Errorw("Webhook rejected", "eventID", eventID, "error", err)
	res.TextResponse(c.Writer, "Webhook error: "+err.Error(), http.StatusBadRequest)
	c.Abort()
}
