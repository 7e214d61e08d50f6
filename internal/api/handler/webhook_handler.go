package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/payment"
	"github.com/localsquares/localsquares/pkg/logger"
	"github.com/localsquares/localsquares/pkg/response"
)

// PaymentWebhook consumes asynchronous payment outcomes. Deliveries may be
// duplicated or out of order; every branch below is idempotent, so the
// processor can always be answered 200 once the signature checks out.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable body")
		return
	}
	event, err := payment.ParseWebhook(body, c.GetHeader("X-Payment-Signature"), h.webhookSecret)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	switch event.Kind {
	case payment.EventIntentSucceeded:
		err = h.calendar.ConfirmPayment(ctx, event.ID, event.Reference, true)
	case payment.EventIntentFailed:
		err = h.calendar.ConfirmPayment(ctx, event.ID, event.Reference, false)
	case payment.EventRenewalSucceeded:
		err = h.subscriptions.HandleRenewalOutcome(ctx, event.ID, event.Reference, true)
	case payment.EventRenewalFailed:
		err = h.subscriptions.HandleRenewalOutcome(ctx, event.ID, event.Reference, false)
	case payment.EventSubscriptionCanceled:
		err = h.subscriptions.HandleProcessorCancellation(ctx, event.ID, event.Reference)
	default:
		logger.Info("ignoring webhook event", zap.String("kind", event.Kind))
		response.Success(c, gin.H{"status": "ignored"})
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"status": "handled", "event": event.Kind})
}
