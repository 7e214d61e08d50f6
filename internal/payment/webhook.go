package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Webhook event kinds delivered by the processor.
const (
	EventIntentSucceeded      = "payment_intent.succeeded"
	EventIntentFailed         = "payment_intent.failed"
	EventRenewalSucceeded     = "invoice.payment_succeeded"
	EventRenewalFailed        = "invoice.payment_failed"
	EventSubscriptionCanceled = "subscription.canceled"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// WebhookEvent is the asynchronous payment outcome. Reference carries the
// intent ID for one-time payments and the processor customer ID for recurring
// billing events.
type WebhookEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
}

// ParseWebhook verifies the HMAC-SHA256 signature over the raw body and
// decodes the event. Deliveries may be duplicated; dedup is the caller's job.
func ParseWebhook(body []byte, signature, secret string) (*WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, ErrBadSignature
	}
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	if ev.ID == "" || ev.Kind == "" {
		return nil, errors.New("webhook event missing id or kind")
	}
	return &ev, nil
}

// SignWebhook produces the signature a caller (or test) attaches to a body.
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
