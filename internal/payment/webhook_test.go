package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"id":"evt_1","kind":"payment_intent.succeeded","reference":"pi_1"}`)
	secret := "whsec_test"

	ev, err := ParseWebhook(body, SignWebhook(body, secret), secret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventIntentSucceeded, ev.Kind)
	assert.Equal(t, "pi_1", ev.Reference)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","kind":"payment_intent.succeeded"}`)

	_, err := ParseWebhook(body, SignWebhook(body, "other-secret"), "whsec_test")
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = ParseWebhook(body, "zz-not-hex", "whsec_test")
	assert.ErrorIs(t, err, ErrBadSignature)

	tampered := append([]byte{}, body...)
	tampered[10] = 'X'
	_, err = ParseWebhook(tampered, SignWebhook(body, "whsec_test"), "whsec_test")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestParseWebhookRequiresIDAndKind(t *testing.T) {
	body := []byte(`{"reference":"pi_1"}`)
	_, err := ParseWebhook(body, SignWebhook(body, "s"), "s")
	assert.Error(t, err)
}
