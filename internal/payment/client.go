// Package payment is the boundary to the external payment processor. The
// engine only ever issues requests and consumes asynchronous outcome
// callbacks; it never implements payment logic itself.
package payment

import (
	"context"
	"errors"
)

var ErrChargeDeclined = errors.New("charge declined")

// Customer is the processor-side identity holding the payment method.
type Customer struct {
	ID string
}

// Intent is a one-time payment request correlated back by ID.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int
}

// RecurringSubscription is the processor-side billing subscription.
type RecurringSubscription struct {
	ID string
}

// Client is the synchronous half of the processor integration. Outcomes of
// intents arrive later through the webhook handler.
type Client interface {
	// CreateCustomer registers the merchant and attaches the payment method.
	// Failure means no payment method on file, so no subscription row may be
	// created.
	CreateCustomer(ctx context.Context, merchantID, paymentMethodID string) (*Customer, error)
	// ChargeSetupFee synchronously charges the trial setup fee.
	ChargeSetupFee(ctx context.Context, customerID string, amountCents int) error
	// CreateRecurring creates the recurring billing subscription with an
	// initial trial window.
	CreateRecurring(ctx context.Context, customerID string, trialDays int) (*RecurringSubscription, error)
	// ChargeRenewal charges one billing period. Declines are reported as
	// ErrChargeDeclined so the caller can move the subscription to past_due.
	ChargeRenewal(ctx context.Context, customerID string, amountCents int) error
	// CreateIntent opens an asynchronous one-time payment (featured booking).
	CreateIntent(ctx context.Context, customerID, reference string, amountCents int) (*Intent, error)
	// VoidIntent abandons an intent whose booking lost the reservation race.
	VoidIntent(ctx context.Context, intentID string) error
	// Refund refunds a captured intent (deleted listing, canceled booking).
	Refund(ctx context.Context, intentID string) error
	CancelRecurring(ctx context.Context, subscriptionID string, atPeriodEnd bool) error
	ReactivateRecurring(ctx context.Context, subscriptionID string) error
	UpdateRecurringPlan(ctx context.Context, subscriptionID, plan string) error
}
