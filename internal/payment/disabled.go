package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Disabled is the demo-mode client used when payments are switched off in
// config: every call succeeds locally and intents are treated as instantly
// confirmable. Trials started through it carry no processor references.
type Disabled struct{}

func NewDisabled() *Disabled { return &Disabled{} }

func (*Disabled) CreateCustomer(_ context.Context, merchantID, _ string) (*Customer, error) {
	return &Customer{ID: "demo_" + merchantID}, nil
}

func (*Disabled) ChargeSetupFee(context.Context, string, int) error { return nil }

func (*Disabled) CreateRecurring(_ context.Context, customerID string, _ int) (*RecurringSubscription, error) {
	return &RecurringSubscription{ID: fmt.Sprintf("demo_sub_%s", customerID)}, nil
}

func (*Disabled) ChargeRenewal(context.Context, string, int) error { return nil }

func (*Disabled) CreateIntent(_ context.Context, _, _ string, amountCents int) (*Intent, error) {
	id := "demo_pi_" + uuid.New().String()
	return &Intent{ID: id, ClientSecret: id + "_secret", AmountCents: amountCents}, nil
}

func (*Disabled) VoidIntent(context.Context, string) error { return nil }

func (*Disabled) Refund(context.Context, string) error { return nil }

func (*Disabled) CancelRecurring(context.Context, string, bool) error { return nil }

func (*Disabled) ReactivateRecurring(context.Context, string) error { return nil }

func (*Disabled) UpdateRecurringPlan(context.Context, string, string) error { return nil }
