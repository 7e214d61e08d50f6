package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/payment"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/logger"
)

// SubscriptionConfig carries the billing-cadence knobs.
type SubscriptionConfig struct {
	TrialDays         int
	GraceDays         int
	MonthlyDays       int
	AnnualDays        int
	TrialFeeCents     int
	MonthlyPriceCents int
	AnnualPriceCents  int
	// PaymentsEnabled false skips the processor entirely (demo mode).
	PaymentsEnabled bool
}

func (c *SubscriptionConfig) defaults() {
	if c.TrialDays <= 0 {
		c.TrialDays = 7
	}
	if c.GraceDays <= 0 {
		c.GraceDays = 3
	}
	if c.MonthlyDays <= 0 {
		c.MonthlyDays = 30
	}
	if c.AnnualDays <= 0 {
		c.AnnualDays = 365
	}
	if c.MonthlyPriceCents <= 0 {
		c.MonthlyPriceCents = 1400
	}
	if c.AnnualPriceCents <= 0 {
		c.AnnualPriceCents = 12000
	}
}

// SubscriptionManager owns the billing state machine that gates listing
// visibility. All transitions are conditional writes guarded by the current
// status, so concurrent sweeps and webhooks cannot fight.
type SubscriptionManager struct {
	subs     repository.SubscriptionRepository
	events   repository.EventRepository
	payments payment.Client
	clock    clock.Clock
	cfg      SubscriptionConfig
}

func NewSubscriptionManager(
	subs repository.SubscriptionRepository,
	events repository.EventRepository,
	payments payment.Client,
	clk clock.Clock,
	cfg SubscriptionConfig,
) *SubscriptionManager {
	cfg.defaults()
	return &SubscriptionManager{subs: subs, events: events, payments: payments, clock: clk, cfg: cfg}
}

// StartTrial creates the merchant's subscription with a 7-day trial. The
// payment method must be confirmed (customer created, setup fee charged)
// before any row exists; an unconfirmed method never produces a subscription.
// In demo mode the processor is skipped and the trial starts unconditionally.
func (m *SubscriptionManager) StartTrial(ctx context.Context, merchantID, paymentMethodID string) (*model.Subscription, error) {
	if existing, err := m.subs.GetByMerchant(ctx, merchantID); err == nil && existing != nil {
		return nil, ErrAlreadySubscribed
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	now := m.clock.Now()
	trialEnd := now.AddDate(0, 0, m.cfg.TrialDays)
	sub := &model.Subscription{
		MerchantID:         merchantID,
		Plan:               model.PlanTrial,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   trialEnd,
		TrialEnd:           &trialEnd,
	}

	if m.cfg.PaymentsEnabled {
		customer, err := m.payments.CreateCustomer(ctx, merchantID, paymentMethodID)
		if err != nil {
			return nil, fmt.Errorf("confirm payment method: %w", err)
		}
		if err := m.payments.ChargeSetupFee(ctx, customer.ID, m.cfg.TrialFeeCents); err != nil {
			return nil, fmt.Errorf("charge trial fee: %w", err)
		}
		recurring, err := m.payments.CreateRecurring(ctx, customer.ID, m.cfg.TrialDays)
		if err != nil {
			return nil, fmt.Errorf("create recurring billing: %w", err)
		}
		sub.PaymentCustomerID = customer.ID
		sub.PaymentSubscriptionID = recurring.ID
		sub.PaymentMethodID = paymentMethodID
	}

	ok, err := m.subs.CreateUnique(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	if !ok {
		return nil, ErrAlreadySubscribed
	}
	logger.Info("trial started", zap.String("merchant", merchantID), zap.Time("trial_end", trialEnd))
	return sub, nil
}

// RequestCancel sets deferred cancellation. The subscription stays active
// through the current period; the rollover sweep performs the transition.
func (m *SubscriptionManager) RequestCancel(ctx context.Context, merchantID string) error {
	sub, err := m.getByMerchant(ctx, merchantID)
	if err != nil {
		return err
	}
	if sub.CancelAtPeriodEnd && sub.Status == model.SubscriptionStatusActive {
		return nil
	}
	ok, err := m.subs.SetCancelFlag(ctx, sub.ID, true, m.clock.Now())
	if err != nil {
		return fmt.Errorf("set cancel flag: %w", err)
	}
	if !ok {
		return ErrSubscriptionNotEligible
	}
	if m.cfg.PaymentsEnabled && sub.PaymentSubscriptionID != "" {
		if err := m.payments.CancelRecurring(ctx, sub.PaymentSubscriptionID, true); err != nil {
			logger.Warn("processor cancel failed", zap.String("merchant", merchantID), zap.Error(err))
		}
	}
	return nil
}

// Reactivate clears the deferred-cancellation flag. Only possible before the
// period closes; afterwards a new trial is the only way back.
func (m *SubscriptionManager) Reactivate(ctx context.Context, merchantID string) error {
	sub, err := m.getByMerchant(ctx, merchantID)
	if err != nil {
		return err
	}
	if !sub.CancelAtPeriodEnd && sub.Status == model.SubscriptionStatusActive {
		return nil
	}
	ok, err := m.subs.SetCancelFlag(ctx, sub.ID, false, m.clock.Now())
	if err != nil {
		return fmt.Errorf("clear cancel flag: %w", err)
	}
	if !ok {
		return ErrReactivateWindowPassed
	}
	if m.cfg.PaymentsEnabled && sub.PaymentSubscriptionID != "" {
		if err := m.payments.ReactivateRecurring(ctx, sub.PaymentSubscriptionID); err != nil {
			logger.Warn("processor reactivate failed", zap.String("merchant", merchantID), zap.Error(err))
		}
	}
	return nil
}

// Upgrade moves monthly → annual. Status is preserved; the billing period
// boundaries only change at the next renewal, not mid-period.
func (m *SubscriptionManager) Upgrade(ctx context.Context, merchantID string) error {
	sub, err := m.getByMerchant(ctx, merchantID)
	if err != nil {
		return err
	}
	if sub.Plan != model.PlanMonthly || sub.Status != model.SubscriptionStatusActive {
		return ErrSubscriptionNotEligible
	}
	ok, err := m.subs.Transition(ctx, sub.ID,
		map[string]any{"plan": model.PlanAnnual},
		model.SubscriptionStatusActive)
	if err != nil {
		return fmt.Errorf("upgrade plan: %w", err)
	}
	if !ok {
		return ErrSubscriptionNotEligible
	}
	if m.cfg.PaymentsEnabled && sub.PaymentSubscriptionID != "" {
		if err := m.payments.UpdateRecurringPlan(ctx, sub.PaymentSubscriptionID, model.PlanAnnual); err != nil {
			logger.Warn("processor plan change failed", zap.String("merchant", merchantID), zap.Error(err))
		}
	}
	return nil
}

// Eligible reports whether the merchant may allocate slots or book featured
// placements right now.
func (m *SubscriptionManager) Eligible(ctx context.Context, merchantID string) (bool, error) {
	sub, err := m.subs.GetByMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load subscription: %w", err)
	}
	return sub.Eligible(), nil
}

// Status returns the merchant's subscription for API summaries.
func (m *SubscriptionManager) Status(ctx context.Context, merchantID string) (*model.Subscription, error) {
	return m.getByMerchant(ctx, merchantID)
}

// RolloverDue advances every active subscription whose period has closed:
// deferred cancellations become canceled, trials convert via a charge, paid
// plans renew via a charge; declines move to past_due with a grace deadline.
// Returns how many subscriptions changed state.
func (m *SubscriptionManager) RolloverDue(ctx context.Context) (int, error) {
	now := m.clock.Now()
	due, err := m.subs.ListDueRollover(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("scan due subscriptions: %w", err)
	}
	changed := 0
	for _, sub := range due {
		if err := m.rollover(ctx, sub, now); err != nil {
			logger.Error("rollover failed", zap.String("subscription", sub.ID), zap.Error(err))
			continue
		}
		changed++
	}
	return changed, nil
}

func (m *SubscriptionManager) rollover(ctx context.Context, sub *model.Subscription, now time.Time) error {
	if sub.CancelAtPeriodEnd {
		_, err := m.subs.Transition(ctx, sub.ID, map[string]any{
			"status":      model.SubscriptionStatusCanceled,
			"canceled_at": now,
		}, model.SubscriptionStatusActive)
		return err
	}

	plan := sub.Plan
	if plan == model.PlanTrial {
		plan = model.PlanMonthly
	}

	if err := m.chargeRenewal(ctx, sub, plan); err != nil {
		if errors.Is(err, payment.ErrChargeDeclined) {
			grace := now.AddDate(0, 0, m.cfg.GraceDays)
			_, tErr := m.subs.Transition(ctx, sub.ID, map[string]any{
				"status":      model.SubscriptionStatusPastDue,
				"grace_until": grace,
			}, model.SubscriptionStatusActive)
			return tErr
		}
		return err
	}

	start := sub.CurrentPeriodEnd
	_, err := m.subs.Transition(ctx, sub.ID, map[string]any{
		"plan":                 plan,
		"trial_end":            nil,
		"current_period_start": start,
		"current_period_end":   start.AddDate(0, 0, m.periodDays(plan)),
		"grace_until":          nil,
	}, model.SubscriptionStatusActive)
	return err
}

// RetryPastDue re-attempts charges for past_due subscriptions: success
// returns them to active with a fresh period, an exceeded grace deadline
// expires them. Returns the merchant IDs that expired this pass.
func (m *SubscriptionManager) RetryPastDue(ctx context.Context) ([]string, error) {
	now := m.clock.Now()
	pastDue, err := m.subs.ListPastDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("scan past_due subscriptions: %w", err)
	}
	var expiredMerchants []string
	for _, sub := range pastDue {
		if sub.GraceUntil != nil && now.After(*sub.GraceUntil) {
			ok, err := m.subs.Transition(ctx, sub.ID,
				map[string]any{"status": model.SubscriptionStatusExpired},
				model.SubscriptionStatusPastDue)
			if err != nil {
				logger.Error("expire failed", zap.String("subscription", sub.ID), zap.Error(err))
				continue
			}
			if ok {
				expiredMerchants = append(expiredMerchants, sub.MerchantID)
				logger.Info("subscription expired", zap.String("merchant", sub.MerchantID))
			}
			continue
		}

		if err := m.chargeRenewal(ctx, sub, sub.Plan); err != nil {
			if !errors.Is(err, payment.ErrChargeDeclined) {
				logger.Error("retry charge failed", zap.String("subscription", sub.ID), zap.Error(err))
			}
			continue
		}
		start := now
		_, err := m.subs.Transition(ctx, sub.ID, map[string]any{
			"status":               model.SubscriptionStatusActive,
			"current_period_start": start,
			"current_period_end":   start.AddDate(0, 0, m.periodDays(sub.Plan)),
			"grace_until":          nil,
		}, model.SubscriptionStatusPastDue)
		if err != nil {
			logger.Error("recover transition failed", zap.String("subscription", sub.ID), zap.Error(err))
		}
	}
	return expiredMerchants, nil
}

func (m *SubscriptionManager) chargeRenewal(ctx context.Context, sub *model.Subscription, plan string) error {
	if !m.cfg.PaymentsEnabled {
		return nil
	}
	amount := m.cfg.MonthlyPriceCents
	if plan == model.PlanAnnual {
		amount = m.cfg.AnnualPriceCents
	}
	return m.payments.ChargeRenewal(ctx, sub.PaymentCustomerID, amount)
}

func (m *SubscriptionManager) periodDays(plan string) int {
	if plan == model.PlanAnnual {
		return m.cfg.AnnualDays
	}
	return m.cfg.MonthlyDays
}

// HandleRenewalOutcome consumes a recurring-billing webhook, idempotently.
// Reference is the processor customer ID. The event is recorded only after
// the transition landed, keeping it open for the processor's retry when the
// write fails.
func (m *SubscriptionManager) HandleRenewalOutcome(ctx context.Context, eventID, customerID string, succeeded bool) error {
	seen, err := m.events.Seen(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if seen {
		return nil
	}

	sub, err := m.subs.GetByPaymentCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("renewal outcome for unknown customer", zap.String("customer", customerID))
			return nil
		}
		return fmt.Errorf("load subscription: %w", err)
	}

	now := m.clock.Now()
	if succeeded {
		_, err = m.subs.Transition(ctx, sub.ID, map[string]any{
			"status":               model.SubscriptionStatusActive,
			"current_period_start": now,
			"current_period_end":   now.AddDate(0, 0, m.periodDays(sub.Plan)),
			"grace_until":          nil,
		}, model.SubscriptionStatusPastDue)
	} else {
		grace := now.AddDate(0, 0, m.cfg.GraceDays)
		_, err = m.subs.Transition(ctx, sub.ID, map[string]any{
			"status":      model.SubscriptionStatusPastDue,
			"grace_until": grace,
		}, model.SubscriptionStatusActive)
	}
	if err != nil {
		return fmt.Errorf("apply renewal outcome: %w", err)
	}
	if _, err := m.events.MarkProcessed(ctx, eventID, "renewal", now); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// HandleProcessorCancellation settles a processor-side recurring-billing
// cancellation, idempotently. The row is kept terminal: canceled wins over
// whatever state the sweeps left behind.
func (m *SubscriptionManager) HandleProcessorCancellation(ctx context.Context, eventID, paymentSubID string) error {
	seen, err := m.events.Seen(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if seen {
		return nil
	}
	sub, err := m.subs.GetByPaymentSubscription(ctx, paymentSubID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("cancellation for unknown recurring subscription", zap.String("recurring", paymentSubID))
			return nil
		}
		return fmt.Errorf("load subscription: %w", err)
	}
	if _, err := m.subs.Transition(ctx, sub.ID, map[string]any{
		"status":      model.SubscriptionStatusCanceled,
		"canceled_at": m.clock.Now(),
	}, model.SubscriptionStatusActive, model.SubscriptionStatusPastDue); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	if _, err := m.events.MarkProcessed(ctx, eventID, "subscription_canceled", m.clock.Now()); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

func (m *SubscriptionManager) getByMerchant(ctx context.Context, merchantID string) (*model.Subscription, error) {
	sub, err := m.subs.GetByMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return sub, nil
}
