package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/payment"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/logger"
)

// DayAvailability is one calendar day of the featured availability window.
type DayAvailability struct {
	Date             string `json:"date"`
	IsAvailable      bool   `json:"is_available"`
	OwnedByRequester bool   `json:"booked_by_user"`
}

// Reservation is the result of a successful reserve: the pending booking plus
// the client secret the caller needs to complete payment.
type Reservation struct {
	Booking      *model.FeaturedBooking `json:"booking"`
	ClientSecret string                 `json:"client_secret,omitempty"`
}

// FeaturedCalendarConfig carries the booking-window knobs.
type FeaturedCalendarConfig struct {
	PriceCents       int
	MaxAdvanceDays   int
	AvailabilityDays int
	// PaymentsEnabled false confirms demo reservations immediately.
	PaymentsEnabled bool
}

// FeaturedCalendar books the single exclusive featured placement per board
// per day. Reservation is two-phase: a conditional pending insert holds the
// date, the asynchronous payment outcome settles it.
type FeaturedCalendar struct {
	bookings      repository.BookingRepository
	listings      repository.ListingRepository
	subscriptions repository.SubscriptionRepository
	events        repository.EventRepository
	payments      payment.Client
	clock         clock.Clock
	cfg           FeaturedCalendarConfig
}

func NewFeaturedCalendar(
	bookings repository.BookingRepository,
	listings repository.ListingRepository,
	subscriptions repository.SubscriptionRepository,
	events repository.EventRepository,
	payments payment.Client,
	clk clock.Clock,
	cfg FeaturedCalendarConfig,
) *FeaturedCalendar {
	if cfg.PriceCents <= 0 {
		cfg.PriceCents = 500
	}
	if cfg.MaxAdvanceDays <= 0 {
		cfg.MaxAdvanceDays = 30
	}
	if cfg.AvailabilityDays <= 0 {
		cfg.AvailabilityDays = 14
	}
	return &FeaturedCalendar{
		bookings:      bookings,
		listings:      listings,
		subscriptions: subscriptions,
		events:        events,
		payments:      payments,
		clock:         clk,
		cfg:           cfg,
	}
}

// Availability lists the bookable window starting tomorrow: for each date,
// whether it is free and whether the requesting merchant already holds it.
func (c *FeaturedCalendar) Availability(ctx context.Context, boardID, merchantID string, days int) ([]DayAvailability, error) {
	if days <= 0 || days > c.cfg.MaxAdvanceDays {
		days = c.cfg.AvailabilityDays
	}
	today := c.clock.Now().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, 1)
	end := today.AddDate(0, 0, days)

	booked, err := c.bookings.BlockingInRange(ctx, boardID,
		start.Format(model.FeaturedDateLayout), end.Format(model.FeaturedDateLayout))
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	owners := make(map[string]string, len(booked))
	for _, b := range booked {
		owners[b.FeaturedDate] = b.MerchantID
	}

	out := make([]DayAvailability, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(model.FeaturedDateLayout)
		owner, taken := owners[date]
		out = append(out, DayAvailability{
			Date:             date,
			IsAvailable:      !taken,
			OwnedByRequester: taken && owner == merchantID,
		})
	}
	return out, nil
}

// Reserve books the date for the listing. The merchant's subscription must be
// active (trial counts), the listing active, owned by the merchant, and on
// the board. The pending insert against the (board, date) uniqueness
// constraint is the only exclusivity mechanism: a lost race surfaces as
// ErrDateTaken, never a silent scan for another date.
func (c *FeaturedCalendar) Reserve(ctx context.Context, boardID, date, listingID, merchantID string) (*Reservation, error) {
	if err := c.checkDate(date); err != nil {
		return nil, err
	}

	sub, err := c.subscriptions.GetByMerchant(ctx, merchantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubscriptionNotEligible
		}
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if !sub.Eligible() {
		return nil, ErrSubscriptionNotEligible
	}

	listing, err := c.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing.MerchantID != merchantID {
		return nil, ErrNotOwner
	}
	if listing.BoardID != boardID {
		return nil, ErrBoardMismatch
	}
	if listing.Status != model.ListingStatusActive {
		return nil, ErrListingNotActive
	}

	now := c.clock.Now()
	booking := &model.FeaturedBooking{
		ID:           uuid.New().String(),
		ListingID:    listingID,
		BoardID:      boardID,
		MerchantID:   merchantID,
		FeaturedDate: date,
		AmountCents:  c.cfg.PriceCents,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	intent, err := c.payments.CreateIntent(ctx, sub.PaymentCustomerID, booking.ID, c.cfg.PriceCents)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	booking.PaymentIntentID = intent.ID

	ok, err := c.bookings.TryReserve(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("reserve booking: %w", err)
	}
	if !ok {
		// Lost the date race; abandon the intent best-effort.
		if vErr := c.payments.VoidIntent(ctx, intent.ID); vErr != nil {
			logger.Warn("void intent failed", zap.String("intent", intent.ID), zap.Error(vErr))
		}
		return nil, ErrDateTaken
	}

	if !c.cfg.PaymentsEnabled {
		// Demo mode: no processor callback will ever arrive, settle now.
		if _, err := c.bookings.SetPaymentStatus(ctx, booking.ID, model.PaymentStatusPaid, model.PaymentStatusPending); err != nil {
			return nil, fmt.Errorf("confirm demo booking: %w", err)
		}
		booking.PaymentStatus = model.PaymentStatusPaid
		return &Reservation{Booking: booking}, nil
	}

	return &Reservation{Booking: booking, ClientSecret: intent.ClientSecret}, nil
}

func (c *FeaturedCalendar) checkDate(date string) error {
	d, err := time.Parse(model.FeaturedDateLayout, date)
	if err != nil {
		return ErrDateOutOfRange
	}
	today := c.clock.Now().Truncate(24 * time.Hour)
	if !d.After(today) {
		return ErrDateOutOfRange
	}
	if d.After(today.AddDate(0, 0, c.cfg.MaxAdvanceDays)) {
		return ErrDateOutOfRange
	}
	return nil
}

// ConfirmPayment settles a pending booking from an asynchronous payment
// outcome. Idempotent on both axes: the event ledger drops replayed webhook
// deliveries, and the pending→{paid,failed} conditional write ignores
// out-of-order stragglers. The event is recorded only after the transition
// landed — a failed write leaves it unconsumed for the processor's retry.
func (c *FeaturedCalendar) ConfirmPayment(ctx context.Context, eventID, intentID string, succeeded bool) error {
	seen, err := c.events.Seen(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if seen {
		return nil
	}

	booking, err := c.bookings.GetByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn("payment outcome for unknown intent", zap.String("intent", intentID))
			return nil
		}
		return fmt.Errorf("load booking: %w", err)
	}

	to := model.PaymentStatusPaid
	if !succeeded {
		to = model.PaymentStatusFailed
	}
	moved, err := c.bookings.SetPaymentStatus(ctx, booking.ID, to, model.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("settle booking: %w", err)
	}
	if !moved {
		logger.Info("booking already settled", zap.String("booking", booking.ID))
	}
	if _, err := c.events.MarkProcessed(ctx, eventID, "featured_payment", c.clock.Now()); err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Cancel releases a merchant's future booking. Paid bookings are refunded;
// the row flips to failed/refunded which frees the date under the partial
// unique index.
func (c *FeaturedCalendar) Cancel(ctx context.Context, bookingID, merchantID string) error {
	booking, err := c.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load booking: %w", err)
	}
	if booking.MerchantID != merchantID {
		return ErrNotOwner
	}
	today := c.clock.Now().Format(model.FeaturedDateLayout)
	if booking.FeaturedDate <= today || !booking.Blocking() {
		return ErrBookingNotCancelable
	}

	switch booking.PaymentStatus {
	case model.PaymentStatusPending:
		if _, err := c.bookings.SetPaymentStatus(ctx, booking.ID, model.PaymentStatusFailed, model.PaymentStatusPending); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if err := c.payments.VoidIntent(ctx, booking.PaymentIntentID); err != nil {
			logger.Warn("void intent failed", zap.String("intent", booking.PaymentIntentID), zap.Error(err))
		}
	case model.PaymentStatusPaid:
		if _, err := c.bookings.SetPaymentStatus(ctx, booking.ID, model.PaymentStatusRefunded, model.PaymentStatusPaid); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if err := c.payments.Refund(ctx, booking.PaymentIntentID); err != nil {
			logger.Error("refund failed", zap.String("intent", booking.PaymentIntentID), zap.Error(err))
		}
	}
	return nil
}

// InvalidateListing fails/refund-flags every blocking booking that references
// a deleted listing.
func (c *FeaturedCalendar) InvalidateListing(ctx context.Context, listingID string) error {
	bookings, err := c.bookings.BlockingByListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	for _, b := range bookings {
		to := model.PaymentStatusFailed
		if b.PaymentStatus == model.PaymentStatusPaid {
			to = model.PaymentStatusRefunded
			if err := c.payments.Refund(ctx, b.PaymentIntentID); err != nil {
				logger.Error("refund failed", zap.String("intent", b.PaymentIntentID), zap.Error(err))
			}
		}
		if _, err := c.bookings.SetPaymentStatus(ctx, b.ID, to, b.PaymentStatus); err != nil {
			return fmt.Errorf("invalidate booking %s: %w", b.ID, err)
		}
	}
	return nil
}

// ExpireStalePending fails pending bookings older than the confirmation
// window. A lost payment callback must not occupy the exclusive date forever.
func (c *FeaturedCalendar) ExpireStalePending(ctx context.Context, confirmWindow time.Duration) (int, error) {
	cutoff := c.clock.Now().Add(-confirmWindow)
	stale, err := c.bookings.StalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan pending bookings: %w", err)
	}
	expired := 0
	for _, b := range stale {
		moved, err := c.bookings.SetPaymentStatus(ctx, b.ID, model.PaymentStatusFailed, model.PaymentStatusPending)
		if err != nil {
			return expired, fmt.Errorf("expire booking %s: %w", b.ID, err)
		}
		if moved {
			expired++
			logger.Info("expired stale pending booking",
				zap.String("booking", b.ID), zap.String("date", b.FeaturedDate))
		}
	}
	return expired, nil
}

// TodayFeatured returns the paid featured listing ID for the board today, or
// empty when none.
func (c *FeaturedCalendar) TodayFeatured(ctx context.Context, boardID string) (string, error) {
	booking, err := c.bookings.PaidForDate(ctx, boardID, c.clock.Now().Format(model.FeaturedDateLayout))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return booking.ListingID, nil
}

// MerchantBookings lists the merchant's bookings from today onward, or all
// when includePast.
func (c *FeaturedCalendar) MerchantBookings(ctx context.Context, merchantID string, includePast bool) ([]*model.FeaturedBooking, error) {
	from := c.clock.Now().Format(model.FeaturedDateLayout)
	if includePast {
		from = ""
	}
	return c.bookings.ListByMerchant(ctx, merchantID, from)
}
