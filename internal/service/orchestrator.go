package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/logger"
)

// Orchestrator is the façade the API layer calls. It sequences the allocator,
// ranker, calendar and subscription manager across listing lifecycle events;
// each entity's own invariants stay enforced at its point of mutation.
type Orchestrator struct {
	listings      repository.ListingRepository
	allocator     *SlotAllocator
	ranker        *RotationRanker
	calendar      *FeaturedCalendar
	subscriptions *SubscriptionManager
	auditor       *ImpressionAuditor
}

func NewOrchestrator(
	listings repository.ListingRepository,
	allocator *SlotAllocator,
	ranker *RotationRanker,
	calendar *FeaturedCalendar,
	subscriptions *SubscriptionManager,
	auditor *ImpressionAuditor,
) *Orchestrator {
	return &Orchestrator{
		listings:      listings,
		allocator:     allocator,
		ranker:        ranker,
		calendar:      calendar,
		subscriptions: subscriptions,
		auditor:       auditor,
	}
}

// ActivateListing verifies eligibility, flips the listing active and
// allocates its slot. A full board surfaces as ErrBoardFull, not retried.
func (o *Orchestrator) ActivateListing(ctx context.Context, listingID, merchantID string) (*model.Slot, error) {
	listing, err := o.getOwned(ctx, listingID, merchantID)
	if err != nil {
		return nil, err
	}

	eligible, err := o.subscriptions.Eligible(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrSubscriptionNotEligible
	}

	if listing.Status != model.ListingStatusActive {
		ok, err := o.listings.SetStatus(ctx, listingID, model.ListingStatusActive,
			model.ListingStatusDraft, model.ListingStatusPaused)
		if err != nil {
			return nil, fmt.Errorf("activate listing: %w", err)
		}
		if !ok {
			return nil, ErrListingNotActive
		}
	}

	slot, err := o.allocator.Allocate(ctx, listing.BoardID, listingID)
	if err != nil {
		return nil, err
	}
	logger.Info("listing activated",
		zap.String("listing", listingID),
		zap.Int("row", slot.Row), zap.Int("col", slot.Col))
	return slot, nil
}

// PauseListing vacates the slot but leaves featured bookings intact — the
// merchant may un-pause before the booked date. Pausing an already-paused
// listing is a no-op; any other non-active state is an error.
func (o *Orchestrator) PauseListing(ctx context.Context, listingID, merchantID string) error {
	listing, err := o.getOwned(ctx, listingID, merchantID)
	if err != nil {
		return err
	}
	if listing.Status == model.ListingStatusPaused {
		return nil
	}
	ok, err := o.listings.SetStatus(ctx, listingID, model.ListingStatusPaused, model.ListingStatusActive)
	if err != nil {
		return fmt.Errorf("pause listing: %w", err)
	}
	if !ok {
		return ErrListingNotActive
	}
	return o.allocator.Release(ctx, listingID)
}

// DeleteListing vacates the slot and fails/refund-flags bookings that
// reference the listing, then removes it.
func (o *Orchestrator) DeleteListing(ctx context.Context, listingID, merchantID string) error {
	if _, err := o.getOwned(ctx, listingID, merchantID); err != nil {
		return err
	}
	if err := o.allocator.Release(ctx, listingID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if err := o.calendar.InvalidateListing(ctx, listingID); err != nil {
		return err
	}
	return o.listings.Delete(ctx, listingID)
}

// StartTrial starts the merchant's trial subscription.
func (o *Orchestrator) StartTrial(ctx context.Context, merchantID, paymentMethodID string) (*model.Subscription, error) {
	return o.subscriptions.StartTrial(ctx, merchantID, paymentMethodID)
}

func (o *Orchestrator) RequestCancel(ctx context.Context, merchantID string) error {
	return o.subscriptions.RequestCancel(ctx, merchantID)
}

func (o *Orchestrator) Reactivate(ctx context.Context, merchantID string) error {
	return o.subscriptions.Reactivate(ctx, merchantID)
}

func (o *Orchestrator) UpgradePlan(ctx context.Context, merchantID string) error {
	return o.subscriptions.Upgrade(ctx, merchantID)
}

func (o *Orchestrator) SubscriptionStatus(ctx context.Context, merchantID string) (*model.Subscription, error) {
	return o.subscriptions.Status(ctx, merchantID)
}

// RequestFeaturedBooking reserves the exclusive featured date.
func (o *Orchestrator) RequestFeaturedBooking(ctx context.Context, boardID, date, listingID, merchantID string) (*Reservation, error) {
	return o.calendar.Reserve(ctx, boardID, date, listingID, merchantID)
}

func (o *Orchestrator) CancelFeaturedBooking(ctx context.Context, bookingID, merchantID string) error {
	return o.calendar.Cancel(ctx, bookingID, merchantID)
}

func (o *Orchestrator) FeaturedAvailability(ctx context.Context, boardID, merchantID string, days int) ([]DayAvailability, error) {
	return o.calendar.Availability(ctx, boardID, merchantID, days)
}

func (o *Orchestrator) MerchantBookings(ctx context.Context, merchantID string, includePast bool) ([]*model.FeaturedBooking, error) {
	return o.calendar.MerchantBookings(ctx, merchantID, includePast)
}

// RecordImpression bumps the rotation counter synchronously and queues the
// analytics audit row.
func (o *Orchestrator) RecordImpression(ctx context.Context, listingID, boardID, sessionID string) error {
	if err := o.ranker.RecordImpression(ctx, listingID); err != nil {
		return err
	}
	if o.auditor != nil {
		o.auditor.EnqueueImpression(listingID, boardID, sessionID)
	}
	return nil
}

// RecordClick is audit-only.
func (o *Orchestrator) RecordClick(ctx context.Context, listingID, boardID, sessionID, clickType string) {
	if o.auditor != nil {
		o.auditor.EnqueueClick(listingID, boardID, sessionID, clickType)
	}
}

// BoardDisplayOrder returns the fair display order for a board.
func (o *Orchestrator) BoardDisplayOrder(ctx context.Context, boardID string) ([]string, error) {
	return o.ranker.Rank(ctx, boardID)
}

func (o *Orchestrator) getOwned(ctx context.Context, listingID, merchantID string) (*model.Listing, error) {
	listing, err := o.listings.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if listing.MerchantID != merchantID {
		return nil, ErrNotOwner
	}
	return listing, nil
}
