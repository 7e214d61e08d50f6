package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
)

type featuredFixture struct {
	repos    repos
	clk      *clock.Fake
	payments *fakePayment
	calendar *FeaturedCalendar
	board    *model.Board
	listing  *model.Listing
}

func newFeaturedFixture(t *testing.T, paymentsEnabled bool) *featuredFixture {
	t.Helper()
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	payments := &fakePayment{}
	calendar := NewFeaturedCalendar(r.bookings, r.listings, r.subs, r.events, payments, clk, FeaturedCalendarConfig{
		PriceCents:       500,
		MaxAdvanceDays:   30,
		AvailabilityDays: 14,
		PaymentsEnabled:  paymentsEnabled,
	})
	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	listing := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	return &featuredFixture{
		repos:    r,
		clk:      clk,
		payments: payments,
		calendar: calendar,
		board:    board,
		listing:  listing,
	}
}

func (f *featuredFixture) dateIn(days int) string {
	return f.clk.Now().AddDate(0, 0, days).Format(model.FeaturedDateLayout)
}

func TestReservePendingUntilPaymentConfirms(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, res.Booking.PaymentStatus)
	assert.NotEmpty(t, res.ClientSecret)

	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))
	booking, err := f.repos.bookings.GetByID(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)
}

func TestReserveDemoModeSettlesImmediately(t *testing.T) {
	f := newFeaturedFixture(t, false)
	ctx := context.Background()

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, res.Booking.PaymentStatus)
	assert.Empty(t, res.ClientSecret)
}

func TestReserveSecondBookingSameDateRejected(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()
	date := f.dateIn(3)

	_, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)

	seedActiveSubscription(t, f.repos, "m2", f.clk)
	other := seedListing(t, f.repos, f.board.ID, "m2", model.ListingStatusActive)
	_, err = f.calendar.Reserve(ctx, f.board.ID, date, other.ID, "m2")
	assert.ErrorIs(t, err, ErrDateTaken)
	// The loser's intent is abandoned, never left dangling.
	assert.Len(t, f.payments.voidedIntents, 1)
}

func TestReserveFreedDateAfterFailedPayment(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()
	date := f.dateIn(3)

	res, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, false))

	// The failed row stays for audit but no longer blocks the date.
	res2, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)
	assert.NotEqual(t, res.Booking.ID, res2.Booking.ID)
}

func TestReserveDateValidation(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	for _, date := range []string{
		f.clk.Now().Format(model.FeaturedDateLayout), // today
		f.dateIn(-1),       // past
		f.dateIn(31),       // beyond max advance
		"not-a-date",
	} {
		_, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
		assert.ErrorIs(t, err, ErrDateOutOfRange, "date %q", date)
	}
}

func TestReserveRequiresEligibleSubscription(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	// No subscription at all.
	noSub := seedListing(t, f.repos, f.board.ID, "m-none", model.ListingStatusActive)
	_, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), noSub.ID, "m-none")
	assert.ErrorIs(t, err, ErrSubscriptionNotEligible)

	// past_due blocks new bookings.
	sub := seedActiveSubscription(t, f.repos, "m-due", f.clk)
	ok, err := f.repos.subs.Transition(ctx, sub.ID,
		map[string]any{"status": model.SubscriptionStatusPastDue},
		model.SubscriptionStatusActive)
	require.NoError(t, err)
	require.True(t, ok)
	due := seedListing(t, f.repos, f.board.ID, "m-due", model.ListingStatusActive)
	_, err = f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), due.ID, "m-due")
	assert.ErrorIs(t, err, ErrSubscriptionNotEligible)
}

func TestReserveOwnershipAndBoardChecks(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	_, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m-other")
	if assert.Error(t, err) {
		// m-other has no subscription, which is checked first.
		assert.ErrorIs(t, err, ErrSubscriptionNotEligible)
	}

	seedActiveSubscription(t, f.repos, "m2", f.clk)
	_, err = f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m2")
	assert.ErrorIs(t, err, ErrNotOwner)

	otherBoard := seedBoard(t, f.repos, 3, 0)
	_, err = f.calendar.Reserve(ctx, otherBoard.ID, f.dateIn(3), f.listing.ID, "m1")
	assert.ErrorIs(t, err, ErrBoardMismatch)

	paused := seedListing(t, f.repos, f.board.ID, "m1", model.ListingStatusPaused)
	_, err = f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), paused.ID, "m1")
	assert.ErrorIs(t, err, ErrListingNotActive)

	_, err = f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), uuid.New().String(), "m1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m1")
	require.NoError(t, err)

	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))
	// Replayed delivery of the same event is dropped by the ledger; a
	// contradictory late event cannot un-settle the booking either.
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, false))
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt2", res.Booking.PaymentIntentID, false))

	booking, err := f.repos.bookings.GetByID(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)
}

// failingSettleBookings errors the next n settle writes.
type failingSettleBookings struct {
	repository.BookingRepository
	failures int
}

func (f *failingSettleBookings) SetPaymentStatus(ctx context.Context, id, to string, from ...string) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("connection reset")
	}
	return f.BookingRepository.SetPaymentStatus(ctx, id, to, from...)
}

func TestConfirmPaymentRetriesAfterFailedWrite(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m1")
	require.NoError(t, err)

	bookings := &failingSettleBookings{BookingRepository: f.repos.bookings, failures: 1}
	calendar := NewFeaturedCalendar(bookings, f.repos.listings, f.repos.subs, f.repos.events,
		f.payments, f.clk, FeaturedCalendarConfig{PaymentsEnabled: true})

	// The settle write fails after delivery; the event must stay unconsumed
	// so the processor's retry of the same event still lands the outcome.
	require.Error(t, calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))
	require.NoError(t, calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))

	booking, err := f.repos.bookings.GetByID(ctx, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, booking.PaymentStatus)
}

func TestExpireStalePendingFreesDate(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()
	date := f.dateIn(3)

	_, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)

	// Inside the confirmation window nothing expires.
	f.clk.Advance(5 * time.Minute)
	n, err := f.calendar.ExpireStalePending(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clk.Advance(15 * time.Minute)
	n, err = f.calendar.ExpireStalePending(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)
}

func TestCancelPendingAndPaidBookings(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	pending, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(3), f.listing.ID, "m1")
	require.NoError(t, err)
	paid, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(4), f.listing.ID, "m1")
	require.NoError(t, err)
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", paid.Booking.PaymentIntentID, true))

	require.ErrorIs(t, f.calendar.Cancel(ctx, pending.Booking.ID, "m2"), ErrNotOwner)

	require.NoError(t, f.calendar.Cancel(ctx, pending.Booking.ID, "m1"))
	b, err := f.repos.bookings.GetByID(ctx, pending.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, b.PaymentStatus)

	require.NoError(t, f.calendar.Cancel(ctx, paid.Booking.ID, "m1"))
	b, err = f.repos.bookings.GetByID(ctx, paid.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusRefunded, b.PaymentStatus)
	assert.Equal(t, []string{paid.Booking.PaymentIntentID}, f.payments.refunds)

	// Already-canceled bookings cannot be canceled again.
	assert.ErrorIs(t, f.calendar.Cancel(ctx, paid.Booking.ID, "m1"), ErrBookingNotCancelable)
}

func TestCancelPastBookingRejected(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(1), f.listing.ID, "m1")
	require.NoError(t, err)
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))

	f.clk.Advance(48 * time.Hour)
	assert.ErrorIs(t, f.calendar.Cancel(ctx, res.Booking.ID, "m1"), ErrBookingNotCancelable)
}

func TestAvailabilityWindow(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()
	date := f.dateIn(3)

	_, err := f.calendar.Reserve(ctx, f.board.ID, date, f.listing.ID, "m1")
	require.NoError(t, err)

	days, err := f.calendar.Availability(ctx, f.board.ID, "m2", 14)
	require.NoError(t, err)
	require.Len(t, days, 14)
	assert.Equal(t, f.dateIn(1), days[0].Date)
	for _, d := range days {
		if d.Date == date {
			assert.False(t, d.IsAvailable)
			assert.False(t, d.OwnedByRequester)
		} else {
			assert.True(t, d.IsAvailable)
		}
	}

	mine, err := f.calendar.Availability(ctx, f.board.ID, "m1", 14)
	require.NoError(t, err)
	for _, d := range mine {
		if d.Date == date {
			assert.True(t, d.OwnedByRequester)
		}
	}
}

func TestTodayFeatured(t *testing.T) {
	f := newFeaturedFixture(t, true)
	ctx := context.Background()

	id, err := f.calendar.TodayFeatured(ctx, f.board.ID)
	require.NoError(t, err)
	assert.Empty(t, id)

	res, err := f.calendar.Reserve(ctx, f.board.ID, f.dateIn(1), f.listing.ID, "m1")
	require.NoError(t, err)
	require.NoError(t, f.calendar.ConfirmPayment(ctx, "evt1", res.Booking.PaymentIntentID, true))

	f.clk.Advance(24 * time.Hour)
	id, err = f.calendar.TodayFeatured(ctx, f.board.ID)
	require.NoError(t, err)
	assert.Equal(t, f.listing.ID, id)
}
