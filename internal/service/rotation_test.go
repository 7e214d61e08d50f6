package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsquares/localsquares/internal/model"
)

func TestRecordImpressionAccumulatesWithinWindow(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, ranker.RecordImpression(ctx, "l1"))
		clk.Advance(time.Hour)
	}

	counter, err := r.exposure.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), counter.Count)
}

func TestRecordImpressionResetsExpiredWindow(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, ranker.RecordImpression(ctx, "l1"))
	}
	counter, err := r.exposure.Get(ctx, "l1")
	require.NoError(t, err)
	require.Equal(t, int64(50), counter.Count)

	// 25 hours later the window is stale; the next impression restarts at 1
	// instead of reaching 51.
	clk.Advance(25 * time.Hour)
	require.NoError(t, ranker.RecordImpression(ctx, "l1"))

	counter, err = r.exposure.Get(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counter.Count)
	assert.WithinDuration(t, clk.Now(), counter.WindowStart, time.Second)
}

func TestRankLeastExposedFirst(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	la := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lb := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lc := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)

	for i := 0; i < 3; i++ {
		require.NoError(t, ranker.RecordImpression(ctx, la.ID))
	}
	require.NoError(t, ranker.RecordImpression(ctx, lb.ID))
	// lc has no counter row at all and must rank as zero.

	order, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{lc.ID, lb.ID, la.ID}, order)
}

func TestRankStaleWindowCountsAsZero(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	la := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lb := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)

	for i := 0; i < 10; i++ {
		require.NoError(t, ranker.RecordImpression(ctx, la.ID))
	}
	clk.Advance(25 * time.Hour)
	// A fresh impression inside the current window for lb only.
	require.NoError(t, ranker.RecordImpression(ctx, lb.ID))

	order, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	// la's 10 impressions belong to an expired window, so la reads as 0 and
	// outranks lb's live count of 1.
	assert.Equal(t, []string{la.ID, lb.ID}, order)
}

func TestRankTieBreaksByContentAge(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	newer := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	older := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	require.NoError(t, r.listings.Update(ctx, newer.ID,
		map[string]any{"content_updated_at": time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, r.listings.Update(ctx, older.ID,
		map[string]any{"content_updated_at": time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}))

	order, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{older.ID, newer.ID}, order)
}

func TestRankExcludesIneligibleMerchants(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "paying", clk)
	sub := seedActiveSubscription(t, r, "lapsed", clk)
	ok, err := r.subs.Transition(ctx, sub.ID,
		map[string]any{"status": model.SubscriptionStatusExpired},
		model.SubscriptionStatusActive)
	require.NoError(t, err)
	require.True(t, ok)

	visible := seedListing(t, r, board.ID, "paying", model.ListingStatusActive)
	seedListing(t, r, board.ID, "lapsed", model.ListingStatusActive)
	seedListing(t, r, board.ID, "never-subscribed", model.ListingStatusActive)

	order, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{visible.ID}, order)
}

func TestRankPinsPaidFeaturedFirst(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	la := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lb := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lc := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)

	// lc is the most exposed, yet its paid featured booking pins it first.
	for i := 0; i < 7; i++ {
		require.NoError(t, ranker.RecordImpression(ctx, lc.ID))
	}
	booking := &model.FeaturedBooking{
		ListingID:    lc.ID,
		BoardID:      board.ID,
		MerchantID:   "m1",
		FeaturedDate: clk.Now().Format(model.FeaturedDateLayout),
		AmountCents:  500,
	}
	ok, err := r.bookings.TryReserve(ctx, booking)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = r.bookings.SetPaymentStatus(ctx, booking.ID, model.PaymentStatusPaid, model.PaymentStatusPending)
	require.NoError(t, err)

	order, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, lc.ID, order[0])
	assert.ElementsMatch(t, []string{la.ID, lb.ID}, order[1:])
}

func TestRankUsesCacheUntilTTL(t *testing.T) {
	db := setupDB(t)
	r := newRepos(db)
	clk := testClock()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ranker := NewRotationRanker(r.exposure, r.listings, r.bookings, r.subs, clk, 24).
		WithCache(cache, 30*time.Second)
	ctx := context.Background()

	board := seedBoard(t, r, 3, 0)
	seedActiveSubscription(t, r, "m1", clk)
	la := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)
	lb := seedListing(t, r, board.ID, "m1", model.ListingStatusActive)

	first, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)

	// New impressions would reorder, but the cached order is still served.
	require.NoError(t, ranker.RecordImpression(ctx, first[0]))
	require.NoError(t, ranker.RecordImpression(ctx, first[0]))
	cached, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, first, cached)

	mr.FastForward(time.Minute)
	fresh, err := ranker.Rank(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, first[1], fresh[0])
	assert.ElementsMatch(t, []string{la.ID, lb.ID}, fresh)
}
