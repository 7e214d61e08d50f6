package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/logger"
)

// RotationRanker maintains the rolling 24h exposure counters and produces the
// fair display order for a board: least-exposed first, so heavily seen
// listings sink until their window rolls over.
type RotationRanker struct {
	exposure      repository.ExposureRepository
	listings      repository.ListingRepository
	bookings      repository.BookingRepository
	subscriptions repository.SubscriptionRepository
	clock         clock.Clock
	window        time.Duration

	// cache is optional; nil disables it.
	cache    *redis.Client
	cacheTTL time.Duration
}

func NewRotationRanker(
	exposure repository.ExposureRepository,
	listings repository.ListingRepository,
	bookings repository.BookingRepository,
	subscriptions repository.SubscriptionRepository,
	clk clock.Clock,
	windowHours int,
) *RotationRanker {
	if windowHours <= 0 {
		windowHours = 24
	}
	return &RotationRanker{
		exposure:      exposure,
		listings:      listings,
		bookings:      bookings,
		subscriptions: subscriptions,
		clock:         clk,
		window:        time.Duration(windowHours) * time.Hour,
	}
}

// WithCache enables the short-TTL redis cache for computed orders.
func (r *RotationRanker) WithCache(cache *redis.Client, ttl time.Duration) *RotationRanker {
	r.cache = cache
	r.cacheTTL = ttl
	return r
}

// RecordImpression bumps the listing's window counter. The window reset is
// lazy: the first impression after expiry resets count to 1 with a fresh
// window start, never accumulating across window boundaries. Each step is a
// single conditional write so two concurrent resets cannot double-count.
func (r *RotationRanker) RecordImpression(ctx context.Context, listingID string) error {
	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	reset, err := r.exposure.ResetIfStale(ctx, listingID, cutoff, now)
	if err != nil {
		return fmt.Errorf("reset window: %w", err)
	}
	if reset {
		return nil
	}

	bumped, err := r.exposure.IncrementInWindow(ctx, listingID, cutoff)
	if err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	if bumped {
		return nil
	}

	// No row yet: first impression ever. A concurrent first impression may
	// win the insert; fold into its window instead.
	inserted, err := r.exposure.InsertFresh(ctx, listingID, now)
	if err != nil {
		return fmt.Errorf("insert counter: %w", err)
	}
	if inserted {
		return nil
	}
	if _, err := r.exposure.IncrementInWindow(ctx, listingID, cutoff); err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// Rank returns listing IDs in display order: today's paid featured listing
// first, then ascending by current-window exposure count, ties broken by
// oldest content update, then by ID for determinism.
func (r *RotationRanker) Rank(ctx context.Context, boardID string) ([]string, error) {
	if ids, ok := r.cachedRank(ctx, boardID); ok {
		return ids, nil
	}

	now := r.clock.Now()
	cutoff := now.Add(-r.window)

	listings, err := r.listings.ListActiveByBoard(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	if len(listings) == 0 {
		return nil, nil
	}

	eligible, err := r.filterEligible(ctx, listings)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(eligible))
	for _, l := range eligible {
		ids = append(ids, l.ID)
	}
	counts, err := r.exposure.CountsSince(ctx, ids, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}

	sort.Slice(eligible, func(i, j int) bool {
		ci, cj := counts[eligible[i].ID], counts[eligible[j].ID]
		if ci != cj {
			return ci < cj
		}
		if !eligible[i].ContentUpdatedAt.Equal(eligible[j].ContentUpdatedAt) {
			return eligible[i].ContentUpdatedAt.Before(eligible[j].ContentUpdatedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	out := make([]string, 0, len(eligible))
	for _, l := range eligible {
		out = append(out, l.ID)
	}
	out = r.pinFeatured(ctx, boardID, now, out)

	r.storeRank(ctx, boardID, out)
	return out, nil
}

// filterEligible drops listings whose merchant subscription no longer allows
// visibility. Missing subscriptions never rank.
func (r *RotationRanker) filterEligible(ctx context.Context, listings []*model.Listing) ([]*model.Listing, error) {
	eligibleByMerchant := make(map[string]bool)
	out := make([]*model.Listing, 0, len(listings))
	for _, l := range listings {
		ok, seen := eligibleByMerchant[l.MerchantID]
		if !seen {
			sub, err := r.subscriptions.GetByMerchant(ctx, l.MerchantID)
			switch {
			case err == repository.ErrNotFound:
				ok = false
			case err != nil:
				return nil, fmt.Errorf("load subscription: %w", err)
			default:
				ok = sub.Eligible()
			}
			eligibleByMerchant[l.MerchantID] = ok
		}
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// pinFeatured moves today's paid featured listing to position 1.
func (r *RotationRanker) pinFeatured(ctx context.Context, boardID string, now time.Time, ids []string) []string {
	today := now.Format(model.FeaturedDateLayout)
	booking, err := r.bookings.PaidForDate(ctx, boardID, today)
	if err != nil {
		if err != repository.ErrNotFound {
			logger.Warn("featured lookup failed", zap.String("board", boardID), zap.Error(err))
		}
		return ids
	}
	for i, id := range ids {
		if id == booking.ListingID {
			if i == 0 {
				return ids
			}
			copy(ids[1:i+1], ids[:i])
			ids[0] = booking.ListingID
			return ids
		}
	}
	return ids
}

func rankCacheKey(boardID string) string { return "rank:board:" + boardID }

func (r *RotationRanker) cachedRank(ctx context.Context, boardID string) ([]string, bool) {
	if r.cache == nil {
		return nil, false
	}
	data, err := r.cache.Get(ctx, rankCacheKey(boardID)).Bytes()
	if err != nil {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

func (r *RotationRanker) storeRank(ctx context.Context, boardID string, ids []string) {
	if r.cache == nil || r.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, rankCacheKey(boardID), payload, r.cacheTTL).Err(); err != nil {
		logger.Warn("rank cache write failed", zap.String("board", boardID), zap.Error(err))
	}
}
