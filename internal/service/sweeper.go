package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/logger"
)

// Sweeper is the reconciliation task: it converges stuck pending states the
// asynchronous payment callbacks left behind, rolls billing periods over, and
// releases slots for merchants whose subscription lapsed. Nothing here is on
// any request path.
type Sweeper struct {
	calendar      *FeaturedCalendar
	subscriptions *SubscriptionManager
	subRepo       repository.SubscriptionRepository
	listings      repository.ListingRepository
	slots         repository.SlotRepository
	clock         clock.Clock
	confirmWindow time.Duration
	interval      time.Duration
}

func NewSweeper(
	calendar *FeaturedCalendar,
	subscriptions *SubscriptionManager,
	subRepo repository.SubscriptionRepository,
	listings repository.ListingRepository,
	slots repository.SlotRepository,
	clk clock.Clock,
	confirmWindow, interval time.Duration,
) *Sweeper {
	if clk == nil {
		clk = clock.System()
	}
	if confirmWindow <= 0 {
		confirmWindow = 15 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		calendar:      calendar,
		subscriptions: subscriptions,
		subRepo:       subRepo,
		listings:      listings,
		slots:         slots,
		clock:         clk,
		confirmWindow: confirmWindow,
		interval:      interval,
	}
}

// Start runs the sweep loop; the returned func stops it.
func (s *Sweeper) Start() func(context.Context) error {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-stop:
				return
			}
		}
	}()
	return func(ctx context.Context) error {
		close(stop)
		select {
		case <-done:
		case <-ctx.Done():
		}
		return nil
	}
}

// RunOnce executes one full sweep pass. Exposed for tests and for a manual
// admin trigger.
func (s *Sweeper) RunOnce(ctx context.Context) {
	if n, err := s.calendar.ExpireStalePending(ctx, s.confirmWindow); err != nil {
		logger.Error("booking reconciliation failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("reconciled stale bookings", zap.Int("count", n))
	}

	if n, err := s.subscriptions.RolloverDue(ctx); err != nil {
		logger.Error("subscription rollover failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("rolled over subscriptions", zap.Int("count", n))
	}

	if _, err := s.subscriptions.RetryPastDue(ctx); err != nil {
		logger.Error("past_due retry failed", zap.Error(err))
	}

	s.releaseIneligible(ctx)
	s.archiveExpired(ctx)
}

// archiveExpired retires active listings whose expires_at has passed, freeing
// their board slots. Listings without an expiry never match.
func (s *Sweeper) archiveExpired(ctx context.Context) {
	ids, err := s.listings.ExpiredActive(ctx, s.clock.Now())
	if err != nil {
		logger.Error("expiry scan failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	if _, err := s.slots.ReleaseMany(ctx, ids); err != nil {
		logger.Error("slot release failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := s.listings.SetStatus(ctx, id, model.ListingStatusArchived, model.ListingStatusActive); err != nil {
			logger.Error("archive listing failed", zap.String("listing", id), zap.Error(err))
		}
	}
	logger.Info("archived expired listings", zap.Int("count", len(ids)))
}

// releaseIneligible vacates slots (and pauses listings) for merchants whose
// subscription is expired or canceled. Eager release never happens on the
// transition itself — only here, so a merchant mid-grace keeps their slots.
func (s *Sweeper) releaseIneligible(ctx context.Context) {
	merchants, err := s.subRepo.MerchantsWithStatus(ctx,
		model.SubscriptionStatusExpired, model.SubscriptionStatusCanceled)
	if err != nil {
		logger.Error("eligibility scan failed", zap.Error(err))
		return
	}
	if len(merchants) == 0 {
		return
	}
	ids, err := s.listings.ActiveIDsForMerchants(ctx, merchants)
	if err != nil {
		logger.Error("listing scan failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	released, err := s.slots.ReleaseMany(ctx, ids)
	if err != nil {
		logger.Error("slot release failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := s.listings.SetStatus(ctx, id, model.ListingStatusPaused, model.ListingStatusActive); err != nil {
			logger.Error("pause listing failed", zap.String("listing", id), zap.Error(err))
		}
	}
	logger.Info("released slots for lapsed merchants",
		zap.Int("listings", len(ids)), zap.Int64("slots", released))
}
