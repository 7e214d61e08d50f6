package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localsquares/localsquares/internal/model"
)

// ListingStats aggregates audit rows for one listing.
type ListingStats struct {
	Impressions int64
	Clicks      int64
}

type AnalyticsRepository interface {
	InsertImpression(ctx context.Context, imp *model.Impression) error
	InsertClick(ctx context.Context, click *model.Click) error
	StatsForListing(ctx context.Context, listingID string, since time.Time) (*ListingStats, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository { return &analyticsRepository{db: db} }

func (r *analyticsRepository) InsertImpression(ctx context.Context, imp *model.Impression) error {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(imp).Error
}

func (r *analyticsRepository) InsertClick(ctx context.Context, click *model.Click) error {
	if click.ID == "" {
		click.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(click).Error
}

func (r *analyticsRepository) StatsForListing(ctx context.Context, listingID string, since time.Time) (*ListingStats, error) {
	var stats ListingStats
	if err := r.db.WithContext(ctx).Model(&model.Impression{}).
		Where("listing_id = ? AND created_at >= ?", listingID, since).
		Count(&stats.Impressions).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Click{}).
		Where("listing_id = ? AND created_at >= ?", listingID, since).
		Count(&stats.Clicks).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
