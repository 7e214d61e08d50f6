package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localsquares/localsquares/internal/model"
)

// ExposureRepository exposes the three conditional writes behind the lazy
// rolling-window counter. All three report whether the write landed so the
// caller can sequence reset → increment → insert without read-modify-write
// races.
type ExposureRepository interface {
	// ResetIfStale restarts the window at count 1 only if the stored window
	// start is at or before cutoff.
	ResetIfStale(ctx context.Context, listingID string, cutoff, now time.Time) (bool, error)
	// IncrementInWindow adds 1 only while the stored window start is after
	// cutoff.
	IncrementInWindow(ctx context.Context, listingID string, cutoff time.Time) (bool, error)
	// InsertFresh creates the counter at 1; false when a row already exists.
	InsertFresh(ctx context.Context, listingID string, now time.Time) (bool, error)
	Get(ctx context.Context, listingID string) (*model.ExposureCounter, error)
	// CountsSince returns effective window counts for the listings: counters
	// whose window opened at or before cutoff read as 0.
	CountsSince(ctx context.Context, listingIDs []string, cutoff time.Time) (map[string]int64, error)
}

type exposureRepository struct {
	db *gorm.DB
}

func NewExposureRepository(db *gorm.DB) ExposureRepository { return &exposureRepository{db: db} }

func (r *exposureRepository) ResetIfStale(ctx context.Context, listingID string, cutoff, now time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.ExposureCounter{}).
		Where("listing_id = ? AND window_start <= ?", listingID, cutoff).
		Updates(map[string]any{"count": 1, "window_start": now})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *exposureRepository) IncrementInWindow(ctx context.Context, listingID string, cutoff time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.ExposureCounter{}).
		Where("listing_id = ? AND window_start > ?", listingID, cutoff).
		Update("count", gorm.Expr("count + 1"))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *exposureRepository) InsertFresh(ctx context.Context, listingID string, now time.Time) (bool, error) {
	c := &model.ExposureCounter{ListingID: listingID, Count: 1, WindowStart: now}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *exposureRepository) Get(ctx context.Context, listingID string) (*model.ExposureCounter, error) {
	var c model.ExposureCounter
	if err := r.db.WithContext(ctx).First(&c, "listing_id = ?", listingID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

func (r *exposureRepository) CountsSince(ctx context.Context, listingIDs []string, cutoff time.Time) (map[string]int64, error) {
	out := make(map[string]int64, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}
	var rows []model.ExposureCounter
	if err := r.db.WithContext(ctx).
		Where("listing_id IN ? AND window_start > ?", listingIDs, cutoff).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ListingID] = row.Count
	}
	return out, nil
}
