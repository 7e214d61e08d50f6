package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localsquares/localsquares/internal/model"
)

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	ListActiveByBoard(ctx context.Context, boardID string) ([]*model.Listing, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*model.Listing, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	// SetStatus transitions status only when the current status is one of
	// from; reports whether the write landed.
	SetStatus(ctx context.Context, id, to string, from ...string) (bool, error)
	Delete(ctx context.Context, id string) error
	// ActiveIDsForMerchants returns active listing IDs owned by any of the
	// given merchants. Used by the eligibility sweep.
	ActiveIDsForMerchants(ctx context.Context, merchantIDs []string) ([]string, error)
	// ExpiredActive returns IDs of active listings whose expiry has passed.
	ExpiredActive(ctx context.Context, now time.Time) ([]string, error)
}

type listingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) ListingRepository { return &listingRepository{db: db} }

func (r *listingRepository) Create(ctx context.Context, listing *model.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	if err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &l, nil
}

func (r *listingRepository) ListActiveByBoard(ctx context.Context, boardID string) ([]*model.Listing, error) {
	var res []*model.Listing
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND status = ?", boardID, model.ListingStatusActive).
		Find(&res).Error
	return res, err
}

func (r *listingRepository) ListByMerchant(ctx context.Context, merchantID string) ([]*model.Listing, error) {
	var res []*model.Listing
	err := r.db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC").
		Find(&res).Error
	return res, err
}

func (r *listingRepository) Update(ctx context.Context, id string, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.Listing{}).Where("id = ?", id).Updates(updates).Error
}

func (r *listingRepository) SetStatus(ctx context.Context, id, to string, from ...string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *listingRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Listing{}, "id = ?", id).Error
}

func (r *listingRepository) ActiveIDsForMerchants(ctx context.Context, merchantIDs []string) ([]string, error) {
	if len(merchantIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("merchant_id IN ? AND status = ?", merchantIDs, model.ListingStatusActive).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *listingRepository) ExpiredActive(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", model.ListingStatusActive, now).
		Pluck("id", &ids).Error
	return ids, err
}
