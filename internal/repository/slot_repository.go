package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localsquares/localsquares/internal/model"
)

// Coord is an occupied grid coordinate, row-major comparable.
type Coord struct {
	Row int `gorm:"column:row_position"`
	Col int `gorm:"column:col_position"`
}

type SlotRepository interface {
	// OccupiedCoords returns the board's occupied coordinates in row-major
	// order.
	OccupiedCoords(ctx context.Context, boardID string) ([]Coord, error)
	// TryBind inserts the slot binding; false means a concurrent allocator
	// won the coordinate (or the listing already holds a slot).
	TryBind(ctx context.Context, slot *model.Slot) (bool, error)
	// Release deletes the binding for a listing. A no-op when none exists.
	Release(ctx context.Context, listingID string) error
	GetByListing(ctx context.Context, listingID string) (*model.Slot, error)
	ListByBoard(ctx context.Context, boardID string) ([]*model.Slot, error)
	ReleaseMany(ctx context.Context, listingIDs []string) (int64, error)
}

type slotRepository struct {
	db *gorm.DB
}

func NewSlotRepository(db *gorm.DB) SlotRepository { return &slotRepository{db: db} }

func (r *slotRepository) OccupiedCoords(ctx context.Context, boardID string) ([]Coord, error) {
	var coords []Coord
	err := r.db.WithContext(ctx).Model(&model.Slot{}).
		Where("board_id = ?", boardID).
		Order("row_position, col_position").
		Find(&coords).Error
	return coords, err
}

func (r *slotRepository) TryBind(ctx context.Context, slot *model.Slot) (bool, error) {
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	// The unique coordinate index arbitrates races; losing is not an error.
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(slot)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *slotRepository) Release(ctx context.Context, listingID string) error {
	return r.db.WithContext(ctx).Delete(&model.Slot{}, "listing_id = ?", listingID).Error
}

func (r *slotRepository) GetByListing(ctx context.Context, listingID string) (*model.Slot, error) {
	var s model.Slot
	if err := r.db.WithContext(ctx).First(&s, "listing_id = ?", listingID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *slotRepository) ListByBoard(ctx context.Context, boardID string) ([]*model.Slot, error) {
	var res []*model.Slot
	err := r.db.WithContext(ctx).
		Where("board_id = ?", boardID).
		Order("row_position, col_position").
		Find(&res).Error
	return res, err
}

func (r *slotRepository) ReleaseMany(ctx context.Context, listingIDs []string) (int64, error) {
	if len(listingIDs) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Delete(&model.Slot{}, "listing_id IN ?", listingIDs)
	return tx.RowsAffected, tx.Error
}
