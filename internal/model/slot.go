package model

import (
	"time"
)

// Slot binds a 1-indexed grid coordinate to one listing.
// idx_slot_coord = (board_id, row, col) is the exclusivity constraint for the
// allocator; idx_slot_listing keeps a listing in at most one slot.
type Slot struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	BoardID   string `gorm:"type:varchar(36);not null;index:idx_slot_coord,unique"`
	Row       int    `gorm:"column:row_position;not null;index:idx_slot_coord,unique"`
	Col       int    `gorm:"column:col_position;not null;index:idx_slot_coord,unique"`
	ListingID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_slot_listing"`
	CreatedAt time.Time
}

func (Slot) TableName() string { return "listing_slots" }
