package model

import (
	"time"
)

// Listing statuses.
const (
	ListingStatusDraft    = "draft"
	ListingStatusActive   = "active"
	ListingStatusPaused   = "paused"
	ListingStatusArchived = "archived"
	ListingStatusReported = "reported"
)

// Listing is a merchant's pin on a board. Image URLs are opaque references
// into external object storage.
type Listing struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	BoardID      string `gorm:"type:varchar(36);not null;index"`
	MerchantID   string `gorm:"type:varchar(36);not null;index"`
	Title        string `gorm:"type:varchar(100);not null"`
	Caption      string `gorm:"type:varchar(200)"`
	ImageURL     string `gorm:"type:text"`
	ThumbnailURL string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(20);not null;default:'draft';index"`
	// ContentUpdatedAt tracks the last content edit, not row updates; it is
	// the second rotation tie-breaker.
	ContentUpdatedAt time.Time
	ExpiresAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Listing) TableName() string { return "listings" }
