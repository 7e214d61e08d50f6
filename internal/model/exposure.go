package model

import (
	"time"
)

// ExposureCounter is a listing's rolling 24h impression count. WindowStart
// marks when the current window opened; resets are lazy conditional writes,
// there is no global reset tick.
type ExposureCounter struct {
	ListingID   string    `gorm:"primaryKey;type:varchar(36)"`
	Count       int64     `gorm:"not null;default:0"`
	WindowStart time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

func (ExposureCounter) TableName() string { return "exposure_counters" }
