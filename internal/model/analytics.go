package model

import (
	"time"
)

// Impression is the analytics audit row behind the exposure counters. Written
// asynchronously; losing one under load is acceptable, the counter is not.
type Impression struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ListingID string    `gorm:"type:varchar(36);not null;index"`
	BoardID   string    `gorm:"type:varchar(36);not null;index"`
	SessionID string    `gorm:"type:varchar(64);index"`
	CreatedAt time.Time `gorm:"index"`
}

func (Impression) TableName() string { return "impressions" }

// Click types.
const (
	ClickTypeListing = "listing"
	ClickTypeContact = "contact"
	ClickTypeWebsite = "website"
	ClickTypeMap     = "map"
	ClickTypeShare   = "share"
)

type Click struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ListingID string    `gorm:"type:varchar(36);not null;index"`
	BoardID   string    `gorm:"type:varchar(36);not null;index"`
	ClickType string    `gorm:"type:varchar(20);not null"`
	SessionID string    `gorm:"type:varchar(64);index"`
	CreatedAt time.Time `gorm:"index"`
}

func (Click) TableName() string { return "clicks" }
