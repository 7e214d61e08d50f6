package model

import (
	"time"
)

// ProcessedEvent dedupes payment-outcome callbacks. Webhook deliveries may be
// replayed or arrive out of order; the first conditional insert wins.
type ProcessedEvent struct {
	EventID     string `gorm:"primaryKey;type:varchar(100)"`
	Kind        string `gorm:"type:varchar(50);index"`
	ProcessedAt time.Time
}

func (ProcessedEvent) TableName() string { return "processed_events" }
