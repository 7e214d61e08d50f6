package model

import (
	"time"
)

// Featured booking payment statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// FeaturedDateLayout is the calendar-date format for featured bookings.
const FeaturedDateLayout = "2006-01-02"

// FeaturedBooking reserves the single featured placement of a board for one
// calendar date. The partial unique index on (board_id, featured_date) over
// pending/paid rows is the sole source of exclusivity: failed and refunded
// rows stay for audit but free the date.
type FeaturedBooking struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	ListingID    string `gorm:"type:varchar(36);not null;index"`
	// The index predicate stays comma-free: gorm splits index-tag settings
	// on commas, so an IN list would truncate the WHERE clause.
	BoardID      string `gorm:"type:varchar(36);not null;index:idx_featured_board_date,unique,where:payment_status = 'pending' OR payment_status = 'paid'"`
	MerchantID   string `gorm:"type:varchar(36);not null;index"`
	FeaturedDate string `gorm:"type:varchar(10);not null;index:idx_featured_board_date,unique,where:payment_status = 'pending' OR payment_status = 'paid'"`
	AmountCents  int    `gorm:"not null"`
	// PaymentIntentID correlates the asynchronous payment outcome callback.
	PaymentIntentID string `gorm:"type:varchar(100);index"`
	PaymentStatus   string `gorm:"type:varchar(20);not null;default:'pending';index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (FeaturedBooking) TableName() string { return "featured_bookings" }

// Blocking reports whether this booking still occupies its date.
func (b *FeaturedBooking) Blocking() bool {
	return b.PaymentStatus == PaymentStatusPending || b.PaymentStatus == PaymentStatusPaid
}
