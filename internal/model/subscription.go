package model

import (
	"time"
)

// Subscription plans.
const (
	PlanTrial   = "trial"
	PlanMonthly = "monthly"
	PlanAnnual  = "annual"
)

// Subscription statuses.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// Subscription gates whether a merchant's listings may occupy slots or book
// featured placements. One per merchant.
type Subscription struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)"`
	MerchantID         string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_subscription_merchant"`
	Plan               string     `gorm:"type:varchar(20);not null"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	CurrentPeriodStart time.Time  `gorm:"not null"`
	CurrentPeriodEnd   time.Time  `gorm:"not null"`
	TrialEnd           *time.Time
	// CancelAtPeriodEnd defers cancellation: status stays active until
	// CurrentPeriodEnd, then the rollover sweep flips it to canceled.
	CancelAtPeriodEnd bool `gorm:"not null;default:false"`
	CanceledAt        *time.Time
	// GraceUntil is set when the subscription enters past_due; past that
	// deadline without a successful retry charge the rollover sweep expires it.
	GraceUntil *time.Time
	// Opaque payment-processor references.
	PaymentCustomerID     string `gorm:"type:varchar(100);index"`
	PaymentSubscriptionID string `gorm:"type:varchar(100);index"`
	PaymentMethodID       string `gorm:"type:varchar(100)"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (Subscription) TableName() string { return "subscriptions" }

// Eligible reports whether the merchant may allocate slots or book featured
// placements. Trial plans count while status is active.
func (s *Subscription) Eligible() bool {
	return s.Status == SubscriptionStatusActive
}
