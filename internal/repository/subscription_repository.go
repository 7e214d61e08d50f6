package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localsquares/localsquares/internal/model"
)

type SubscriptionRepository interface {
	// CreateUnique inserts the subscription; false when the merchant already
	// has one (unique merchant_id arbitrates concurrent trial starts).
	CreateUnique(ctx context.Context, sub *model.Subscription) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Subscription, error)
	GetByMerchant(ctx context.Context, merchantID string) (*model.Subscription, error)
	GetByPaymentSubscription(ctx context.Context, paymentSubID string) (*model.Subscription, error)
	GetByPaymentCustomer(ctx context.Context, customerID string) (*model.Subscription, error)
	// Transition applies updates only while status is one of from; reports
	// whether the write landed. Every state-machine edge goes through here.
	Transition(ctx context.Context, id string, updates map[string]any, from ...string) (bool, error)
	// SetCancelFlag flips deferred cancellation; the period-end guard keeps
	// reactivation out of closed periods.
	SetCancelFlag(ctx context.Context, id string, flag bool, periodEndAfter time.Time) (bool, error)
	// ListDueRollover returns active subscriptions whose period has closed.
	ListDueRollover(ctx context.Context, now time.Time) ([]*model.Subscription, error)
	// ListPastDue returns past_due subscriptions for grace handling.
	ListPastDue(ctx context.Context, now time.Time) ([]*model.Subscription, error)
	// MerchantsWithStatus returns merchant IDs whose subscription has one of
	// the given statuses.
	MerchantsWithStatus(ctx context.Context, statuses ...string) ([]string, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) CreateUnique(ctx context.Context, sub *model.Subscription) (bool, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(sub)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *subscriptionRepository) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByMerchant(ctx context.Context, merchantID string) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.db.WithContext(ctx).First(&s, "merchant_id = ?", merchantID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByPaymentSubscription(ctx context.Context, paymentSubID string) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.db.WithContext(ctx).First(&s, "payment_subscription_id = ?", paymentSubID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *subscriptionRepository) GetByPaymentCustomer(ctx context.Context, customerID string) (*model.Subscription, error) {
	var s model.Subscription
	if err := r.db.WithContext(ctx).First(&s, "payment_customer_id = ?", customerID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &s, nil
}

func (r *subscriptionRepository) Transition(ctx context.Context, id string, updates map[string]any, from ...string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *subscriptionRepository) SetCancelFlag(ctx context.Context, id string, flag bool, periodEndAfter time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("id = ? AND status = ? AND cancel_at_period_end = ? AND current_period_end > ?",
			id, model.SubscriptionStatusActive, !flag, periodEndAfter).
		Update("cancel_at_period_end", flag)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *subscriptionRepository) ListDueRollover(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND current_period_end <= ?", model.SubscriptionStatusActive, now).
		Find(&res).Error
	return res, err
}

func (r *subscriptionRepository) ListPastDue(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	var res []*model.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SubscriptionStatusPastDue).
		Find(&res).Error
	return res, err
}

func (r *subscriptionRepository) MerchantsWithStatus(ctx context.Context, statuses ...string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status IN ?", statuses).
		Pluck("merchant_id", &ids).Error
	return ids, err
}
