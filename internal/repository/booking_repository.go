package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localsquares/localsquares/internal/model"
)

type BookingRepository interface {
	// TryReserve inserts a pending booking; false means the (board, date)
	// pair is already held by a pending or paid booking. This insert is the
	// sole source of featured exclusivity.
	TryReserve(ctx context.Context, booking *model.FeaturedBooking) (bool, error)
	GetByID(ctx context.Context, id string) (*model.FeaturedBooking, error)
	GetByPaymentIntent(ctx context.Context, intentID string) (*model.FeaturedBooking, error)
	// BlockingInRange returns pending/paid bookings for the board between two
	// dates inclusive.
	BlockingInRange(ctx context.Context, boardID, fromDate, toDate string) ([]*model.FeaturedBooking, error)
	// PaidForDate returns the paid booking for (board, date), or ErrNotFound.
	PaidForDate(ctx context.Context, boardID, date string) (*model.FeaturedBooking, error)
	// SetPaymentStatus moves payment_status from → to; reports whether the
	// write landed, making webhook replays no-ops.
	SetPaymentStatus(ctx context.Context, id, to string, from ...string) (bool, error)
	// StalePending returns pending bookings created at or before cutoff.
	StalePending(ctx context.Context, cutoff time.Time) ([]*model.FeaturedBooking, error)
	ListByMerchant(ctx context.Context, merchantID, fromDate string) ([]*model.FeaturedBooking, error)
	// BlockingByListing returns pending/paid bookings referencing a listing.
	BlockingByListing(ctx context.Context, listingID string) ([]*model.FeaturedBooking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository { return &bookingRepository{db: db} }

func (r *bookingRepository) TryReserve(ctx context.Context, booking *model.FeaturedBooking) (bool, error) {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = model.PaymentStatusPending
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(booking)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*model.FeaturedBooking, error) {
	var b model.FeaturedBooking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *bookingRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*model.FeaturedBooking, error) {
	var b model.FeaturedBooking
	if err := r.db.WithContext(ctx).First(&b, "payment_intent_id = ?", intentID).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *bookingRepository) BlockingInRange(ctx context.Context, boardID, fromDate, toDate string) ([]*model.FeaturedBooking, error) {
	var res []*model.FeaturedBooking
	err := r.db.WithContext(ctx).
		Where("board_id = ? AND featured_date >= ? AND featured_date <= ? AND payment_status IN ?",
			boardID, fromDate, toDate,
			[]string{model.PaymentStatusPending, model.PaymentStatusPaid}).
		Find(&res).Error
	return res, err
}

func (r *bookingRepository) PaidForDate(ctx context.Context, boardID, date string) (*model.FeaturedBooking, error) {
	var b model.FeaturedBooking
	err := r.db.WithContext(ctx).
		First(&b, "board_id = ? AND featured_date = ? AND payment_status = ?",
			boardID, date, model.PaymentStatusPaid).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *bookingRepository) SetPaymentStatus(ctx context.Context, id, to string, from ...string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&model.FeaturedBooking{}).
		Where("id = ? AND payment_status IN ?", id, from).
		Update("payment_status", to)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *bookingRepository) StalePending(ctx context.Context, cutoff time.Time) ([]*model.FeaturedBooking, error) {
	var res []*model.FeaturedBooking
	err := r.db.WithContext(ctx).
		Where("payment_status = ? AND created_at <= ?", model.PaymentStatusPending, cutoff).
		Find(&res).Error
	return res, err
}

func (r *bookingRepository) ListByMerchant(ctx context.Context, merchantID, fromDate string) ([]*model.FeaturedBooking, error) {
	var res []*model.FeaturedBooking
	q := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID)
	if fromDate != "" {
		q = q.Where("featured_date >= ?", fromDate)
	}
	err := q.Order("featured_date").Find(&res).Error
	return res, err
}

func (r *bookingRepository) BlockingByListing(ctx context.Context, listingID string) ([]*model.FeaturedBooking, error) {
	var res []*model.FeaturedBooking
	err := r.db.WithContext(ctx).
		Where("listing_id = ? AND payment_status IN ?", listingID,
			[]string{model.PaymentStatusPending, model.PaymentStatusPaid}).
		Find(&res).Error
	return res, err
}
