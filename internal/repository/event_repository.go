package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/localsquares/localsquares/internal/model"
)

type EventRepository interface {
	// Seen reports whether the event was already consumed.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records a webhook event; false means a replay — the
	// event was already consumed. Callers record an event only after its
	// state transition landed, so a failed write leaves the event open for
	// the processor's retry.
	MarkProcessed(ctx context.Context, eventID, kind string, now time.Time) (bool, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository { return &eventRepository{db: db} }

func (r *eventRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ProcessedEvent{}).
		Where("event_id = ?", eventID).Count(&n).Error
	return n > 0, err
}

func (r *eventRepository) MarkProcessed(ctx context.Context, eventID, kind string, now time.Time) (bool, error) {
	rec := &model.ProcessedEvent{EventID: eventID, Kind: kind, ProcessedAt: now}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
