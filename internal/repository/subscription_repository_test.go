package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsquares/localsquares/internal/model"
)

func newSub(merchantID string, periodEnd time.Time) *model.Subscription {
	return &model.Subscription{
		MerchantID:         merchantID,
		Plan:               model.PlanMonthly,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: periodEnd.AddDate(0, 0, -30),
		CurrentPeriodEnd:   periodEnd,
	}
}

func TestCreateUniqueOnePerMerchant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	end := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)

	ok, err := repo.CreateUnique(ctx, newSub("m1", end))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CreateUnique(ctx, newSub("m1", end))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.CreateUnique(ctx, newSub("m2", end))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetCancelFlagPeriodWindow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	end := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)

	sub := newSub("m1", end)
	_, err := repo.CreateUnique(ctx, sub)
	require.NoError(t, err)

	// Setting the same flag twice lands only once.
	ok, err := repo.SetCancelFlag(ctx, sub.ID, true, end.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.SetCancelFlag(ctx, sub.ID, true, end.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing it after the period closed is refused.
	ok, err = repo.SetCancelFlag(ctx, sub.ID, false, end.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// Inside the period it lands.
	ok, err = repo.SetCancelFlag(ctx, sub.ID, false, end.AddDate(0, 0, -10))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransitionGuardsStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()
	end := time.Date(2025, 5, 15, 0, 0, 0, 0, time.UTC)

	sub := newSub("m1", end)
	_, err := repo.CreateUnique(ctx, sub)
	require.NoError(t, err)

	ok, err := repo.Transition(ctx, sub.ID,
		map[string]any{"status": model.SubscriptionStatusPastDue},
		model.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.True(t, ok)

	// The same edge cannot fire twice.
	ok, err = repo.Transition(ctx, sub.ID,
		map[string]any{"status": model.SubscriptionStatusPastDue},
		model.SubscriptionStatusActive)
	require.NoError(t, err)
	assert.False(t, ok)
}
