package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/payment"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

type repos struct {
	boards    repository.BoardRepository
	listings  repository.ListingRepository
	slots     repository.SlotRepository
	exposure  repository.ExposureRepository
	subs      repository.SubscriptionRepository
	bookings  repository.BookingRepository
	analytics repository.AnalyticsRepository
	events    repository.EventRepository
}

func newRepos(db *gorm.DB) repos {
	return repos{
		boards:    repository.NewBoardRepository(db),
		listings:  repository.NewListingRepository(db),
		slots:     repository.NewSlotRepository(db),
		exposure:  repository.NewExposureRepository(db),
		subs:      repository.NewSubscriptionRepository(db),
		bookings:  repository.NewBookingRepository(db),
		analytics: repository.NewAnalyticsRepository(db),
		events:    repository.NewEventRepository(db),
	}
}

// fakePayment scripts processor outcomes for tests.
type fakePayment struct {
	declineRenewal bool
	declineSetup   bool
	renewalCharges int
	refunds        []string
	voidedIntents  []string
	createdIntents int
}

func (f *fakePayment) CreateCustomer(_ context.Context, merchantID, _ string) (*payment.Customer, error) {
	if f.declineSetup {
		return nil, payment.ErrChargeDeclined
	}
	return &payment.Customer{ID: "cus_" + merchantID}, nil
}

func (f *fakePayment) ChargeSetupFee(context.Context, string, int) error {
	if f.declineSetup {
		return payment.ErrChargeDeclined
	}
	return nil
}

func (f *fakePayment) CreateRecurring(_ context.Context, customerID string, _ int) (*payment.RecurringSubscription, error) {
	return &payment.RecurringSubscription{ID: "rsub_" + customerID}, nil
}

func (f *fakePayment) ChargeRenewal(context.Context, string, int) error {
	f.renewalCharges++
	if f.declineRenewal {
		return payment.ErrChargeDeclined
	}
	return nil
}

func (f *fakePayment) CreateIntent(_ context.Context, _, _ string, amountCents int) (*payment.Intent, error) {
	f.createdIntents++
	id := "pi_" + uuid.New().String()
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", AmountCents: amountCents}, nil
}

func (f *fakePayment) VoidIntent(_ context.Context, intentID string) error {
	f.voidedIntents = append(f.voidedIntents, intentID)
	return nil
}

func (f *fakePayment) Refund(_ context.Context, intentID string) error {
	f.refunds = append(f.refunds, intentID)
	return nil
}

func (f *fakePayment) CancelRecurring(context.Context, string, bool) error { return nil }

func (f *fakePayment) ReactivateRecurring(context.Context, string) error { return nil }

func (f *fakePayment) UpdateRecurringPlan(context.Context, string, string) error { return nil }

func seedBoard(t *testing.T, r repos, cols, rows int) *model.Board {
	t.Helper()
	b := &model.Board{
		Neighborhood: "downtown",
		Slug:         fmt.Sprintf("downtown-%s", uuid.New().String()[:8]),
		DisplayName:  "Downtown",
		GridCols:     cols,
		GridRows:     rows,
	}
	require.NoError(t, r.boards.Create(context.Background(), b))
	return b
}

func seedListing(t *testing.T, r repos, boardID, merchantID, status string) *model.Listing {
	t.Helper()
	l := &model.Listing{
		BoardID:          boardID,
		MerchantID:       merchantID,
		Title:            "Test Listing",
		Status:           status,
		ContentUpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, r.listings.Create(context.Background(), l))
	return l
}

func seedActiveSubscription(t *testing.T, r repos, merchantID string, clk clock.Clock) *model.Subscription {
	t.Helper()
	now := clk.Now()
	end := now.AddDate(0, 0, 30)
	sub := &model.Subscription{
		MerchantID:         merchantID,
		Plan:               model.PlanMonthly,
		Status:             model.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   end,
	}
	ok, err := r.subs.CreateUnique(context.Background(), sub)
	require.NoError(t, err)
	require.True(t, ok)
	return sub
}

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC))
}
