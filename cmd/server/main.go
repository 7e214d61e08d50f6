package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/localsquares/localsquares/config"
	"github.com/localsquares/localsquares/internal/api"
	"github.com/localsquares/localsquares/internal/api/handler"
	"github.com/localsquares/localsquares/internal/payment"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/internal/service"
	"github.com/localsquares/localsquares/pkg/clock"
	"github.com/localsquares/localsquares/pkg/database"
	"github.com/localsquares/localsquares/pkg/logger"
	"github.com/localsquares/localsquares/pkg/obs"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Telemetry.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Telemetry.SentryDSN}); err != nil {
			panic(err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracer := must(obs.InitTracer(ctx, "localsquares", cfg.Telemetry.OTLPEndpoint))
	defer func() { _ = shutdownTracer(ctx) }()

	db := must(database.InitDB(cfg))

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err := cache.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, running without cache", zap.Error(err))
			cache = nil
		}
	}

	// Repositories.
	boardRepo := repository.NewBoardRepository(db)
	listingRepo := repository.NewListingRepository(db)
	slotRepo := repository.NewSlotRepository(db)
	exposureRepo := repository.NewExposureRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	eventRepo := repository.NewEventRepository(db)

	clk := clock.System()

	// The repo ships only the demo client; a real processor adapter
	// implements payment.Client and is swapped in here.
	var payClient payment.Client = payment.NewDisabled()

	// Services.
	allocator := service.NewSlotAllocator(slotRepo, boardRepo)
	ranker := service.NewRotationRanker(exposureRepo, listingRepo, bookingRepo, subRepo, clk, cfg.Rotation.WindowHours)
	if cache != nil {
		ranker.WithCache(cache, cfg.Rotation.CacheTTL)
	}
	calendar := service.NewFeaturedCalendar(bookingRepo, listingRepo, subRepo, eventRepo, payClient, clk,
		service.FeaturedCalendarConfig{
			PriceCents:       cfg.Featured.PriceCents,
			MaxAdvanceDays:   cfg.Featured.MaxAdvanceDays,
			AvailabilityDays: cfg.Featured.AvailabilityDays,
			PaymentsEnabled:  cfg.Payments.Enabled,
		})
	subscriptions := service.NewSubscriptionManager(subRepo, eventRepo, payClient, clk,
		service.SubscriptionConfig{
			TrialDays:         cfg.Subscription.TrialDays,
			GraceDays:         cfg.Subscription.GraceDays,
			MonthlyDays:       cfg.Subscription.MonthlyDays,
			AnnualDays:        cfg.Subscription.AnnualDays,
			TrialFeeCents:     cfg.Payments.TrialFeeCents,
			MonthlyPriceCents: cfg.Payments.MonthlyPriceCents,
			AnnualPriceCents:  cfg.Payments.AnnualPriceCents,
			PaymentsEnabled:   cfg.Payments.Enabled,
		})

	auditor := service.NewImpressionAuditor(analyticsRepo, clk, cfg.Rotation.AuditQueue)
	stopAuditor := auditor.Start(cfg.Rotation.AuditWorkers)

	orch := service.NewOrchestrator(listingRepo, allocator, ranker, calendar, subscriptions, auditor)

	sweeper := service.NewSweeper(calendar, subscriptions, subRepo, listingRepo, slotRepo,
		clk, cfg.Featured.ConfirmWindow, cfg.Sweep.Interval)
	stopSweeper := sweeper.Start()

	h := handler.NewHandler(orch, boardRepo, listingRepo, analyticsRepo, slotRepo,
		calendar, subscriptions, cfg.Payments.WebhookSecret)
	router := api.NewRouter(h, api.RouterOptions{
		Mode:          cfg.Server.Mode,
		JWTSecret:     cfg.Auth.JWTSecret,
		ImpressionRPS: cfg.Rotation.ImpressionRPS,
		SentryEnabled: cfg.Telemetry.SentryDSN != "",
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = stopSweeper(shutdownCtx)
	_ = stopAuditor(shutdownCtx)
}
