package api

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/localsquares/localsquares/internal/api/handler"
	"github.com/localsquares/localsquares/internal/api/middleware"
	"github.com/localsquares/localsquares/internal/model"
)

// RouterOptions carries the cross-cutting knobs the router needs.
type RouterOptions struct {
	Mode          string
	JWTSecret     string
	ImpressionRPS int
	SentryEnabled bool
}

// NewRouter assembles the HTTP surface. Public reads (boards, availability,
// impressions) need no identity; everything that mutates merchant state sits
// behind the identity-provider token.
func NewRouter(h *handler.Handler, opts RouterOptions) *gin.Engine {
	gin.SetMode(ginMode(opts.Mode))
	registerValidations()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(otelgin.Middleware("localsquares"))
	if opts.SentryEnabled {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	v1 := r.Group("/api/v1")

	// Public surface.
	v1.GET("/boards", h.ListBoards)
	v1.GET("/boards/:slug", h.GetBoard)
	v1.GET("/boards/:slug/grid", h.BoardGrid)
	v1.GET("/boards/:slug/order", h.BoardDisplayOrder)
	v1.POST("/analytics/impression",
		middleware.PerClientRateLimit(opts.ImpressionRPS), h.RecordImpression)
	v1.POST("/analytics/click",
		middleware.PerClientRateLimit(opts.ImpressionRPS), h.RecordClick)
	v1.POST("/webhooks/payment", h.PaymentWebhook)

	// Merchant surface.
	auth := v1.Group("", middleware.MerchantAuth(opts.JWTSecret))
	auth.POST("/boards", h.CreateBoard)
	auth.PATCH("/boards/:id", h.UpdateBoard)
	auth.DELETE("/boards/:id", h.DeleteBoard)
	auth.POST("/listings", h.CreateListing)
	auth.GET("/listings", h.MyListings)
	auth.PATCH("/listings/:id", h.UpdateListing)
	auth.POST("/listings/:id/activate", h.ActivateListing)
	auth.POST("/listings/:id/pause", h.PauseListing)
	auth.DELETE("/listings/:id", h.DeleteListing)
	auth.GET("/listings/:id/stats", h.ListingStats)

	auth.POST("/subscriptions/trial", h.StartTrial)
	auth.POST("/subscriptions/cancel", h.RequestCancel)
	auth.POST("/subscriptions/reactivate", h.Reactivate)
	auth.POST("/subscriptions/upgrade", h.UpgradePlan)
	auth.GET("/subscriptions/status", h.SubscriptionStatus)

	auth.GET("/featured/:board_id/availability", h.FeaturedAvailability)
	auth.POST("/featured/book", h.BookFeatured)
	auth.GET("/featured/bookings", h.MyBookings)
	auth.DELETE("/featured/bookings/:id", h.CancelBooking)

	return r
}

// registerValidations adds the calendardate binding tag used by booking
// requests.
func registerValidations() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("calendardate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(model.FeaturedDateLayout, fl.Field().String())
		return err == nil
	})
}

func ginMode(mode string) string {
	if mode == "release" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}
