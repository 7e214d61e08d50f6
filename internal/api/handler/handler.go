package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/internal/service"
	"github.com/localsquares/localsquares/pkg/response"
)

// Handler bundles the HTTP surface over the orchestrator. Board and listing
// CRUD talk to the repositories directly; everything that touches slots,
// rotation, bookings or billing goes through the orchestrator.
type Handler struct {
	orch      *service.Orchestrator
	boards    repository.BoardRepository
	listings  repository.ListingRepository
	analytics repository.AnalyticsRepository
	slots     repository.SlotRepository

	webhookSecret string
	calendar      *service.FeaturedCalendar
	subscriptions *service.SubscriptionManager
}

func NewHandler(
	orch *service.Orchestrator,
	boards repository.BoardRepository,
	listings repository.ListingRepository,
	analytics repository.AnalyticsRepository,
	slots repository.SlotRepository,
	calendar *service.FeaturedCalendar,
	subscriptions *service.SubscriptionManager,
	webhookSecret string,
) *Handler {
	return &Handler{
		orch:          orch,
		boards:        boards,
		listings:      listings,
		analytics:     analytics,
		slots:         slots,
		calendar:      calendar,
		subscriptions: subscriptions,
		webhookSecret: webhookSecret,
	}
}

// fail maps typed service errors onto HTTP statuses. Everything user-visible
// in the taxonomy gets a 4xx; only genuinely unexpected errors become 500s.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		response.Error(c, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrNotOwner):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrBoardFull),
		errors.Is(err, service.ErrDateTaken),
		errors.Is(err, service.ErrAlreadySubscribed):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrSubscriptionNotEligible):
		response.Error(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, service.ErrDateOutOfRange),
		errors.Is(err, service.ErrBookingNotCancelable),
		errors.Is(err, service.ErrListingNotActive),
		errors.Is(err, service.ErrBoardMismatch),
		errors.Is(err, service.ErrReactivateWindowPassed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrTransientConflict):
		response.Error(c, http.StatusServiceUnavailable, "please retry")
	default:
		response.InternalError(c, err)
	}
}
