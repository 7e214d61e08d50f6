package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/api/middleware"
	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/pkg/response"
)

type startTrialRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

func (h *Handler) StartTrial(c *gin.Context) {
	var req startTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sub, err := h.orch.StartTrial(c.Request.Context(), middleware.MerchantID(c), req.PaymentMethodID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, sub)
}

func (h *Handler) RequestCancel(c *gin.Context) {
	if err := h.orch.RequestCancel(c.Request.Context(), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) Reactivate(c *gin.Context) {
	if err := h.orch.Reactivate(c.Request.Context(), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) UpgradePlan(c *gin.Context) {
	if err := h.orch.UpgradePlan(c.Request.Context(), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// SubscriptionStatus returns the merchant's subscription with the summary
// fields the dashboard shows.
func (h *Handler) SubscriptionStatus(c *gin.Context) {
	sub, err := h.orch.SubscriptionStatus(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	now := time.Now().UTC()
	daysRemaining := int(sub.CurrentPeriodEnd.Sub(now).Hours() / 24)
	if daysRemaining < 0 {
		daysRemaining = 0
	}
	response.Success(c, gin.H{
		"subscription":         sub,
		"is_active":            sub.Eligible(),
		"is_trial":             sub.Plan == model.PlanTrial,
		"days_remaining":       daysRemaining,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}
