package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/api/middleware"
	"github.com/localsquares/localsquares/pkg/response"
)

type impressionRequest struct {
	ListingID string `json:"listing_id" binding:"required,uuid"`
	BoardID   string `json:"board_id" binding:"required,uuid"`
	SessionID string `json:"session_id" binding:"omitempty,max=64"`
}

// RecordImpression bumps the rotation counter and queues the audit row.
// Anonymous: visitors fire this from the board page.
func (h *Handler) RecordImpression(c *gin.Context) {
	var req impressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.orch.RecordImpression(c.Request.Context(), req.ListingID, req.BoardID, req.SessionID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

type clickRequest struct {
	ListingID string `json:"listing_id" binding:"required,uuid"`
	BoardID   string `json:"board_id" binding:"required,uuid"`
	ClickType string `json:"click_type" binding:"omitempty,oneof=listing contact website map share"`
	SessionID string `json:"session_id" binding:"omitempty,max=64"`
}

func (h *Handler) RecordClick(c *gin.Context) {
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.ClickType == "" {
		req.ClickType = "listing"
	}
	h.orch.RecordClick(c.Request.Context(), req.ListingID, req.BoardID, req.SessionID, req.ClickType)
	response.Success(c, nil)
}

// ListingStats returns the merchant-facing impression/click totals.
func (h *Handler) ListingStats(c *gin.Context) {
	ctx := c.Request.Context()
	listing, err := h.listings.GetByID(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if listing.MerchantID != middleware.MerchantID(c) {
		response.Error(c, 403, "listing not owned by merchant")
		return
	}
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 || days > 90 {
		days = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := h.analytics.StatsForListing(ctx, listing.ID, since)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}
