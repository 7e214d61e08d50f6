package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/api/middleware"
	"github.com/localsquares/localsquares/pkg/response"
)

func (h *Handler) FeaturedAvailability(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "14"))
	availability, err := h.orch.FeaturedAvailability(
		c.Request.Context(), c.Param("board_id"), middleware.MerchantID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, availability)
}

type bookFeaturedRequest struct {
	ListingID    string `json:"listing_id" binding:"required,uuid"`
	BoardID      string `json:"board_id" binding:"required,uuid"`
	FeaturedDate string `json:"featured_date" binding:"required,calendardate"`
}

func (h *Handler) BookFeatured(c *gin.Context) {
	var req bookFeaturedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	reservation, err := h.orch.RequestFeaturedBooking(
		c.Request.Context(), req.BoardID, req.FeaturedDate, req.ListingID, middleware.MerchantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, reservation)
}

func (h *Handler) MyBookings(c *gin.Context) {
	includePast := c.Query("include_past") == "true"
	bookings, err := h.orch.MerchantBookings(c.Request.Context(), middleware.MerchantID(c), includePast)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, bookings)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	if err := h.orch.CancelFeaturedBooking(c.Request.Context(), c.Param("id"), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
