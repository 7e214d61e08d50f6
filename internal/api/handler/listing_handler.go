package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/api/middleware"
	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/pkg/response"
)

type createListingRequest struct {
	BoardID      string     `json:"board_id" binding:"required,uuid"`
	Title        string     `json:"title" binding:"required,max=100"`
	Caption      string     `json:"caption" binding:"omitempty,max=200"`
	ImageURL     string     `json:"image_url" binding:"required,url"`
	ThumbnailURL string     `json:"thumbnail_url" binding:"omitempty,url"`
	ExpiresAt    *time.Time `json:"expires_at" binding:"omitempty"`
}

func (h *Handler) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	now := time.Now().UTC()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		response.BadRequest(c, "expires_at must be in the future")
		return
	}
	listing := &model.Listing{
		BoardID:          req.BoardID,
		MerchantID:       middleware.MerchantID(c),
		Title:            req.Title,
		Caption:          req.Caption,
		ImageURL:         req.ImageURL,
		ThumbnailURL:     req.ThumbnailURL,
		Status:           model.ListingStatusDraft,
		ContentUpdatedAt: now,
		ExpiresAt:        req.ExpiresAt,
	}
	if err := h.listings.Create(c.Request.Context(), listing); err != nil {
		fail(c, err)
		return
	}
	response.Created(c, listing)
}

type updateListingRequest struct {
	Title        string `json:"title" binding:"omitempty,max=100"`
	Caption      string `json:"caption" binding:"omitempty,max=200"`
	ImageURL     string `json:"image_url" binding:"omitempty,url"`
	ThumbnailURL string `json:"thumbnail_url" binding:"omitempty,url"`
}

func (h *Handler) UpdateListing(c *gin.Context) {
	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
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

	updates := map[string]any{"content_updated_at": time.Now().UTC()}
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Caption != "" {
		updates["caption"] = req.Caption
	}
	if req.ImageURL != "" {
		updates["image_url"] = req.ImageURL
	}
	if req.ThumbnailURL != "" {
		updates["thumbnail_url"] = req.ThumbnailURL
	}
	if err := h.listings.Update(ctx, listing.ID, updates); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) MyListings(c *gin.Context) {
	listings, err := h.listings.ListByMerchant(c.Request.Context(), middleware.MerchantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, listings)
}

// ActivateListing flips the listing active and allocates its grid slot.
func (h *Handler) ActivateListing(c *gin.Context) {
	slot, err := h.orch.ActivateListing(c.Request.Context(), c.Param("id"), middleware.MerchantID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, slot)
}

func (h *Handler) PauseListing(c *gin.Context) {
	if err := h.orch.PauseListing(c.Request.Context(), c.Param("id"), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) DeleteListing(c *gin.Context) {
	if err := h.orch.DeleteListing(c.Request.Context(), c.Param("id"), middleware.MerchantID(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
