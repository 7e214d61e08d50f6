package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/pkg/response"
)

type createBoardRequest struct {
	Neighborhood string `json:"neighborhood" binding:"required"`
	Slug         string `json:"slug" binding:"required"`
	DisplayName  string `json:"display_name" binding:"required"`
	Description  string `json:"description"`
	GridCols     int    `json:"grid_cols" binding:"omitempty,min=1,max=6"`
	GridRows     int    `json:"grid_rows" binding:"omitempty,min=0"`
}

func (h *Handler) CreateBoard(c *gin.Context) {
	var req createBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.GridCols == 0 {
		req.GridCols = 3
	}
	board := &model.Board{
		Neighborhood: req.Neighborhood,
		Slug:         req.Slug,
		DisplayName:  req.DisplayName,
		Description:  req.Description,
		GridCols:     req.GridCols,
		GridRows:     req.GridRows,
	}
	if err := h.boards.Create(c.Request.Context(), board); err != nil {
		fail(c, err)
		return
	}
	response.Created(c, board)
}

type updateBoardRequest struct {
	DisplayName string `json:"display_name" binding:"omitempty,max=200"`
	Description string `json:"description" binding:"omitempty,max=1000"`
	// GridRows may shrink to 0 (unbounded); GridCols is fixed for the life
	// of the board, changing it would invalidate allocated coordinates.
	GridRows *int `json:"grid_rows" binding:"omitempty,min=0"`
}

func (h *Handler) UpdateBoard(c *gin.Context) {
	var req updateBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updates := map[string]any{}
	if req.DisplayName != "" {
		updates["display_name"] = req.DisplayName
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.GridRows != nil {
		updates["grid_rows"] = *req.GridRows
	}
	if len(updates) == 0 {
		response.Success(c, nil)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.boards.GetByID(ctx, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	if err := h.boards.Update(ctx, c.Param("id"), updates); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// DeleteBoard removes a board that has no allocated slots.
func (h *Handler) DeleteBoard(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.boards.GetByID(ctx, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	slots, err := h.slots.ListByBoard(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if len(slots) > 0 {
		response.Error(c, http.StatusConflict, "board has allocated slots")
		return
	}
	if err := h.boards.Delete(ctx, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *Handler) ListBoards(c *gin.Context) {
	boards, err := h.boards.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, boards)
}

func (h *Handler) GetBoard(c *gin.Context) {
	board, err := h.boards.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, board)
}

// BoardGrid returns the board's slot bindings plus the fair display order —
// the payload the grid UI renders from.
func (h *Handler) BoardGrid(c *gin.Context) {
	ctx := c.Request.Context()
	board, err := h.boards.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	slots, err := h.slots.ListByBoard(ctx, board.ID)
	if err != nil {
		fail(c, err)
		return
	}
	order, err := h.orch.BoardDisplayOrder(ctx, board.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"board":         board,
		"slots":         slots,
		"display_order": order,
	})
}

// BoardDisplayOrder returns only the rotation order.
func (h *Handler) BoardDisplayOrder(c *gin.Context) {
	board, err := h.boards.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	order, err := h.orch.BoardDisplayOrder(c.Request.Context(), board.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"display_order": order})
}
