package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/localsquares/localsquares/internal/model"
	"github.com/localsquares/localsquares/internal/repository"
	"github.com/localsquares/localsquares/pkg/logger"
)

// allocateRetries bounds re-scans after losing a coordinate race.
const allocateRetries = 3

// SlotAllocator hands out grid coordinates in row-major order. Exclusivity
// lives in the (board, row, col) unique index, not in any in-process lock, so
// concurrent service instances stay correct.
type SlotAllocator struct {
	slots  repository.SlotRepository
	boards repository.BoardRepository
}

func NewSlotAllocator(slots repository.SlotRepository, boards repository.BoardRepository) *SlotAllocator {
	return &SlotAllocator{slots: slots, boards: boards}
}

// Allocate binds the listing to the first free coordinate of the board.
// Losing a coordinate to a concurrent allocator re-scans from the contested
// frontier; after the retry budget it reports ErrTransientConflict. Bounded
// boards report ErrBoardFull once the scan passes rows*cols.
func (a *SlotAllocator) Allocate(ctx context.Context, boardID, listingID string) (*model.Slot, error) {
	board, err := a.boards.GetByID(ctx, boardID)
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}

	frontier := repository.Coord{Row: 1, Col: 0}
	for attempt := 0; attempt <= allocateRetries; attempt++ {
		coord, err := a.nextFree(ctx, board, frontier)
		if err != nil {
			return nil, err
		}

		slot := &model.Slot{
			BoardID:   boardID,
			Row:       coord.Row,
			Col:       coord.Col,
			ListingID: listingID,
		}
		ok, err := a.slots.TryBind(ctx, slot)
		if err != nil {
			return nil, fmt.Errorf("bind slot: %w", err)
		}
		if ok {
			return slot, nil
		}

		// Someone else took the coordinate (or this listing already holds a
		// slot). The latter is terminal; return the existing binding.
		if existing, err := a.slots.GetByListing(ctx, listingID); err == nil {
			return existing, nil
		}
		frontier = coord
		logger.Debug("slot coordinate contested, rescanning",
			zap.String("board", boardID),
			zap.Int("row", coord.Row), zap.Int("col", coord.Col))
	}
	return nil, ErrTransientConflict
}

// nextFree scans occupied coordinates and returns the first row-major gap at
// or after the frontier.
func (a *SlotAllocator) nextFree(ctx context.Context, board *model.Board, frontier repository.Coord) (repository.Coord, error) {
	occupied, err := a.slots.OccupiedCoords(ctx, board.ID)
	if err != nil {
		return repository.Coord{}, fmt.Errorf("scan slots: %w", err)
	}

	taken := make(map[[2]int]bool, len(occupied))
	for _, c := range occupied {
		taken[[2]int{c.Row, c.Col}] = true
	}

	row, col := frontier.Row, frontier.Col
	for {
		col++
		if col > board.GridCols {
			col = 1
			row++
		}
		if board.GridRows > 0 && row > board.GridRows {
			return repository.Coord{}, ErrBoardFull
		}
		if !taken[[2]int{row, col}] {
			return repository.Coord{Row: row, Col: col}, nil
		}
	}
}

// Release frees the listing's slot. Idempotent: releasing a slot-less listing
// is a no-op. The coordinate becomes reusable; nothing is compacted.
func (a *SlotAllocator) Release(ctx context.Context, listingID string) error {
	return a.slots.Release(ctx, listingID)
}

// Grid returns the board's current slot bindings in row-major order.
func (a *SlotAllocator) Grid(ctx context.Context, boardID string) ([]*model.Slot, error) {
	return a.slots.ListByBoard(ctx, boardID)
}
