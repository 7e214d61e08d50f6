package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/localsquares/localsquares/internal/model"
)

// ErrNotFound is returned by all repositories for missing rows.
var ErrNotFound = errors.New("not found")

type BoardRepository interface {
	Create(ctx context.Context, board *model.Board) error
	GetByID(ctx context.Context, id string) (*model.Board, error)
	GetBySlug(ctx context.Context, slug string) (*model.Board, error)
	List(ctx context.Context) ([]*model.Board, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
}

type boardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) BoardRepository { return &boardRepository{db: db} }

func (r *boardRepository) Create(ctx context.Context, board *model.Board) error {
	if board.ID == "" {
		board.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(board).Error
}

func (r *boardRepository) GetByID(ctx context.Context, id string) (*model.Board, error) {
	var b model.Board
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *boardRepository) GetBySlug(ctx context.Context, slug string) (*model.Board, error) {
	var b model.Board
	if err := r.db.WithContext(ctx).First(&b, "slug = ?", slug).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *boardRepository) List(ctx context.Context) ([]*model.Board, error) {
	var res []*model.Board
	err := r.db.WithContext(ctx).Order("neighborhood, slug").Find(&res).Error
	return res, err
}

func (r *boardRepository) Update(ctx context.Context, id string, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.Board{}).Where("id = ?", id).Updates(updates).Error
}

func (r *boardRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Board{}, "id = ?", id).Error
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
