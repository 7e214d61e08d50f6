package model

import (
	"time"
)

// Board is a named community channel listings are pinned onto. GridCols is
// fixed per board; rows grow on demand unless GridRows bounds them.
type Board struct {
	ID           string `gorm:"primaryKey;type:varchar(36)"`
	Neighborhood string `gorm:"type:varchar(100);not null;index"`
	Slug         string `gorm:"type:varchar(100);uniqueIndex;not null"`
	DisplayName  string `gorm:"type:varchar(200);not null"`
	Description  string `gorm:"type:text"`
	GridCols     int    `gorm:"not null;default:3"`
	// GridRows = 0 means unbounded: allocation opens new rows as needed.
	GridRows  int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Board) TableName() string { return "boards" }
