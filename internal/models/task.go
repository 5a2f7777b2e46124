package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Task struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	GoalID       uuid.UUID `json:"goalId" gorm:"type:uuid;index;not null"`
	Title        string    `json:"title" gorm:"not null"`
	Notes        *string   `json:"notes"`
	Done         bool      `json:"done" gorm:"not null;default:false"`
	Order        int       `json:"order" gorm:"column:order;not null;default:0"`
	EstimateMins *int      `json:"estimateMins"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Task DTOs
type TaskRequest struct {
	Title        string  `json:"title"`
	Notes        *string `json:"notes"`
	EstimateMins *int    `json:"estimateMins"`
}
