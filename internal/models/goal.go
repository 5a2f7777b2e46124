package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Goal struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID  `json:"userId" gorm:"type:uuid;index;not null"`
	Title       string     `json:"title" gorm:"not null"`
	Description *string    `json:"description"`
	Priority    int        `json:"priority" gorm:"not null;default:3"`
	Deadline    *time.Time `json:"deadline"`
	Progress    int        `json:"progress" gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	Tasks       []Task     `json:"tasks,omitempty" gorm:"foreignKey:GoalID;constraint:OnDelete:CASCADE"`
}

func (g *Goal) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Goal DTOs

// GoalRequest is the body of both create and edit. Deadline accepts
// YYYY-MM-DD or RFC 3339; an empty string clears it.
type GoalRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
	Deadline    *string `json:"deadline"`
	Progress    *int    `json:"progress"`
}
