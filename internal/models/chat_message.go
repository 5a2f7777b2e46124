package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `json:"userId" gorm:"type:uuid;not null;index:idx_chat_thread"`
	ConversationID string    `json:"conversationId" gorm:"not null;index:idx_chat_thread"`
	Role           string    `json:"role" gorm:"not null"` // user, assistant
	Content        string    `json:"content" gorm:"type:text;not null"`
	Seq            int64     `json:"seq" gorm:"not null;default:0;index"` // position within the conversation
	CreatedAt      time.Time `json:"createdAt" gorm:"index"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Chat DTOs

// ChatGoal is the goal shape the dashboard sends along with a chat message.
type ChatGoal struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"` // YYYY-MM-DD or RFC 3339
	Priority    *int    `json:"priority"`
	Progress    *int    `json:"progress"`
}

type ChatRequest struct {
	Message        string     `json:"message"`
	Goals          []ChatGoal `json:"goals"`
	ConversationID string     `json:"conversationId"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}
