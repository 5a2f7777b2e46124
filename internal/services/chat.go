package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatService runs mentor conversations. Threads are keyed by user and a
// client-chosen conversation id and live in the chat_messages table.
type ChatService struct {
	db        *gorm.DB
	goals     *GoalService
	completer Completer
}

func NewChatService(db *gorm.DB, goals *GoalService, completer Completer) *ChatService {
	return &ChatService{db: db, goals: goals, completer: completer}
}

// Reply sends message to the model with the recent thread and the goal list
// as context, then stores the exchange. Nothing is stored when the model
// call fails. A nil goals slice means "use the user's saved goals".
func (s *ChatService) Reply(ctx context.Context, userID uuid.UUID, conversationID, message string, goals []GoalView) (string, error) {
	message = strings.TrimSpace(message)
	conversationID = strings.TrimSpace(conversationID)
	if message == "" || conversationID == "" {
		return "", ValidationError("Message and conversationId are required")
	}
	if err := userExists(s.db.WithContext(ctx), userID); err != nil {
		return "", err
	}

	if goals == nil {
		stored, err := s.goals.List(ctx, userID)
		if err != nil {
			return "", err
		}
		goals = make([]GoalView, 0, len(stored))
		for _, g := range stored {
			goals = append(goals, ProjectGoal(g))
		}
	}

	history, err := s.recent(ctx, userID, conversationID, MaxHistory)
	if err != nil {
		return "", err
	}

	messages := BuildMessages(SystemPrompt(goals), history, message, MaxHistory)
	reply, err := s.completer.Complete(ctx, messages)
	if err != nil {
		slog.Error("chat completion failed", "user_id", userID, "conversation_id", conversationID, "err", err)
		var svcErr *Error
		if errors.As(err, &svcErr) {
			return "", err
		}
		return "", UpstreamError("AI request failed", err)
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		var last int64
		err := tx.Model(&models.ChatMessage{}).
			Where("user_id = ? AND conversation_id = ?", userID, conversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}
		rows := []models.ChatMessage{
			{UserID: userID, ConversationID: conversationID, Role: models.RoleUser, Content: message, Seq: last + 1, CreatedAt: now},
			{UserID: userID, ConversationID: conversationID, Role: models.RoleAssistant, Content: reply, Seq: last + 2, CreatedAt: now},
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return "", dbError(err)
	}
	return reply, nil
}

// History returns a whole thread, oldest first.
func (s *ChatService) History(ctx context.Context, userID uuid.UUID, conversationID string) ([]models.ChatMessage, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ValidationError("conversationId is required")
	}
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Order("seq ASC").
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, dbError(err)
	}
	return msgs, nil
}

// Clear deletes a thread and reports how many messages went with it.
func (s *ChatService) Clear(ctx context.Context, userID uuid.UUID, conversationID string) (int64, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return 0, ValidationError("conversationId is required")
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Delete(&models.ChatMessage{})
	if res.Error != nil {
		return 0, dbError(res.Error)
	}
	return res.RowsAffected, nil
}

// recent loads the newest limit turns of a thread in chronological order.
func (s *ChatService) recent(ctx context.Context, userID uuid.UUID, conversationID string, limit int) ([]ChatTurn, error) {
	var msgs []models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND conversation_id = ?", userID, conversationID).
		Order("seq DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, dbError(err)
	}

	turns := make([]ChatTurn, len(msgs))
	for i, m := range msgs {
		turns[len(msgs)-1-i] = ChatTurn{Role: m.Role, Content: m.Content}
	}
	return turns, nil
}

func userExists(db *gorm.DB, userID uuid.UUID) error {
	var n int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return dbError(err)
	}
	if n == 0 {
		return NotFoundError("User not found")
	}
	return nil
}

// lockUser serialises writers to one user's threads so sequence numbers are
// handed out once. SQLite transactions already hold the write lock.
func lockUser(tx *gorm.DB, userID uuid.UUID) error {
	q := tx.Model(&models.User{}).Where("id = ?", userID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var user models.User
	err := q.Select("id").First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError("User not found")
	}
	return err
}
