package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/goalmentor-api/internal/models"
	"github.com/google/uuid"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// Sender is the part of the FCM client PushService uses.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushService handles sending push notifications via Firebase Cloud Messaging
type PushService struct {
	db     *gorm.DB
	client Sender
}

// NewPushService connects to Firebase with the given service account file.
// Without one, or when Firebase cannot be reached, the service still stores
// device tokens but sends nothing.
func NewPushService(ctx context.Context, db *gorm.DB, serviceAccountPath string) *PushService {
	p := &PushService{db: db}
	if serviceAccountPath == "" {
		slog.Info("fcm: no service account configured, push notifications disabled")
		return p
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		slog.Error("fcm: failed to initialize firebase app", "err", err)
		return p
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		slog.Error("fcm: failed to get messaging client", "err", err)
		return p
	}

	p.client = client
	slog.Info("fcm: push notifications enabled")
	return p
}

// NewPushServiceWithSender is used when the caller already has a client.
func NewPushServiceWithSender(db *gorm.DB, client Sender) *PushService {
	return &PushService{db: db, client: client}
}

func (p *PushService) Enabled() bool {
	return p.client != nil
}

// RegisterDeviceToken saves the FCM token the user's device will be reached at.
func (p *PushService) RegisterDeviceToken(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationError("Token is required")
	}
	res := p.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("fcm_token", token)
	if res.Error != nil {
		return dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return NotFoundError("User not found")
	}
	return nil
}

// NotifyGoalCompleted satisfies Notifier.
func (p *PushService) NotifyGoalCompleted(ctx context.Context, userID uuid.UUID, goal *models.Goal) {
	p.SendToUser(ctx, userID, "Goal completed!", fmt.Sprintf("You finished %q. Nice work.", goal.Title), map[string]string{
		"type":   "goal_completed",
		"goalId": goal.ID.String(),
	})
}

// SendToUser sends a push notification to a user by their ID.
// No-op if push is not configured or user has no FCM token.
func (p *PushService) SendToUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) {
	if p.client == nil {
		return
	}

	var user models.User
	if err := p.db.WithContext(ctx).Select("fcm_token").First(&user, "id = ?", userID).Error; err != nil {
		return
	}
	if user.FCMToken == "" {
		return
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	if _, err := p.client.Send(ctx, msg); err != nil {
		slog.Warn("fcm: failed to send", "user_id", userID, "err", err)
	}
}
