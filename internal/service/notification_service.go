package service

import (
	"context"
	"log/slog"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

// NotificationService records user-facing events. Every call is
// fire-and-forget: a failed insert is logged and never surfaces to the
// operation that produced it.
type NotificationService interface {
	Notify(ctx context.Context, userID int64, kind, title, message string, metadata map[string]string)
	List(ctx context.Context, userID int64) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID int64) error
}

type notificationService struct {
	nr repository.NotificationRepository
}

func NewNotificationService(nr repository.NotificationRepository) NotificationService {
	return &notificationService{nr: nr}
}

func (s *notificationService) Notify(ctx context.Context, userID int64, kind, title, message string, metadata map[string]string) {
	n := &models.Notification{
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Message:  message,
		Metadata: metadata,
	}
	if _, err := s.nr.Create(ctx, n); err != nil {
		slog.Error("failed to record notification", "user_id", userID, "title", title, "error", err.Error())
	}
}

func (s *notificationService) List(ctx context.Context, userID int64) ([]*models.Notification, error) {
	return s.nr.ListByUserID(ctx, userID, 0)
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID int64) error {
	return s.nr.MarkRead(ctx, id, userID)
}
