package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/sanctuary/internal/apperror"
	"github.com/sakif/sanctuary/internal/model"
	"github.com/sakif/sanctuary/internal/repository"
)

// NotificationService lists and acknowledges notifications, and is what the
// other services call to notify a user.
type NotificationService struct {
	store  repository.NotificationStore
	logger *slog.Logger
	opts   options
}

func NewNotificationService(store repository.NotificationStore, logger *slog.Logger, opts ...Option) *NotificationService {
	return &NotificationService{store: store, logger: logger, opts: buildOptions(opts)}
}

// Notify creates a notification for userID. actionURL may be empty.
func (s *NotificationService) Notify(ctx context.Context, userID, typ, title, message, actionURL string) (*model.Notification, error) {
	n := &model.Notification{
		ID:        newID(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: model.FormatTime(s.opts.now()),
	}
	if actionURL != "" {
		n.ActionURL = &actionURL
	}
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("service/notification: creating for %s: %w", userID, err)
	}
	return created, nil
}

// notifyQuietly is Notify for side effects of another action: a failure is
// logged and never fails the action itself.
func (s *NotificationService) notifyQuietly(ctx context.Context, userID, typ, title, message, actionURL string) {
	if _, err := s.Notify(ctx, userID, typ, title, message, actionURL); err != nil {
		s.logger.Warn("notification dropped",
			slog.String("userID", userID),
			slog.String("type", typ),
			slog.String("error", err.Error()),
		)
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]model.Notification, error) {
	list, err := s.store.ListNotificationsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/notification: listing for %s: %w", userID, err)
	}
	return list, nil
}

// MarkRead marks one of the user's notifications read. Notifications of
// other users are reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*model.Notification, error) {
	n, err := s.store.GetNotificationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/notification: getting %s: %w", id, err)
	}
	if n == nil || n.UserID != userID {
		return nil, apperror.NotFound("notification", id)
	}
	if n.Read {
		return n, nil
	}

	updated, err := s.store.MarkNotificationRead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/notification: marking %s read: %w", id, err)
	}
	if updated == nil {
		return nil, apperror.NotFound("notification", id)
	}
	return updated, nil
}

// MarkAllRead marks every unread notification of the user read and returns
// how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/notification: marking all read for %s: %w", userID, err)
	}
	return n, nil
}
