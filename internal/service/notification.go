package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/formbuilder/internal/apperror"
	"github.com/sakif/formbuilder/internal/metrics"
	"github.com/sakif/formbuilder/internal/model"
	"github.com/sakif/formbuilder/internal/repository"
)

const notifyTimeout = 5 * time.Second

// NotificationService appends notifications. Emit never fails its caller.
type NotificationService struct {
	repo    repository.NotificationRepository
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, m *metrics.Metrics, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, metrics: m, logger: logger}
}

// Emit writes one notification after the triggering write has committed.
// It is detached from the request's cancellation; a failure is logged
// and counted, then dropped.
func (s *NotificationService) Emit(ctx context.Context, userID, message string) {
	if s == nil || userID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	n := &model.Notification{UserID: userID, Message: message}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.metrics.NotificationWritten(false)
		s.logger.Warn("notification dropped",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.metrics.NotificationWritten(true)
}

// List returns the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor *model.Actor, limit, offset int) ([]model.Notification, error) {
	if actor == nil {
		return nil, apperror.Unauthenticated("authentication required")
	}
	list, err := s.repo.ListNotifications(ctx, actor.ID, clampPage(limit, offset))
	if err != nil {
		return nil, storageError(s.logger, "listing notifications", err)
	}
	return list, nil
}
