package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/observability"
	"github.com/foodloop/foodloop-api/internal/repository"
)

// ErrNotificationNotFound indicates the notification does not exist or
// belongs to someone else.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService persists lifecycle notifications and fans the events
// out to interested consumers. It also satisfies LifecycleNotifier so the
// lifecycle engine can emit without knowing about persistence.
type NotificationService interface {
	LifecycleNotifier
	List(ctx context.Context, caller Caller, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, caller Caller, id uint) (dto.NotificationResponse, error)
}

type notificationService struct {
	repo     repository.NotificationRepository
	nats     *nats.Conn
	natsSubj string
	logger   zerolog.Logger
	now      func() time.Time
}

type notificationEvent struct {
	UserID  string    `json:"user_id"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// NewNotificationService builds the notification fanout. natsConn may be
// nil; events are then persisted only.
func NewNotificationService(repo repository.NotificationRepository, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) NotificationService {
	natsSubj := ""
	if channelBase != "" {
		natsSubj = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:     repo,
		nats:     natsConn,
		natsSubj: natsSubj,
		logger:   logger.With().Str("component", "notification_service").Logger(),
		now:      time.Now,
	}
}

// Notify records a lifecycle event for userID. Failures are logged and
// swallowed; a lost notification never fails the transition that caused it.
func (s *notificationService) Notify(ctx context.Context, userID, eventType, message string) {
	notification := models.Notification{
		UserID:    userID,
		Type:      eventType,
		Message:   message,
		CreatedAt: s.now(),
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("type", eventType).Msg("failed to persist notification")
		return
	}

	observability.NotificationsEmitted().WithLabelValues(eventType).Inc()

	if s.nats == nil || s.natsSubj == "" {
		return
	}

	payload, err := json.Marshal(notificationEvent{
		UserID:  userID,
		Type:    eventType,
		Message: message,
		SentAt:  s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal notification event")
		return
	}
	if err := s.nats.Publish(s.natsSubj, payload); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification event")
	}
}

func (s *notificationService) List(ctx context.Context, caller Caller, limit, offset int) ([]dto.NotificationResponse, error) {
	notifications, err := s.repo.ListByUser(ctx, caller.ID, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, caller Caller, id uint) (dto.NotificationResponse, error) {
	notification, err := s.repo.MarkRead(ctx, id, caller.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		return dto.NotificationResponse{}, err
	}
	return dto.NewNotificationResponse(notification), nil
}
