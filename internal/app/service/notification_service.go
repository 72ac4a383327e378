package service

import (
	"context"
	"errors"

	"github.com/kapehan/kapehan-backend/internal/app/model"
	"github.com/kapehan/kapehan-backend/internal/app/repository"
	"github.com/kapehan/kapehan-backend/internal/websocket"
	"github.com/kapehan/kapehan-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService is the engine's side of the notification boundary:
// enqueue writes a row and pushes it to connected clients, nothing more.
// Actual delivery (mobile push, email) is someone else's job.
type NotificationService interface {
	Enqueue(ctx context.Context, userID uint, notifType model.NotificationType, title, message, link string) error
	EnqueueMany(ctx context.Context, userIDs []uint, notifType model.NotificationType, title, message, link string)
	BroadcastPromotion(ctx context.Context, title, message, link string) (int, error)
	List(ctx context.Context, userID uint, notifType *model.NotificationType, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID, userID uint) (*model.Notification, error)
	MarkAllAsRead(ctx context.Context, userID uint) error
	Delete(ctx context.Context, notificationID, userID uint) error
}

type notificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	hub      *websocket.Hub
}

func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository, hub *websocket.Hub) NotificationService {
	return &notificationService{
		repo:     repo,
		userRepo: userRepo,
		hub:      hub,
	}
}

func (s *notificationService) Enqueue(ctx context.Context, userID uint, notifType model.NotificationType, title, message, link string) error {
	notification := &model.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Link:    link,
		IsRead:  false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	logger.Debug("Notification enqueued", map[string]interface{}{
		"user_id": userID,
		"type":    notifType,
		"title":   title,
	})

	if s.hub != nil {
		unreadCount, _ := s.repo.UnreadCount(ctx, userID)
		payload := map[string]interface{}{
			"type":         "new_notification",
			"unread_count": unreadCount,
			"notification": notification,
		}
		if err := s.hub.SendToUser(userID, payload); err != nil {
			logger.Error("Failed to push notification over websocket", err, map[string]interface{}{
				"user_id": userID,
			})
		}
	}
	return nil
}

// EnqueueMany fans out one notice to several users. Individual failures
// are logged, not propagated; a staff notice must never fail an order.
func (s *notificationService) EnqueueMany(ctx context.Context, userIDs []uint, notifType model.NotificationType, title, message, link string) {
	for _, userID := range userIDs {
		if err := s.Enqueue(ctx, userID, notifType, title, message, link); err != nil {
			logger.Error("Failed to enqueue notification", err, map[string]interface{}{
				"user_id": userID,
				"type":    notifType,
			})
		}
	}
}

// BroadcastPromotion fans a promotion notice out to every customer and
// returns the recipient count.
func (s *notificationService) BroadcastPromotion(ctx context.Context, title, message, link string) (int, error) {
	customerIDs, err := s.userRepo.FindIDsByRole(ctx, model.RoleCustomer)
	if err != nil {
		logger.Error("Failed to resolve promotion recipients", err, nil)
		return 0, err
	}

	s.EnqueueMany(ctx, customerIDs, model.NotificationTypePromotion, title, message, link)

	logger.Info("Promotion broadcast", map[string]interface{}{
		"title":      title,
		"recipients": len(customerIDs),
	})
	return len(customerIDs), nil
}

func (s *notificationService) List(ctx context.Context, userID uint, notifType *model.NotificationType, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	notifications, total, err := s.repo.ListByUser(ctx, userID, notifType, isRead, pageSize, offset)
	if err != nil {
		return nil, 0, 0, err
	}

	unreadCount, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return notifications, total, unreadCount, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, userID uint) (*model.Notification, error) {
	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if notification.UserID != userID {
		return nil, ErrNotificationNotFound
	}
	if notification.IsRead {
		return notification, nil
	}

	if err := s.repo.MarkAsRead(ctx, notificationID); err != nil {
		return nil, err
	}
	notification.IsRead = true
	return notification, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, notificationID, userID uint) error {
	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	if notification.UserID != userID {
		return ErrNotificationNotFound
	}
	return s.repo.Delete(ctx, notificationID)
}
