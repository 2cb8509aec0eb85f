package notification

import (
	"context"
	"errors"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// NotificationService per-user inbox
type NotificationService interface {
	// ListUnread newest first
	ListUnread(ctx context.Context, userID uint64) ([]*model.Notification, error)

	// MarkRead flags one notification; NotFound unless it belongs to userID
	MarkRead(ctx context.Context, id, userID uint64) error

	MarkAllRead(ctx context.Context, userID uint64) (int64, error)

	// PurgeAll deletes every notification of every user
	PurgeAll(ctx context.Context) (int64, error)

	// CreateTest writes a debug notification for userID about the first catalog product
	CreateTest(ctx context.Context, userID uint64) (*model.Notification, error)
}

type notificationService struct {
	notifications repository.NotificationRepository
	products      repository.ProductRepository
}

// NewNotificationService creates a notification service
func NewNotificationService(notifications repository.NotificationRepository, products repository.ProductRepository) NotificationService {
	return &notificationService{notifications: notifications, products: products}
}

func (s *notificationService) ListUnread(ctx context.Context, userID uint64) ([]*model.Notification, error) {
	list, err := s.notifications.ListUnread(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err, "failed to list notifications")
	}
	if list == nil {
		list = []*model.Notification{}
	}
	return list, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID uint64) error {
	if err := s.notifications.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return utils.NotFound("notification %d not found", id)
		}
		return utils.Internal(err, "failed to mark notification read")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, utils.Internal(err, "failed to mark notifications read")
	}
	return count, nil
}

func (s *notificationService) PurgeAll(ctx context.Context) (int64, error) {
	count, err := s.notifications.DeleteAll(ctx)
	if err != nil {
		return 0, utils.Internal(err, "failed to purge notifications")
	}
	log.WithField("count", count).Warn("All notifications purged")
	return count, nil
}

func (s *notificationService) CreateTest(ctx context.Context, userID uint64) (*model.Notification, error) {
	product, err := s.products.First(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, utils.NotFound("catalog is empty")
		}
		return nil, utils.Internal(err, "failed to load product")
	}

	n := &model.Notification{
		UserID:    userID,
		ProductID: product.ID,
		Message:   "Test notification: this is how price-drop alerts for '" + product.Name + "' will look.",
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return nil, utils.Internal(err, "failed to create test notification")
	}
	return n, nil
}
