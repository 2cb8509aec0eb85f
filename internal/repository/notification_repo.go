package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/model"
)

// NotificationRepository notification persistence
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error

	// CreateBatch persists all rows in one transaction. Rows that collide with
	// an existing (user, product, notified_price) are skipped; the return value
	// counts rows actually inserted.
	CreateBatch(ctx context.Context, notifications []*model.Notification) (int64, error)

	// LowestNotifiedByUser maps product id to the lowest price the user was
	// already notified at, for the given products
	LowestNotifiedByUser(ctx context.Context, userID uint64, productIDs []uint64) (map[uint64]decimal.Decimal, error)

	// LowestNotifiedByProduct maps user id to the lowest price that user was
	// already notified at for productID
	LowestNotifiedByProduct(ctx context.Context, productID uint64, userIDs []uint64) (map[uint64]decimal.Decimal, error)

	// ListUnread newest first
	ListUnread(ctx context.Context, userID uint64) ([]*model.Notification, error)

	// MarkRead flags one notification owned by userID; ErrNotificationNotFound otherwise
	MarkRead(ctx context.Context, id, userID uint64) error

	MarkAllRead(ctx context.Context, userID uint64) (int64, error)

	// DeleteAll removes every notification of every user
	DeleteAll(ctx context.Context) (int64, error)
}

type notificationRepository struct {
	db        *gorm.DB
	batchSize int
}

// NewNotificationRepository creates a notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db, batchSize: 200}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*model.Notification) (int64, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	var created int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(notifications); start += r.batchSize {
			end := start + r.batchSize
			if end > len(notifications) {
				end = len(notifications)
			}
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(notifications[start:end])
			if result.Error != nil {
				return result.Error
			}
			created += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

type notifiedPriceRow struct {
	Key   uint64
	Price decimal.Decimal
}

func (r *notificationRepository) lowestNotified(ctx context.Context, keyColumn, filterColumn string, filter uint64, keys []uint64) (map[uint64]decimal.Decimal, error) {
	result := make(map[uint64]decimal.Decimal, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	var rows []notifiedPriceRow
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Select(keyColumn+" AS `key`, MIN(notified_price) AS price").
		Where(filterColumn+" = ? AND "+keyColumn+" IN ? AND notified_price IS NOT NULL", filter, keys).
		Group(keyColumn).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.Key] = row.Price
	}
	return result, nil
}

func (r *notificationRepository) LowestNotifiedByUser(ctx context.Context, userID uint64, productIDs []uint64) (map[uint64]decimal.Decimal, error) {
	return r.lowestNotified(ctx, "product_id", "user_id", userID, productIDs)
}

func (r *notificationRepository) LowestNotifiedByProduct(ctx context.Context, productID uint64, userIDs []uint64) (map[uint64]decimal.Decimal, error) {
	return r.lowestNotified(ctx, "user_id", "product_id", productID, userIDs)
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID uint64) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// already-read rows also report zero affected rows
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *notificationRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Notification{})
	return result.RowsAffected, result.Error
}
