package repository

import (
	"context"

	"gorm.io/gorm"

	"storefront/internal/model"
)

// FavoriteRepository favorites persistence. There is no update path, so the
// price snapshot stays as inserted.
type FavoriteRepository interface {
	// Create inserts a favorite; ErrDuplicateFavorite when (user, product) exists
	Create(ctx context.Context, favorite *model.Favorite) error

	Get(ctx context.Context, userID, productID uint64) (*model.Favorite, error)

	Exists(ctx context.Context, userID, productID uint64) (bool, error)

	// Delete removes the pair; ErrFavoriteNotFound when nothing was removed
	Delete(ctx context.Context, userID, productID uint64) error

	// ListByUser newest first; limit <= 0 means no limit
	ListByUser(ctx context.Context, userID uint64, limit int) ([]*model.Favorite, error)

	// ListByProduct pages through a product's favorites in id order, starting
	// after afterID; limit <= 0 means no limit
	ListByProduct(ctx context.Context, productID, afterID uint64, limit int) ([]*model.Favorite, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository creates a favorite repository
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

func (r *favoriteRepository) Create(ctx context.Context, favorite *model.Favorite) error {
	err := r.db.WithContext(ctx).Create(favorite).Error
	if isDuplicateKey(err) {
		return ErrDuplicateFavorite
	}
	return err
}

func (r *favoriteRepository) Get(ctx context.Context, userID, productID uint64) (*model.Favorite, error) {
	var favorite model.Favorite
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&favorite).Error
	if err != nil {
		return nil, notFound(err, ErrFavoriteNotFound)
	}
	return &favorite, nil
}

func (r *favoriteRepository) Exists(ctx context.Context, userID, productID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Favorite{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&count).Error
	return count > 0, err
}

func (r *favoriteRepository) Delete(ctx context.Context, userID, productID uint64) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.Favorite{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

func (r *favoriteRepository) ListByUser(ctx context.Context, userID uint64, limit int) ([]*model.Favorite, error) {
	var favorites []*model.Favorite
	db := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&favorites).Error
	return favorites, err
}

func (r *favoriteRepository) ListByProduct(ctx context.Context, productID, afterID uint64, limit int) ([]*model.Favorite, error) {
	var favorites []*model.Favorite
	db := r.db.WithContext(ctx).
		Where("product_id = ? AND id > ?", productID, afterID).
		Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&favorites).Error
	return favorites, err
}
