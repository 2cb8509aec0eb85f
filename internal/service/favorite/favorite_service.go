package favorite

import (
	"context"
	"errors"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// FavoriteService tracks which products a user bookmarked and at what price
type FavoriteService interface {
	// AddFavorite snapshots the product's current price and returns the favorite id
	AddFavorite(ctx context.Context, userID, productID uint64) (uint64, error)

	RemoveFavorite(ctx context.Context, userID, productID uint64) error

	// IsFavorited never fails; lookup errors and anonymous callers read as false
	IsFavorited(ctx context.Context, userID, productID uint64) bool

	// ListFavorites newest first, each with the product's current data
	ListFavorites(ctx context.Context, userID uint64) ([]*model.FavoriteView, error)
}

type favoriteService struct {
	favorites repository.FavoriteRepository
	products  repository.ProductRepository
}

// NewFavoriteService creates a favorite service
func NewFavoriteService(favorites repository.FavoriteRepository, products repository.ProductRepository) FavoriteService {
	return &favoriteService{favorites: favorites, products: products}
}

func (s *favoriteService) AddFavorite(ctx context.Context, userID, productID uint64) (uint64, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return 0, utils.NotFound("product %d not found", productID)
		}
		return 0, utils.Internal(err, "failed to load product")
	}

	exists, err := s.favorites.Exists(ctx, userID, productID)
	if err != nil {
		return 0, utils.Internal(err, "failed to check favorite")
	}
	if exists {
		return 0, utils.Conflict("product %d is already in favorites", productID)
	}

	favorite := &model.Favorite{
		UserID:          userID,
		ProductID:       productID,
		PriceAtFavorite: product.Price,
	}
	if err := s.favorites.Create(ctx, favorite); err != nil {
		// lost a race against a concurrent add of the same pair
		if errors.Is(err, repository.ErrDuplicateFavorite) {
			return 0, utils.Conflict("product %d is already in favorites", productID)
		}
		return 0, utils.Internal(err, "failed to add favorite")
	}

	log.WithFields(map[string]interface{}{
		"user_id":     userID,
		"product_id":  productID,
		"favorite_id": favorite.ID,
		"snapshot":    favorite.PriceAtFavorite.StringFixed(2),
	}).Info("Favorite added")
	return favorite.ID, nil
}

func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, productID uint64) error {
	if err := s.favorites.Delete(ctx, userID, productID); err != nil {
		if errors.Is(err, repository.ErrFavoriteNotFound) {
			return utils.NotFound("product %d is not in favorites", productID)
		}
		return utils.Internal(err, "failed to remove favorite")
	}
	return nil
}

func (s *favoriteService) IsFavorited(ctx context.Context, userID, productID uint64) bool {
	if userID == 0 {
		return false
	}
	exists, err := s.favorites.Exists(ctx, userID, productID)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"user_id":    userID,
			"product_id": productID,
			"error":      err.Error(),
		}).Warn("Favorite lookup failed")
		return false
	}
	return exists
}

func (s *favoriteService) ListFavorites(ctx context.Context, userID uint64) ([]*model.FavoriteView, error) {
	favorites, err := s.favorites.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, utils.Internal(err, "failed to list favorites")
	}
	if len(favorites) == 0 {
		return []*model.FavoriteView{}, nil
	}

	ids := make([]uint64, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, utils.Internal(err, "failed to load favorite products")
	}

	views := make([]*model.FavoriteView, 0, len(favorites))
	for _, f := range favorites {
		product, ok := products[f.ProductID]
		if !ok {
			continue
		}
		views = append(views, &model.FavoriteView{
			FavoriteID:      f.ID,
			PriceAtFavorite: f.PriceAtFavorite,
			AddedAt:         f.CreatedAt,
			Product:         product,
		})
	}
	return views, nil
}
