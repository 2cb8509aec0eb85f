package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/internal/service/pricedrop"
	"storefront/pkg/breaker"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

const (
	defaultBestSellers = 10
	maxBestSellers     = 50
)

// CreateProductRequest admin payload for a new product
type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required,notblank,max=200"`
	Description *string         `json:"description,omitempty"`
	Category    *string         `json:"category,omitempty" binding:"omitempty,max=50"`
	ImageURL    *string         `json:"imageUrl,omitempty" binding:"omitempty,max=255"`
	Price       decimal.Decimal `json:"price" binding:"nonnegative"`
	Stock       int             `json:"stock" binding:"nonnegative"`
}

// UpdateProductRequest admin payload; nil fields are left as they are
type UpdateProductRequest struct {
	Name          *string          `json:"name,omitempty" binding:"omitempty,notblank,max=200"`
	Description   *string          `json:"description,omitempty"`
	Category      *string          `json:"category,omitempty" binding:"omitempty,max=50"`
	ImageURL      *string          `json:"imageUrl,omitempty" binding:"omitempty,max=255"`
	Price         *decimal.Decimal `json:"price,omitempty" binding:"omitempty,nonnegative"`
	PreviousPrice *decimal.Decimal `json:"previousPrice,omitempty" binding:"omitempty,nonnegative"`
	Stock         *int             `json:"stock,omitempty" binding:"omitempty,nonnegative"`
}

// Publisher delivers domain events; satisfied by queue.Queue
type Publisher interface {
	Publish(ctx context.Context, topic string, message []byte) error
}

// CatalogService product reads and admin edits
type CatalogService interface {
	GetProduct(ctx context.Context, id uint64) (*model.Product, error)

	// ListProducts pages through the products matching filter
	ListProducts(ctx context.Context, filter repository.ProductFilter, page, pageSize int) ([]*model.Product, int64, error)

	CreateProduct(ctx context.Context, req *CreateProductRequest) (*model.Product, error)

	// UpdateProduct saves the changes and, when the price went down, tells
	// the product's favoriters
	UpdateProduct(ctx context.Context, id uint64, req *UpdateProductRequest) (*model.Product, error)

	DeleteProduct(ctx context.Context, id uint64) error

	BestSellers(ctx context.Context, limit int) ([]*model.BestSeller, error)
}

type catalogService struct {
	products  repository.ProductRepository
	detector  pricedrop.Detector
	publisher Publisher
}

// NewCatalogService creates a catalog service. With a nil publisher price
// drops are evaluated inline.
func NewCatalogService(products repository.ProductRepository, detector pricedrop.Detector, publisher Publisher) CatalogService {
	return &catalogService{
		products:  products,
		detector:  detector,
		publisher: publisher,
	}
}

func (s *catalogService) GetProduct(ctx context.Context, id uint64) (*model.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, utils.NotFound("product %d not found", id)
		}
		return nil, utils.Internal(err, "failed to load product")
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter repository.ProductFilter, page, pageSize int) ([]*model.Product, int64, error) {
	if err := utils.ValidatePage(page, pageSize); err != nil {
		return nil, 0, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}
	products, total, err := s.products.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, utils.Internal(err, "failed to list products")
	}
	return products, total, nil
}

func validateFilter(filter repository.ProductFilter) error {
	switch filter.Sort {
	case repository.SortDefault, repository.SortPriceAsc, repository.SortPriceDesc, repository.SortNewest:
	default:
		return utils.Validation("unknown sort %q", filter.Sort)
	}
	if filter.MinPrice != nil && filter.MinPrice.IsNegative() {
		return utils.Validation("min_price must be non-negative")
	}
	if filter.MaxPrice != nil && filter.MaxPrice.IsNegative() {
		return utils.Validation("max_price must be non-negative")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return utils.Validation("min_price must not exceed max_price")
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*model.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	product := &model.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, utils.Internal(err, "failed to create product")
	}

	log.WithFields(map[string]interface{}{
		"product_id": product.ID,
		"price":      product.Price.StringFixed(2),
	}).Info("Product created")
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id uint64, req *UpdateProductRequest) (*model.Product, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var (
		oldPrice decimal.Decimal
		dropped  bool
	)
	product, err := s.products.Update(ctx, id, func(p *model.Product) ([]string, error) {
		oldPrice = p.Price
		var columns []string

		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
			columns = append(columns, "name")
		}
		if req.Description != nil {
			p.Description = req.Description
			columns = append(columns, "description")
		}
		if req.Category != nil {
			p.Category = req.Category
			columns = append(columns, "category")
		}
		if req.ImageURL != nil {
			p.ImageURL = req.ImageURL
			columns = append(columns, "image_url")
		}
		if req.Stock != nil {
			p.Stock = *req.Stock
			columns = append(columns, "stock")
		}

		// an explicit previous price only sticks when the price itself is unchanged
		if req.PreviousPrice != nil {
			p.PreviousPrice = decimal.NewNullDecimal(*req.PreviousPrice)
			columns = append(columns, "previous_price")
		}
		if req.Price != nil {
			dropped = p.ApplyPrice(*req.Price)
			columns = append(columns, "price")
			if req.PreviousPrice == nil {
				columns = append(columns, "previous_price")
			}
		}
		return columns, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, utils.NotFound("product %d not found", id)
		}
		return nil, utils.Internal(err, "failed to update product")
	}

	if dropped {
		s.priceDropped(ctx, product.ID, oldPrice, product.Price)
	}
	return product, nil
}

// priceDropped hands the drop to the queue, or evaluates it inline when no
// queue is wired or publishing fails. It never fails the update.
func (s *catalogService) priceDropped(ctx context.Context, productID uint64, oldPrice, newPrice decimal.Decimal) {
	fields := map[string]interface{}{
		"product_id": productID,
		"old_price":  oldPrice.StringFixed(2),
		"new_price":  newPrice.StringFixed(2),
	}

	if s.publisher != nil {
		msg := model.PriceChangedMessage{
			RequestID: uuid.NewString(),
			ProductID: productID,
			OldPrice:  oldPrice,
			NewPrice:  newPrice,
			Timestamp: time.Now().Unix(),
		}
		data, err := json.Marshal(msg)
		if err == nil {
			err = s.publisher.Publish(ctx, model.TopicPriceChanged, data)
		}
		if err == nil {
			log.WithFields(fields).Info("Price drop published")
			return
		}
		entry := log.WithFields(fields).WithError(err)
		if breaker.IsRejection(err) {
			// the breaker logged the outage when it opened
			entry.Debug("Price-drop publishing suspended, evaluating inline")
		} else {
			entry.Warn("Failed to publish price drop, evaluating inline")
		}
	}

	if s.detector == nil {
		return
	}
	if _, err := s.detector.NotifyFavoriters(ctx, productID); err != nil {
		log.WithFields(fields).WithError(err).Error("Price-drop notification failed")
	}
}

func (s *catalogService) DeleteProduct(ctx context.Context, id uint64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return utils.NotFound("product %d not found", id)
		}
		return utils.Internal(err, "failed to delete product")
	}
	log.WithField("product_id", id).Info("Product deleted")
	return nil
}

func (s *catalogService) BestSellers(ctx context.Context, limit int) ([]*model.BestSeller, error) {
	if limit <= 0 {
		limit = defaultBestSellers
	}
	if limit > maxBestSellers {
		limit = maxBestSellers
	}
	list, err := s.products.ListBestSellers(ctx, limit)
	if err != nil {
		return nil, utils.Internal(err, "failed to rank products")
	}
	return list, nil
}
