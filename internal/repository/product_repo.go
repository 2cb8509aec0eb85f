package repository

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/model"
)

// ProductSort orders a filtered listing
type ProductSort string

const (
	SortDefault   ProductSort = ""
	SortPriceAsc  ProductSort = "price_asc"
	SortPriceDesc ProductSort = "price_desc"
	SortNewest    ProductSort = "newest"
)

// ProductFilter narrows a listing; zero fields match everything
type ProductFilter struct {
	// Query matches name or description, case-insensitively under the
	// default collation
	Query    string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     ProductSort
}

// ProductMutation edits a locked product in place and returns the columns
// it changed. Returning no columns skips the write.
type ProductMutation func(product *model.Product) ([]string, error)

// ProductRepository catalog persistence
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error

	GetByID(ctx context.Context, id uint64) (*model.Product, error)

	// GetByIDs returns the products that exist, keyed by id
	GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Product, error)

	// First returns the product with the lowest id
	First(ctx context.Context) (*model.Product, error)

	List(ctx context.Context, filter ProductFilter, page, pageSize int) ([]*model.Product, int64, error)

	// Update locks the row, runs mutate on it and writes back only the
	// columns mutate reports, all in one transaction. Columns it leaves out,
	// such as a stock level a concurrent checkout just lowered, are untouched.
	Update(ctx context.Context, id uint64, mutate ProductMutation) (*model.Product, error)

	// Delete removes the product together with the favorites pointing at it
	Delete(ctx context.Context, id uint64) error

	// ListBestSellers ranks products by how many order lines reference them
	ListBestSellers(ctx context.Context, limit int) ([]*model.BestSeller, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return &product, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Product, error) {
	result := make(map[uint64]*model.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var products []*model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

func (r *productRepository) First(ctx context.Context) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).Order("id ASC").First(&product).Error; err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter ProductFilter, page, pageSize int) ([]*model.Product, int64, error) {
	var products []*model.Product
	var total int64

	if err := r.db.WithContext(ctx).Model(&model.Product{}).Scopes(filterProducts(filter)).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Scopes(filterProducts(filter)).
		Order(productOrder(filter.Sort)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&products).Error
	return products, total, err
}

func filterProducts(filter ProductFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if q := strings.TrimSpace(filter.Query); q != "" {
			like := "%" + q + "%"
			db = db.Where("name LIKE ? OR description LIKE ?", like, like)
		}
		if filter.Category != "" {
			db = db.Where("category = ?", filter.Category)
		}
		if filter.MinPrice != nil {
			db = db.Where("price >= ?", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			db = db.Where("price <= ?", *filter.MaxPrice)
		}
		return db
	}
}

func productOrder(sort ProductSort) string {
	switch sort {
	case SortPriceAsc:
		return "price ASC, id ASC"
	case SortPriceDesc:
		return "price DESC, id ASC"
	case SortNewest:
		return "id DESC"
	default:
		return "id ASC"
	}
}

func (r *productRepository) Update(ctx context.Context, id uint64, mutate ProductMutation) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&product).Error
		if err != nil {
			return notFound(err, ErrProductNotFound)
		}

		columns, err := mutate(&product)
		if err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		return tx.Model(&product).Select(columns).Updates(&product).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&model.Favorite{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Product{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return nil
	})
}

func (r *productRepository) ListBestSellers(ctx context.Context, limit int) ([]*model.BestSeller, error) {
	var sellers []*model.BestSeller
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select("products.*, COUNT(order_lines.id) AS line_count").
		Joins("JOIN order_lines ON order_lines.product_id = products.id").
		Group("products.id").
		Order("line_count DESC, products.id ASC").
		Limit(limit).
		Scan(&sellers).Error
	return sellers, err
}
