package repository

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront/internal/model"
)

// OrderRepository order persistence
type OrderRepository interface {
	// PlaceOrder decrements stock for every line and inserts the order with
	// its lines in a single transaction. A line that cannot be served rolls
	// everything back with *MissingProductError or *InsufficientStockError.
	PlaceOrder(ctx context.Context, order *model.Order) error

	GetByID(ctx context.Context, id uint64) (*model.Order, error)

	// ListByUser newest first
	ListByUser(ctx context.Context, userID uint64) ([]*model.Order, error)

	List(ctx context.Context, page, pageSize int) ([]*model.Order, int64, error)

	// UpdateStatus persists status and delivered_at
	UpdateStatus(ctx context.Context, order *model.Order) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates an order repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) PlaceOrder(ctx context.Context, order *model.Order) error {
	// fixed lock order across concurrent checkouts
	lines := make([]*model.OrderLine, len(order.Lines))
	for i := range order.Lines {
		lines[i] = &order.Lines[i]
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint64, 0, len(lines))
		for _, line := range lines {
			result := tx.Model(&model.Product{}).
				Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", line.Quantity))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return r.explainShortfall(tx, line)
			}
			ids = append(ids, line.ProductID)
		}

		var products []model.Product
		if err := tx.Select("id", "name").Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		names := make(map[uint64]string, len(products))
		for _, p := range products {
			names[p.ID] = p.Name
		}

		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		for i := range order.Lines {
			order.Lines[i].OrderID = order.ID
			order.Lines[i].ProductName = names[order.Lines[i].ProductID]
		}
		return tx.Create(&order.Lines).Error
	})
}

func (r *orderRepository) explainShortfall(tx *gorm.DB, line *model.OrderLine) error {
	var product model.Product
	err := tx.Select("id", "name", "stock").Where("id = ?", line.ProductID).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &MissingProductError{ProductID: line.ProductID}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{
		ProductID: product.ID,
		Name:      product.Name,
		Requested: line.Quantity,
		Available: product.Stock,
	}
}

func (r *orderRepository) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint64) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) List(ctx context.Context, page, pageSize int) ([]*model.Order, int64, error) {
	var orders []*model.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Order{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *model.Order) error {
	result := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":       order.Status,
			"delivered_at": order.DeliveredAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
