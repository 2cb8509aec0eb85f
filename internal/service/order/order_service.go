package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/log"
	"storefront/pkg/snowflake"
	"storefront/pkg/utils"
)

var tracer = otel.Tracer("storefront/order")

// DeliveryInfo where the order goes
type DeliveryInfo struct {
	FullName   string  `json:"fullName" binding:"required,notblank,max=100"`
	Phone      string  `json:"phone" binding:"required,notblank,max=30"`
	Email      string  `json:"email" binding:"required,email"`
	Address    string  `json:"address" binding:"required,notblank,max=500"`
	City       string  `json:"city" binding:"required,notblank,max=100"`
	PostalCode string  `json:"postalCode" binding:"required,notblank,max=20"`
	Note       *string `json:"note,omitempty" binding:"omitempty,max=500"`
}

// LineRequest one cart line
type LineRequest struct {
	ProductID uint64          `json:"productId" binding:"required"`
	Quantity  int             `json:"quantity" binding:"min=1"`
	UnitPrice decimal.Decimal `json:"unitPrice" binding:"positive"`
}

// PlaceOrderRequest checkout payload
type PlaceOrderRequest struct {
	DeliveryInfo DeliveryInfo  `json:"deliveryInfo"`
	Lines        []LineRequest `json:"lines" binding:"required,min=1,dive"`
}

// PlaceOrderResult what the client gets back after checkout
type PlaceOrderResult struct {
	OrderID uint64          `json:"orderId"`
	OrderNo string          `json:"orderNo"`
	Total   decimal.Decimal `json:"total"`
	Status  string          `json:"status"`
}

// Recorder receives checkout outcomes, typically for metrics
type Recorder interface {
	RecordOrder(status string)
}

// OrderService checkout and order administration
type OrderService interface {
	// PlaceOrder validates the cart, reserves stock and stores the order atomically
	PlaceOrder(ctx context.Context, userID uint64, req *PlaceOrderRequest) (*PlaceOrderResult, error)

	// ListMyOrders newest first
	ListMyOrders(ctx context.Context, userID uint64) ([]*model.Order, error)

	ListOrders(ctx context.Context, page, pageSize int) ([]*model.Order, int64, error)

	GetOrder(ctx context.Context, id uint64) (*model.Order, error)

	UpdateStatus(ctx context.Context, id uint64, status string) (*model.Order, error)
}

type orderService struct {
	orders   repository.OrderRepository
	ids      *snowflake.Generator
	recorder Recorder
	now      func() time.Time
}

// NewOrderService creates an order service; recorder may be nil
func NewOrderService(orders repository.OrderRepository, ids *snowflake.Generator, recorder Recorder) OrderService {
	return &orderService{
		orders:   orders,
		ids:      ids,
		recorder: recorder,
		now:      time.Now,
	}
}

// CalculateTotal sums unit price times quantity over the lines
func CalculateTotal(lines []LineRequest) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Validate runs the binding rules for callers that bypass the HTTP layer.
// Every failing field is reported in one validation error.
func (r *PlaceOrderRequest) Validate() error {
	return utils.ValidateStruct(r)
}

func (s *orderService) PlaceOrder(ctx context.Context, userID uint64, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	ctx, span := tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user_id", int64(userID)), attribute.Int("lines", len(req.Lines)))

	if err := req.Validate(); err != nil {
		s.record("invalid")
		return nil, err
	}

	total := CalculateTotal(req.Lines)
	info := req.DeliveryInfo
	order := &model.Order{
		OrderNo:    s.ids.NextOrderNo(),
		UserID:     userID,
		Total:      total,
		Status:     model.OrderStatusPreparing,
		FullName:   strings.TrimSpace(info.FullName),
		Phone:      strings.TrimSpace(info.Phone),
		Email:      strings.TrimSpace(info.Email),
		Address:    strings.TrimSpace(info.Address),
		City:       strings.TrimSpace(info.City),
		PostalCode: strings.TrimSpace(info.PostalCode),
		Note:       info.Note,
		Lines:      make([]model.OrderLine, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		order.Lines = append(order.Lines, model.OrderLine{
			ProductID: l.ProductID,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Amount:    l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}

	if err := s.orders.PlaceOrder(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		return nil, s.checkoutError(userID, err)
	}

	s.record("created")
	log.WithFields(map[string]interface{}{
		"order_id": order.ID,
		"order_no": order.OrderNo,
		"user_id":  userID,
		"total":    total.StringFixed(2),
		"lines":    len(order.Lines),
	}).Info("Order placed")

	return &PlaceOrderResult{
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		Total:   order.Total,
		Status:  order.Status,
	}, nil
}

func (s *orderService) checkoutError(userID uint64, err error) error {
	var stockErr *repository.InsufficientStockError
	var missing *repository.MissingProductError
	switch {
	case errors.As(err, &stockErr):
		s.record("insufficient_stock")
		return utils.NewError(utils.CodeInsufficientStock,
			fmt.Sprintf("insufficient stock for '%s': requested %d, available %d",
				stockErr.Name, stockErr.Requested, stockErr.Available)).
			WithDetails(map[string]interface{}{
				"productId": stockErr.ProductID,
				"name":      stockErr.Name,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			})
	case errors.As(err, &missing):
		s.record("invalid")
		return utils.Validation("product %d does not exist", missing.ProductID).
			WithDetails(map[string]interface{}{"productId": missing.ProductID})
	default:
		s.record("failed")
		log.WithFields(map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		}).Error("Checkout transaction failed")
		return utils.Internal(err, "failed to place order")
	}
}

func (s *orderService) record(status string) {
	if s.recorder != nil {
		s.recorder.RecordOrder(status)
	}
}

func (s *orderService) ListMyOrders(ctx context.Context, userID uint64) ([]*model.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err, "failed to list orders")
	}
	if orders == nil {
		orders = []*model.Order{}
	}
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, page, pageSize int) ([]*model.Order, int64, error) {
	if err := utils.ValidatePage(page, pageSize); err != nil {
		return nil, 0, err
	}
	orders, total, err := s.orders.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, utils.Internal(err, "failed to list orders")
	}
	return orders, total, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uint64) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, utils.NotFound("order %d not found", id)
		}
		return nil, utils.Internal(err, "failed to load order")
	}
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, id uint64, status string) (*model.Order, error) {
	if !model.ValidOrderStatus(status) {
		return nil, utils.Validation("unknown order status %q", status)
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	order.SetStatus(status, s.now())
	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, utils.NotFound("order %d not found", id)
		}
		return nil, utils.Internal(err, "failed to update order status")
	}

	log.WithFields(map[string]interface{}{
		"order_id": id,
		"status":   status,
	}).Info("Order status updated")
	return order, nil
}
