package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/service/order"
	"storefront/pkg/utils"
)

// UpdateStatusRequest body of PUT /orders/:id/status
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// OrderHandler order handler
type OrderHandler struct {
	orderService order.OrderService
}

// NewOrderHandler creates an order handler
func NewOrderHandler(orderService order.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// PlaceOrder checks out the submitted cart; stock is reserved atomically
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req order.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.orderService.PlaceOrder(c.Request.Context(), userID, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.CreatedResponse(c, result)
}

// ListMyOrders newest first
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListMyOrders(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, orders)
}

// ListOrders admin view over every order
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, pageSize := pageParams(c)

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), page, pageSize)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessPageResponse(c, orders, total, page, pageSize)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	o, err := h.orderService.GetOrder(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.orderService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, o)
}
