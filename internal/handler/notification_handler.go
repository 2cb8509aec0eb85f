package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/service/notification"
	"storefront/internal/service/pricedrop"
	"storefront/pkg/utils"
)

// NotificationHandler inbox endpoints and the manual price-drop check
type NotificationHandler struct {
	notificationService notification.NotificationService
	detector            pricedrop.Detector
}

func NewNotificationHandler(notificationService notification.NotificationService, detector pricedrop.Detector) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		detector:            detector,
	}
}

func (h *NotificationHandler) ListUnread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := h.notificationService.ListUnread(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, list)
}

// CheckPriceDrops evaluates the caller's favorites now. On a store failure
// the error envelope carries the batch counts.
func (h *NotificationHandler) CheckPriceDrops(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.detector.CheckUser(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, result)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), id, userID); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"id": id, "isRead": true})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"count": count})
}

// PurgeAll admin only
func (h *NotificationHandler) PurgeAll(c *gin.Context) {
	count, err := h.notificationService.PurgeAll(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"count": count})
}

func (h *NotificationHandler) CreateTest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.notificationService.CreateTest(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, n)
}
