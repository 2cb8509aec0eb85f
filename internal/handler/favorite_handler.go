package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/service/favorite"
	"storefront/pkg/utils"
)

// AddFavoriteRequest body of POST /favorites
type AddFavoriteRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
}

// FavoriteHandler favorites endpoints
type FavoriteHandler struct {
	favoriteService favorite.FavoriteService
}

func NewFavoriteHandler(favoriteService favorite.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favoriteService: favoriteService}
}

// ListFavorites newest first, with each product's current data
func (h *FavoriteHandler) ListFavorites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	views, err := h.favoriteService.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, views)
}

func (h *FavoriteHandler) AddFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req AddFavoriteRequest
	if !bindJSON(c, &req) {
		return
	}

	id, err := h.favoriteService.AddFavorite(c.Request.Context(), userID, req.ProductID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"favoriteId": id})
}

func (h *FavoriteHandler) RemoveFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	if err := h.favoriteService.RemoveFavorite(c.Request.Context(), userID, productID); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"removed": true})
}

// CheckFavorited never fails: anonymous callers and bad ids read as false
func (h *FavoriteHandler) CheckFavorited(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	productID, err := utils.ValidateID(c.Param("productId"))
	if err != nil || userID == 0 {
		utils.SuccessResponse(c, gin.H{"favorited": false})
		return
	}

	utils.SuccessResponse(c, gin.H{
		"favorited": h.favoriteService.IsFavorited(c.Request.Context(), userID, productID),
	})
}
