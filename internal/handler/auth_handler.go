package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/middleware"
	"storefront/internal/service/auth"
	"storefront/pkg/utils"
)

// AuthHandler authentication handler
type AuthHandler struct {
	authService auth.AuthService
}

// NewAuthHandler creates an authentication handler
func NewAuthHandler(authService auth.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"userId":   user.ID,
		"email":    user.Email,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Login user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	tokenResp, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, tokenResp)
}

// Logout revokes the caller's access token
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		utils.Error(c, utils.CodeUnauthorized, utils.ErrUnauthorized.Message)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nil)
}

// RefreshToken issues a new access token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req auth.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokenResp, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, tokenResp)
}
