package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/utils"
	pkgutils "storefront/pkg/utils"
)

const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "

	// context keys
	UserIDKey   = "user_id"
	UserRoleKey = "user_role"
	ClaimsKey   = "claims"
)

// TokenValidator resolves a bearer token to its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthorizationHeader)
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

func setIdentity(c *gin.Context, claims *utils.JWTClaims) {
	c.Set(UserIDKey, claims.UserID)
	c.Set(UserRoleKey, claims.Role)
	c.Set(ClaimsKey, claims)
}

// RequireAuth rejects requests without a live access token
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, "missing or malformed authorization header")
			return
		}

		claims, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			pkgutils.HandleError(c, err)
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// lets anonymous requests through otherwise
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := validator.ValidateToken(c.Request.Context(), token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := GetUserRole(c)
		if !ok {
			pkgutils.Error(c, pkgutils.CodeUnauthorized, pkgutils.ErrUnauthorized.Message)
			return
		}
		if current != role {
			pkgutils.Error(c, pkgutils.CodeForbidden, pkgutils.ErrForbidden.Message)
			return
		}
		c.Next()
	}
}

// GetUserID returns the authenticated user, false for anonymous requests
func GetUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok && id != 0
}

func GetUserRole(c *gin.Context) (string, bool) {
	v, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}

// GetClaims returns the token claims set by RequireAuth
func GetClaims(c *gin.Context) (*utils.JWTClaims, bool) {
	v, exists := c.Get(ClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*utils.JWTClaims)
	return claims, ok
}
