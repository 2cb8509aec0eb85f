package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"storefront/internal/config"
)

var defaultAllowHeaders = []string{
	"Origin",
	"Content-Length",
	"Content-Type",
	"Authorization",
	"Accept",
	"X-Requested-With",
	RequestIDHeader,
}

var defaultAllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// CORS builds the cross-origin policy from config. An empty origin list
// allows every origin without credentials.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     cfg.AllowMethods,
		AllowHeaders:     cfg.AllowHeaders,
		ExposeHeaders:    cfg.ExposeHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = defaultAllowMethods
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = defaultAllowHeaders
	}
	if len(c.ExposeHeaders) == 0 {
		c.ExposeHeaders = []string{RequestIDHeader}
	}

	if len(cfg.AllowOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = cfg.AllowOrigins
	}

	return cors.New(c)
}
