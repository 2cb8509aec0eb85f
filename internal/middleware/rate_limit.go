package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront/pkg/limiter"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// KeyFunc picks the bucket a request is charged to
type KeyFunc func(c *gin.Context) string

// ByGlobal charges every request to one bucket
func ByGlobal(*gin.Context) string {
	return "global"
}

// ByIP charges the client address
func ByIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByUser charges the authenticated user, falling back to the client address
func ByUser(c *gin.Context) string {
	if userID, ok := GetUserID(c); ok {
		return "user:" + strconv.FormatUint(userID, 10)
	}
	return ByIP(c)
}

// RateLimit rejects requests over the limiter's budget with 429. A limiter
// backend failure lets the request through.
func RateLimit(l limiter.RateLimiter, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.WithFields(map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			}).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		if !allowed {
			log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", "1")
			utils.Error(c, utils.CodeRateLimit, "too many requests, please slow down")
			return
		}

		c.Next()
	}
}
