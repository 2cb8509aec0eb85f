package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/pkg/utils"
)

// Timeout bounds the request context. Handlers run on the request goroutine
// and observe the deadline through ctx; when it passes before anything was
// written the client gets a 504.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, utils.Response{
				Code:      int(utils.CodeInternalError),
				Kind:      string(utils.KindInternal),
				Message:   "request timed out",
				Timestamp: time.Now().Unix(),
			})
		}
	}
}
