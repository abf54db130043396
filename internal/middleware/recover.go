package middleware

import (
	"net/http"

	"github.com/storagekit/storagekit/internal/logging"

	"github.com/gin-gonic/gin"
)

// Recoverer turns a handler panic into the JSON failure envelope.
func Recoverer(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec, "method", c.Request.Method, "path", c.Request.URL.Path)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
			}
		}()
		c.Next()
	}
}
