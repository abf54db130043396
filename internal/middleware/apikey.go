package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyHeader carries the shared secret on every /api request.
const APIKeyHeader = "x-api-key"

const (
	msgKeyMissing = "API key not provided. Use the x-api-key header"
	msgKeyInvalid = "invalid API key"
)

// APIKey rejects requests whose x-api-key header does not equal key:
// 401 when it is absent, 403 when it differs.
func APIKey(key string) gin.HandlerFunc {
	want := []byte(key)
	return func(c *gin.Context) {
		got := c.GetHeader(APIKeyHeader)
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": msgKeyMissing})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": msgKeyInvalid})
			return
		}
		c.Next()
	}
}
