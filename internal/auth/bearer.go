package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/webdc/firstblood/internal/metrics"
)

// BearerMiddleware rejects any request whose Authorization header does not
// carry the shared secret. It runs before handlers, so a bad token produces
// no side effects (no insert, no claim).
func BearerMiddleware(token string) gin.HandlerFunc {
	secret := []byte(token)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		supplied, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(supplied)), secret) != 1 {
			metrics.Unauthorized.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization code"})
			return
		}
		c.Next()
	}
}
