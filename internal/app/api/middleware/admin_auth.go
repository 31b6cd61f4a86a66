package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studygenius/billing/pkg/response"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminAPIKey guards operator endpoints with a shared key.
func AdminAPIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AdminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid admin key"))
			return
		}
		c.Next()
	}
}
