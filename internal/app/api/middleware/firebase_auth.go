package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/platform/firebase"
	"github.com/studygenius/billing/pkg/logctx"
)

const userEmailKey = "user_email"

// TokenVerifier verifies an identity token.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*firebase.Token, error)
}

// FirebaseAuth requires a valid Firebase ID token in the Authorization
// header. The uid is stored under "user_id" in gin.Context and the request
// context, and added to the request-scoped logger.
func FirebaseAuth(v TokenVerifier, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		idToken, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || idToken == "" {
			abortUnauthorized(c, "Missing or invalid authorization header")
			return
		}
		tok, err := v.Verify(c.Request.Context(), idToken)
		if err != nil {
			logctx.FromGin(c, base).Warnw("auth_token_rejected", "error", err.Error())
			abortUnauthorized(c, "Invalid or expired authentication token")
			return
		}

		logctx.WithUser(c, base, tok.UID)
		c.Set(userEmailKey, tok.Email)

		c.Next()
	}
}

// UserID returns the authenticated uid set by FirebaseAuth.
func UserID(c *gin.Context) string { return c.GetString(logctx.UserIDKey) }

// UserEmail returns the authenticated email set by FirebaseAuth, if any.
func UserEmail(c *gin.Context) string { return c.GetString(userEmailKey) }

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": msg}})
}
