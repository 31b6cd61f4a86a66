package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studygenius/billing/internal/platform/firebase"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, idToken string) (*firebase.Token, error) {
	if idToken == "good" {
		return &firebase.Token{UID: "uid_1", Email: "a@b.c"}, nil
	}
	return nil, firebase.ErrInvalidToken
}

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(FirebaseAuth(stubVerifier{}, zap.NewNop().Sugar()))
	r.GET("/me", func(c *gin.Context) {
		ctxUID, _ := c.Request.Context().Value("user_id").(string)
		c.JSON(http.StatusOK, gin.H{"uid": UserID(c), "email": UserEmail(c), "ctx_uid": ctxUID})
	})
	return r
}

func TestFirebaseAuth(t *testing.T) {
	r := newAuthRouter()

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{name: "missing header", header: "", code: http.StatusUnauthorized, body: `{"error":{"message":"Missing or invalid authorization header"}}`},
		{name: "not bearer", header: "Basic abc", code: http.StatusUnauthorized, body: `{"error":{"message":"Missing or invalid authorization header"}}`},
		{name: "bad token", header: "Bearer bad", code: http.StatusUnauthorized, body: `{"error":{"message":"Invalid or expired authentication token"}}`},
		{name: "good token", header: "Bearer good", code: http.StatusOK, body: `{"uid":"uid_1","email":"a@b.c","ctx_uid":"uid_1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			require.Equal(t, tt.code, w.Code)
			require.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestAdminAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAPIKey("s3cret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(AdminKeyHeader, "s3cret")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.POST("/api/create-checkout-session", func(c *gin.Context) { c.Status(http.StatusOK) })

	pre := httptest.NewRequest(http.MethodOptions, "/api/create-checkout-session", nil)
	pre.Header.Set("Origin", "https://app.example.com")
	pre.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, pre)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
