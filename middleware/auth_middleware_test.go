package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nimbusdrive/utils"
)

const testSecret = "test-signing-secret"

type capturedIdentity struct {
	hit   bool
	id    primitive.ObjectID
	idOK  bool
	email string
}

func authTestRouter(mw gin.HandlerFunc) (*gin.Engine, *capturedIdentity) {
	gin.SetMode(gin.TestMode)
	captured := &capturedIdentity{}
	router := gin.New()
	router.GET("/whoami", mw, func(c *gin.Context) {
		captured.hit = true
		captured.id, captured.idOK = UserID(c)
		captured.email = UserEmail(c)
		c.Status(http.StatusOK)
	})
	return router, captured
}

func doRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWTToken(userID, "user@example.com", testSecret, 1)
	require.NoError(t, err)

	router, captured := authTestRouter(AuthMiddleware(testSecret))
	rec := doRequest(router, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, captured.hit)
	assert.True(t, captured.idOK)
	assert.Equal(t, userID, captured.id)
	assert.Equal(t, "user@example.com", captured.email)
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	wrongSecret, err := utils.GenerateJWTToken(primitive.NewObjectID(), "a@b.com", "other-secret", 1)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing header": "",
		"garbage":        "not-a-jwt",
		"wrong secret":   wrongSecret,
	} {
		router, captured := authTestRouter(AuthMiddleware(testSecret))
		rec := doRequest(router, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.False(t, captured.hit, name)
	}
}

func TestOptionalAuthMiddlewareLetsAnonymousThrough(t *testing.T) {
	router, captured := authTestRouter(OptionalAuthMiddleware(testSecret))
	rec := doRequest(router, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, captured.hit)
	assert.False(t, captured.idOK)
	assert.Empty(t, captured.email)
}

func TestOptionalAuthMiddlewareResolvesIdentityWhenPresent(t *testing.T) {
	userID := primitive.NewObjectID()
	token, err := utils.GenerateJWTToken(userID, "alice@example.com", testSecret, 1)
	require.NoError(t, err)

	router, captured := authTestRouter(OptionalAuthMiddleware(testSecret))
	rec := doRequest(router, token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, captured.hit)
	assert.True(t, captured.idOK)
	assert.Equal(t, userID, captured.id)
	assert.Equal(t, "alice@example.com", captured.email)
}
