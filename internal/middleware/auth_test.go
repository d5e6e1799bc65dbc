package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chachabrian/mooveit-dispatch/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(200, gin.H{"userId": c.GetUint("userId"), "role": c.GetString("role")})
	})
	r.GET("/ops", AuthMiddleware(secret), RequireRole(utils.RoleDispatcher), func(c *gin.Context) {
		c.Status(204)
	})
	return r
}

func request(t *testing.T, r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()
	valid, err := utils.GenerateToken(secret, 12, utils.RoleCustomer, time.Hour)
	require.NoError(t, err)
	otherKey, err := utils.GenerateToken("other-secret", 12, utils.RoleCustomer, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(secret, 12, utils.RoleCustomer, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name string
		auth string
		want int
	}{
		{"valid", "Bearer " + valid, 200},
		{"missing header", "", 401},
		{"wrong scheme", "Basic " + valid, 401},
		{"wrong key", "Bearer " + otherKey, 401},
		{"expired", "Bearer " + expired, 401},
		{"garbage", "Bearer not-a-jwt", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(t, r, "/me", tt.auth)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	w := request(t, r, "/me?token="+valid, "")
	assert.Equal(t, 200, w.Code, "query token")

	w = request(t, r, "/me", "Bearer "+valid)
	assert.JSONEq(t, `{"userId":12,"role":"customer"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := newRouter()
	customer, err := utils.GenerateToken(secret, 1, utils.RoleCustomer, time.Hour)
	require.NoError(t, err)
	dispatcher, err := utils.GenerateToken(secret, 2, utils.RoleDispatcher, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 403, request(t, r, "/ops", "Bearer "+customer).Code)
	assert.Equal(t, 204, request(t, r, "/ops", "Bearer "+dispatcher).Code)
}
