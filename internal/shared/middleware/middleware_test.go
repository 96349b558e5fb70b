package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newEngine(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/organizations/:organizationId/balance",
		JWTAuthWithConfig(cfg),
		RequireRoles(RoleOrganizer, RoleAdmin),
		RequireOrganizationAccess(),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	return engine
}

func TestOrganizationAccess(t *testing.T) {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret"}}
	engine := newEngine(cfg)
	orgID := uuid.New()

	cases := []struct {
		name   string
		claims jwt.MapClaims
		path   string
		want   int
	}{
		{
			name:   "organizer of the organization",
			claims: jwt.MapClaims{"type": "access", "user_id": "u1", "role": RoleOrganizer, "organization_id": orgID.String()},
			path:   "/organizations/" + orgID.String() + "/balance",
			want:   http.StatusOK,
		},
		{
			name:   "organizer of another organization",
			claims: jwt.MapClaims{"type": "access", "user_id": "u1", "role": RoleOrganizer, "organization_id": uuid.NewString()},
			path:   "/organizations/" + orgID.String() + "/balance",
			want:   http.StatusForbidden,
		},
		{
			name:   "admin",
			claims: jwt.MapClaims{"type": "access", "user_id": "u2", "role": RoleAdmin},
			path:   "/organizations/" + orgID.String() + "/balance",
			want:   http.StatusOK,
		},
		{
			name:   "buyer",
			claims: jwt.MapClaims{"type": "access", "user_id": "u3", "role": RoleBuyer},
			path:   "/organizations/" + orgID.String() + "/balance",
			want:   http.StatusForbidden,
		},
		{
			name:   "refresh token",
			claims: jwt.MapClaims{"type": "refresh", "user_id": "u2", "role": RoleAdmin},
			path:   "/organizations/" + orgID.String() + "/balance",
			want:   http.StatusUnauthorized,
		},
		{
			name:   "bad organization id",
			claims: jwt.MapClaims{"type": "access", "user_id": "u2", "role": RoleAdmin},
			path:   "/organizations/not-a-uuid/balance",
			want:   http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.claims["exp"] = time.Now().Add(time.Hour).Unix()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.Header.Set("Authorization", "Bearer "+signedToken(t, "test-secret", tc.claims))
			rec := httptest.NewRecorder()

			engine.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	engine := newEngine(&config.Config{JWT: config.JWTConfig{Secret: "test-secret"}})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/organizations/"+uuid.NewString()+"/balance", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
