package middleware

import (
	"net/http"
	"strings"

	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	RoleAdmin     = "admin"
	RoleOrganizer = "organizer"
	RoleBuyer     = "buyer"
	RoleService   = "service" // internal callers such as checkout workers
)

// JWTAuth creates a JWT authentication middleware
func JWTAuth() gin.HandlerFunc {
	return JWTAuthWithConfig(config.Load())
}

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})
		if err != nil || !token.Valid {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token claims", nil, nil)
			c.Abort()
			return
		}
		if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token type", nil, nil)
			c.Abort()
			return
		}

		c.Set("user_id", claimString(claims, "user_id"))
		c.Set("user_role", claimString(claims, "role"))
		c.Set("organization_id", claimString(claims, "organization_id"))

		c.Next()
	}
}

func claimString(claims jwt.MapClaims, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := c.GetString("user_role")
		if userRole == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		for _, role := range requiredRoles {
			if userRole == role {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(RoleAdmin)
}

// RequireOrganizationAccess limits organizers to the organization in the
// :organizationId path parameter. Admins pass through.
func RequireOrganizationAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationID, err := uuid.Parse(c.Param("organizationId"))
		if err != nil {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid organization ID", nil, err.Error())
			c.Abort()
			return
		}

		if !CanAccessOrganization(c, organizationID) {
			response.RespondJSON(c, "error", http.StatusForbidden, "Access to this organization is not allowed", nil, nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// CanAccessOrganization reports whether the authenticated caller may act for organizationID.
func CanAccessOrganization(c *gin.Context, organizationID uuid.UUID) bool {
	if c.GetString("user_role") == RoleAdmin {
		return true
	}
	return c.GetString("organization_id") == organizationID.String()
}

// UserID returns the authenticated caller's id, if any.
func UserID(c *gin.Context) string {
	return c.GetString("user_id")
}
