// internal/middleware/auth_middleware.go
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"ledgerly-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

type appClaims struct {
	OrganizationID int64    `json:"organization_id"`
	Roles          []string `json:"roles"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and puts the organization identity
// into the request context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims := &appClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !parsed.Valid {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}
		if claims.OrganizationID == 0 {
			response.Error(c, http.StatusUnauthorized, "token carries no organization", nil)
			return
		}

		c.Set("organization_id", claims.OrganizationID)
		c.Set("roles", claims.Roles)

		c.Next()
	}
}

// RequireRole requires the user to have at least one of the given roles.
// MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles := GetRoles(c)

		for _, userRole := range userRoles {
			for _, required := range roles {
				if userRole == required {
					c.Next()
					return
				}
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, map[string]interface{}{
			"required_roles": roles,
		})
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
