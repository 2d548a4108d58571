// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// MustGetOrganizationID gets the organization ID from context or panics
func MustGetOrganizationID(c *gin.Context) int64 {
	orgID, exists := GetOrganizationID(c)
	if !exists {
		panic("organization_id not found in context")
	}
	return orgID
}

// GetOrganizationID gets the organization ID from context
func GetOrganizationID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("organization_id")
	if !exists {
		return 0, false
	}
	orgID, ok := v.(int64)
	return orgID, ok
}

// GetRoles gets user roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get("roles")
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

// IsAdmin checks if the user carries an admin role
func IsAdmin(c *gin.Context) bool {
	for _, role := range GetRoles(c) {
		if role == "admin" || role == "super_admin" {
			return true
		}
	}
	return false
}
