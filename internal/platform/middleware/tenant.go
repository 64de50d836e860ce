// Package middleware holds the cross-cutting gin middleware: tenant
// resolution and caller identity.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OrgHeader carries the tenant identifier on every API request.
const OrgHeader = "X-Org-ID"

const ctxOrgKey = "orgID"

// Tenant resolves the active organization from the request header. A
// request without one is rejected before any domain logic runs.
func Tenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetHeader(OrgHeader)
		if orgID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing " + OrgHeader + " header",
			})
			return
		}
		c.Set(ctxOrgKey, orgID)
		c.Next()
	}
}

// OrgID returns the resolved organization id, or "" when the request
// never passed tenant resolution.
func OrgID(c *gin.Context) string {
	return c.GetString(ctxOrgKey)
}
