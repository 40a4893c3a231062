package authz

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireOperation enforces the guard decision before any handler work.
// It runs after the auth middleware (which resolves the principal) and
// before input validation, so an unauthorized caller never triggers
// validation or store side effects.
//
// Ownership-scoped operations are not routed through this middleware: the
// owner comparison needs a validated resource identifier, so handlers for
// those call Guard.Authorize themselves with the resolved resource.
func RequireOperation(g *Guard, op Operation, resource ResourceType) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		d := g.Authorize(c.Request.Context(), p, op, ResourceRef{Type: resource})
		if !d.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
