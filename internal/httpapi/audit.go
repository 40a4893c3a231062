package httpapi

import (
	"net/http"

	"urban-mobility/internal/audit"

	"github.com/gin-gonic/gin"
)

// AuditReview exposes the suspicious-event review queue to admins. The
// route group carries the guard middleware for the review operation, so by
// the time these handlers run the caller is already authorized. This is the
// only read path into the audit trail the API offers; everything else is
// write-only.
type AuditReview struct {
	Log *audit.Service
}

func (a *AuditReview) ListSuspicious(c *gin.Context) {
	events, err := a.Log.UnreviewedSuspicious(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type reviewRequest struct {
	IDs []string `json:"ids"`
}

func (a *AuditReview) MarkReviewed(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ids required"})
		return
	}
	if err := a.Log.MarkReviewed(c.Request.Context(), req.IDs); err != nil {
		writeErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
