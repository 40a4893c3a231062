package main

import (
	"database/sql"
	"net/http"
	"time"

	"urban-mobility/internal/auth"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/httpapi"
	"urban-mobility/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal
// services, which authorize and validate before any statement runs.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, db *sql.DB, tokens *auth.Manager, guard *authz.Guard) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Token issuance is the only unauthenticated API surface.
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	protected := v1.Group("")
	protected.Use(auth.RequireAccessToken(tokens))
	{
		protected.POST("/me/password", h.ChangeOwnPassword)

		users := protected.Group("/users")
		{
			users.POST("/engineers", h.CreateEngineer)
			users.POST("/admins", h.CreateAdmin)
			users.GET("", h.ListUsers)
			users.PUT("/:id", h.UpdateUser)
			users.DELETE("/:id", h.DeleteUser)
			users.POST("/:id/password", h.ResetUserPassword)
		}

		travellers := protected.Group("/travellers")
		{
			travellers.POST("", h.CreateTraveller)
			travellers.GET("/search", h.SearchTravellers)
			travellers.GET("/:id", h.GetTraveller)
			travellers.PUT("/:id", h.UpdateTraveller)
			travellers.DELETE("/:id", h.DeleteTraveller)
		}

		scooters := protected.Group("/scooters")
		{
			scooters.POST("", h.CreateScooter)
			scooters.GET("", h.ListScooters)
			scooters.GET("/:id", h.GetScooter)
			scooters.PUT("/:id", h.UpdateScooter)
			scooters.PATCH("/:id/maintenance", h.UpdateScooterMaintenance)
			scooters.DELETE("/:id", h.DeleteScooter)
		}

		// The review queue is guarded at the route level; its handlers
		// perform no further authorization.
		auditGroup := protected.Group("/audit")
		auditGroup.Use(authz.RequireOperation(guard, authz.OpAuditReview, authz.ResourceAuditLog))
		{
			auditGroup.GET("/suspicious", h.Audit.ListSuspicious)
			auditGroup.POST("/suspicious/review", h.Audit.MarkReviewed)
		}
	}
}
