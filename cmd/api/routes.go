package main

import (
	"salesops-console/internal/auth"
	"salesops-console/internal/httpapi"
	"salesops-console/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, authManager *auth.Manager, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Platform callback (public; optionally guarded by a shared secret
	// checked inside the handler). The platform posts here when a workflow
	// finishes or produces results.
	r.POST("/webhooks/happyrobot/callback", h.PlatformCallback)

	v1 := r.Group("/v1")

	// AUTH routes (public).
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
	}

	// Protected API.
	protected := v1.Group("")
	protected.Use(auth.RequireAccessToken(authManager))
	{
		protected.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			email, _ := auth.Email(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "email": email, "role": role})
		})

		// CALLS routes
		callsGroup := protected.Group("/calls")
		{
			callsGroup.POST("/trigger", h.TriggerCall)
			callsGroup.GET("/status", h.CallStatus)
			callsGroup.GET("", h.ListCalls)
		}

		// ADMIN routes
		usersGroup := protected.Group("/users")
		usersGroup.Use(rbac.RequireAdmin())
		{
			usersGroup.GET("", h.ListUsers)
		}
	}
}
