package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clustermail-backend/internal/auth/delivery"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		authed := api.Group("")
		authed.Use(delivery.SessionMiddleware(h.cfg.JWTSecret))
		{
			authed.GET("/groups", h.GetGroups)
			authed.PATCH("/groups/:id/name", h.RenameGroup)
			authed.POST("/groups/:id/emails", h.AddEmailToGroup)
			authed.POST("/emails/refresh", h.RefreshEmails)
			authed.POST("/send", h.SendEmail)
		}
	}
}
