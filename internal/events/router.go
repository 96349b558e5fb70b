package events

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupEventRoutes(router *gin.RouterGroup, controller Controller) {
	router.GET("/events/:eventId", controller.GetEvent)

	organizer := router.Group("/events")
	organizer.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin))
	{
		organizer.POST("", controller.CreateEvent)                    // POST /api/v1/events
		organizer.PATCH("/:eventId/status", controller.UpdateStatus)  // PATCH /api/v1/events/:eventId/status
		organizer.GET("/:eventId/fees", controller.GetFeeSettings)    // GET /api/v1/events/:eventId/fees
		organizer.PUT("/:eventId/fees", controller.UpdateFeeSettings) // PUT /api/v1/events/:eventId/fees
	}
}
