package analytics

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupAnalyticsRoutes(router *gin.RouterGroup, controller Controller) {
	reports := router.Group("/events")
	reports.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin))
	{
		reports.GET("/:eventId/report", controller.GetEventReport)
	}
}
