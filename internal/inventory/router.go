package inventory

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupInventoryRoutes(router *gin.RouterGroup, controller Controller) {
	// Public browsing of what is on sale
	router.GET("/events/:eventId/categories", controller.ListCategories)
	router.GET("/categories/:categoryId", controller.GetCategory)

	// Organizers shape their own inventory
	manage := router.Group("")
	manage.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin))
	{
		manage.POST("/events/:eventId/categories", controller.CreateCategory)
		manage.POST("/categories/:categoryId/batches", controller.AddBatch)
	}
}
