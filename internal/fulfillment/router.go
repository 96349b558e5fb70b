package fulfillment

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupFulfillmentRoutes(router *gin.RouterGroup, controller Controller) {
	// Gateway callback, authenticated by body signature
	router.POST("/payments/webhook", controller.Webhook)

	payments := router.Group("/payments")
	payments.Use(middleware.JWTAuth())
	{
		payments.POST("/:transactionId/fulfill", middleware.RequireRoles(middleware.RoleService, middleware.RoleAdmin), controller.Fulfill)
		payments.GET("/:transactionId/tickets", controller.GetTransactionTickets)
	}

	organizer := router.Group("")
	organizer.Use(middleware.JWTAuth(), middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin))
	{
		organizer.POST("/events/:eventId/courtesy-tickets", controller.IssueCourtesy)
		organizer.POST("/tickets/:ticketId/cancel", controller.CancelTicket)
	}
}
