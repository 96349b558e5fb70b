package settlement

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupSettlementRoutes(router *gin.RouterGroup, controller Controller) {
	organizations := router.Group("/organizations/:organizationId")
	organizations.Use(
		middleware.JWTAuth(),
		middleware.RequireRoles(middleware.RoleOrganizer, middleware.RoleAdmin),
		middleware.RequireOrganizationAccess(),
	)
	{
		organizations.GET("", controller.GetOrganization)
		organizations.PUT("/pix-keys", controller.UpdatePixKeys)
		organizations.GET("/balance", controller.GetBalance)
		organizations.POST("/withdrawals", controller.RequestWithdrawal)
		organizations.GET("/withdrawals", controller.ListWithdrawals)
	}

	admin := router.Group("/admin")
	admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	{
		admin.POST("/organizations", controller.CreateOrganization)
		admin.PATCH("/withdrawals/:withdrawalId", controller.UpdateWithdrawalStatus)
	}
}
