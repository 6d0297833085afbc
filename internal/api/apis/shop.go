package apis

import (
	"github.com/gin-gonic/gin"

	"nebulaai/internal/api/handler"
)

// RegisterShopRoutes 注册套餐与订单查询路由（需要认证的部分）
func RegisterShopRoutes(router *gin.RouterGroup, planHandler *handler.PlanHandler) {
	shop := router.Group("/shop")
	{
		shop.GET("/orders", planHandler.GetUserOrders)
		shop.GET("/order/status", planHandler.GetOrderStatus)
	}
}

// RegisterShopPublicRoutes 注册套餐相关公开路由
func RegisterShopPublicRoutes(router *gin.RouterGroup, planHandler *handler.PlanHandler) {
	router.GET("/shop/plans", planHandler.GetPlans)
}

// RegisterAnnouncementRoutes 注册公告公开路由
func RegisterAnnouncementRoutes(router *gin.RouterGroup, announcementHandler *handler.AnnouncementHandler) {
	router.GET("/announcements", announcementHandler.GetAnnouncements)
}
