package admin

import (
	"github.com/gin-gonic/gin"

	"nebulaai/internal/middleware"
)

// RegisterAdminRoutes 注册管理端路由，全部要求admin角色的JWT
func RegisterAdminRoutes(
	router *gin.Engine,
	jwtSecret string,
	membershipHandler *MembershipAdminHandler,
	announcementHandler *AnnouncementAdminHandler,
) {
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AdminAuth(jwtSecret))
	{
		adminGroup.POST("/membership/activate", membershipHandler.ActivateMembership)
		adminGroup.POST("/announcement", announcementHandler.CreateAnnouncement)
	}
}
