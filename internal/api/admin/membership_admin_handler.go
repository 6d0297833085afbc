package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nebulaai/internal/constants"
	"nebulaai/internal/model"
	"nebulaai/internal/service"
	"nebulaai/pkg/logger"
)

// MembershipAdminHandler 会员管理处理器
type MembershipAdminHandler struct {
	membershipService *service.MembershipService
	userService       service.UserService
	logger            *logger.Logger
}

// NewMembershipAdminHandler 创建会员管理处理器
func NewMembershipAdminHandler(
	membershipService *service.MembershipService,
	userService service.UserService,
	logger *logger.Logger,
) *MembershipAdminHandler {
	return &MembershipAdminHandler{
		membershipService: membershipService,
		userService:       userService,
		logger:            logger,
	}
}

// ActivateMembership 人工开通会员
// 按标识（邮箱或外部用户ID）定位用户，不存在则创建后开通
func (h *MembershipAdminHandler) ActivateMembership(c *gin.Context) {
	var req struct {
		Identifier string `json:"identifier" binding:"required"`
		PlanCode   string `json:"plan_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"code": 400, "message": constants.ErrInvalidParams})
		return
	}

	orderNo, err := h.membershipService.ManualActivate(c.Request.Context(), h.userService, req.Identifier, req.PlanCode)
	if err != nil {
		h.logger.Error("人工开通会员失败", "identifier", req.Identifier, "plan_code", req.PlanCode, "error", err)
		c.JSON(http.StatusOK, gin.H{"code": 500, "message": "开通会员失败"})
		return
	}

	h.logger.Info("人工开通会员成功", "identifier", req.Identifier, "plan_code", req.PlanCode, "order_no", orderNo)
	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": constants.SuccessCreate,
		"data":    gin.H{"order_no": orderNo},
	})
}

// AnnouncementAdminHandler 公告管理处理器
type AnnouncementAdminHandler struct {
	announcementService *service.AnnouncementService
	logger              *logger.Logger
}

// NewAnnouncementAdminHandler 创建公告管理处理器
func NewAnnouncementAdminHandler(announcementService *service.AnnouncementService, logger *logger.Logger) *AnnouncementAdminHandler {
	return &AnnouncementAdminHandler{
		announcementService: announcementService,
		logger:              logger,
	}
}

// CreateAnnouncement 发布公告
func (h *AnnouncementAdminHandler) CreateAnnouncement(c *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"code": 400, "message": constants.ErrInvalidParams})
		return
	}

	a := &model.Announcement{Title: req.Title, Content: req.Content}
	if err := h.announcementService.CreateAnnouncement(c.Request.Context(), a); err != nil {
		h.logger.Error("发布公告失败", "error", err)
		c.JSON(http.StatusOK, gin.H{"code": 500, "message": constants.ErrInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": constants.SuccessCreate,
		"data":    a,
	})
}
