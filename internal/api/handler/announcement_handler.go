package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nebulaai/internal/constants"
	"nebulaai/internal/service"
	"nebulaai/pkg/logger"
)

// AnnouncementHandler 公告处理器
type AnnouncementHandler struct {
	announcementService *service.AnnouncementService
	logger              *logger.Logger
}

// NewAnnouncementHandler 创建公告处理器
func NewAnnouncementHandler(announcementService *service.AnnouncementService, logger *logger.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcementService: announcementService,
		logger:              logger,
	}
}

// GetAnnouncements 获取公告列表
func (h *AnnouncementHandler) GetAnnouncements(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	result, err := h.announcementService.GetAnnouncements(c.Request.Context(), page, limit)
	if err != nil {
		h.logger.Error("获取公告列表失败", "error", err)
		c.JSON(http.StatusOK, gin.H{"code": 500, "message": constants.ErrInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": constants.SuccessGet,
		"data":    result,
	})
}
