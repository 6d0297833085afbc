package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nebulaai/internal/constants"
	"nebulaai/internal/service"
	"nebulaai/pkg/logger"
)

// PlanHandler 套餐与订单查询处理器
type PlanHandler struct {
	planService  PlanProvider
	orderService *service.OrderService
	logger       *logger.Logger
}

// NewPlanHandler 创建套餐处理器
func NewPlanHandler(planService PlanProvider, orderService *service.OrderService, logger *logger.Logger) *PlanHandler {
	return &PlanHandler{
		planService:  planService,
		orderService: orderService,
		logger:       logger,
	}
}

// GetPlans 获取套餐列表
func (h *PlanHandler) GetPlans(c *gin.Context) {
	plans, err := h.planService.GetPlans(c.Request.Context())
	if err != nil {
		h.logger.Error("获取套餐列表失败", "error", err)
		c.JSON(http.StatusOK, gin.H{
			"code":    500,
			"message": constants.ErrInternalServer,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": constants.SuccessGet,
		"data":    plans,
	})
}

// GetUserOrders 获取当前用户的订单列表
func (h *PlanHandler) GetUserOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"code": 401, "message": constants.ErrUnauthorized})
		return
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "page_size", 10)

	orders, total, err := h.orderService.GetOrdersByUserID(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		h.logger.Error("获取用户订单失败", "user_id", userID, "error", err)
		c.JSON(http.StatusOK, gin.H{"code": 500, "message": constants.ErrInternalServer})
		return
	}

	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"code":   200,
		"msg":    constants.SuccessGet,
		"orders": orders,
		"pagination": gin.H{
			"page":      page,
			"page_size": pageSize,
			"pages":     pages,
			"total":     total,
		},
	})
}

// GetOrderStatus 查询单笔订单状态，供前端轮询扫码结果
func (h *PlanHandler) GetOrderStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"code": 401, "message": constants.ErrUnauthorized})
		return
	}

	orderNo := c.Query("order_no")
	if orderNo == "" {
		c.JSON(http.StatusOK, gin.H{"code": 400, "message": constants.ErrOrderNoEmpty})
		return
	}

	order, err := h.orderService.GetOrderByOrderNo(c.Request.Context(), orderNo)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"code": 404, "message": constants.ErrOrderNotFound})
		return
	}

	if order.UserID != userID {
		c.JSON(http.StatusOK, gin.H{"code": 403, "message": constants.ErrOrderForbidden})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    200,
		"message": constants.SuccessGet,
		"data": gin.H{
			"order_no":   order.OrderNo,
			"status":     order.Status,
			"amount":     order.Amount,
			"subject":    order.Subject,
			"created_at": order.CreatedAt,
			"paid_at":    order.PaidAt,
		},
	})
}

// currentUserID 从上下文中取认证中间件写入的用户ID
func currentUserID(c *gin.Context) (uint64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

// queryInt 读取整型查询参数，非法时返回默认值
func queryInt(c *gin.Context, key string, defaultValue int) int {
	if s := c.Query(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
