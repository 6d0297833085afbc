package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nebulaai/internal/constants"
	"nebulaai/internal/model"
	"nebulaai/internal/pay"
	"nebulaai/internal/service"
	"nebulaai/pkg/logger"
)

// PlanProvider 处理器依赖的套餐查询能力
type PlanProvider interface {
	GetPlans(ctx context.Context) ([]model.Plan, error)
	GetPlanByCode(ctx context.Context, code string) (*model.Plan, error)
}

// PaymentHandler 支付处理器
// 对接两端：客户端下单和支付宝服务器的异步通知
type PaymentHandler struct {
	orderService *service.OrderService
	userService  service.UserService
	planService  PlanProvider
	logger       *logger.Logger
}

// NewPaymentHandler 创建支付处理器
func NewPaymentHandler(
	orderService *service.OrderService,
	userService service.UserService,
	planService PlanProvider,
	logger *logger.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		orderService: orderService,
		userService:  userService,
		planService:  planService,
		logger:       logger,
	}
}

// createOrderRequest 下单请求体，五个字段全部必填
type createOrderRequest struct {
	UserID      string  `json:"userId"`
	PlanID      string  `json:"planId"`
	Amount      float64 `json:"amount"`
	OrderNumber string  `json:"orderNumber"`
	Subject     string  `json:"subject"`
}

// CreateOrder 创建订单并返回扫码支付凭据
// POST /api/payment/create-order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidRequest})
		return
	}

	if req.UserID == "" || req.PlanID == "" || req.Amount <= 0 || req.OrderNumber == "" || req.Subject == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams})
		return
	}

	// userId是身份服务侧的标识，planId是套餐标识，先解析成本地记录
	user, err := h.userService.ResolveOrCreate(c.Request.Context(), req.UserID)
	if err != nil {
		h.logger.Error("解析下单用户失败", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrInternalServer})
		return
	}

	plan, err := h.planService.GetPlanByCode(c.Request.Context(), req.PlanID)
	if err != nil {
		// 套餐不存在是客户端问题，存储故障不能伪装成参数错误
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrPlanNotFound})
			return
		}
		h.logger.Error("查询套餐失败", "plan_id", req.PlanID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrInternalServer})
		return
	}

	result, err := h.orderService.CreateOrder(c.Request.Context(), service.CreateOrderParams{
		UserID:  user.ID,
		PlanID:  plan.ID,
		Amount:  req.Amount,
		OrderNo: req.OrderNumber,
		Subject: req.Subject,
	})
	if err != nil {
		var providerErr *pay.ProviderError
		switch {
		case errors.Is(err, service.ErrInvalidParams):
			c.JSON(http.StatusBadRequest, gin.H{"error": constants.ErrInvalidParams})
		case errors.As(err, &providerErr):
			// 网关拒绝，带回网关的错误信息
			h.logger.Error("网关预下单被拒绝", "order_no", req.OrderNumber, "error", providerErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": providerErr.Msg})
		default:
			h.logger.Error("创建订单失败", "order_no", req.OrderNumber, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": constants.ErrCreateOrder})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"qrCodeUrl": result.QRCode,
		"orderId":   result.OrderNo,
	})
}

// Notify 处理支付宝异步通知
// POST /api/payment/notify
// 支付宝只识别应答体中的"success"/"fail"文本，文本契约优先于状态码
func (h *PaymentHandler) Notify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.logger.Error("解析通知表单失败", "error", err)
		c.String(http.StatusBadRequest, constants.NotifyAckFail)
		return
	}

	err := h.orderService.HandleNotification(c.Request.Context(), c.Request.Form)
	if err == nil {
		c.String(http.StatusOK, constants.NotifyAckSuccess)
		return
	}

	switch {
	case errors.Is(err, pay.ErrInvalidSignature):
		c.String(http.StatusBadRequest, constants.NotifyAckFail)
	case errors.Is(err, service.ErrOrderNotFound):
		c.String(http.StatusNotFound, constants.NotifyAckFail)
	case errors.Is(err, service.ErrUnknownTradeStatus):
		c.String(http.StatusBadRequest, constants.NotifyAckFail)
	default:
		h.logger.Error("处理支付通知失败", "error", err)
		c.String(http.StatusInternalServerError, constants.NotifyAckFail)
	}
}
