package apis

import (
	"github.com/gin-gonic/gin"

	"nebulaai/internal/api/handler"
)

// RegisterPaymentRoutes 注册支付相关路由
// 两个端点都是公开路由：下单由前端直接调用，通知由支付宝服务器回调，
// 通知接口的信任边界是验签而不是会话
func RegisterPaymentRoutes(router *gin.Engine, paymentHandler *handler.PaymentHandler) {
	payment := router.Group("/api/payment")
	{
		payment.POST("/create-order", paymentHandler.CreateOrder)
		payment.POST("/notify", paymentHandler.Notify)
	}
}
