package scheduler

import (
	"context"
	"time"

	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

// 待支付订单超过该时长仍未收到通知时记录告警
const stalePendingThreshold = 2 * time.Hour

// PaymentScheduler 支付对账调度器
// 只做巡检和告警，订单状态的写入方始终只有下单和通知两条路径
type PaymentScheduler struct {
	orderRepo *repository.OrderRepository
	logger    *logger.Logger
	quit      chan struct{}
}

// NewPaymentScheduler 创建支付对账调度器
func NewPaymentScheduler(orderRepo *repository.OrderRepository, logger *logger.Logger) *PaymentScheduler {
	return &PaymentScheduler{
		orderRepo: orderRepo,
		logger:    logger,
		quit:      make(chan struct{}),
	}
}

// Start 启动调度器
func (s *PaymentScheduler) Start() {
	go s.checkStalePendingOrders()
	s.logger.Info("支付对账调度器启动")
}

// Stop 停止调度器
func (s *PaymentScheduler) Stop() {
	close(s.quit)
	s.logger.Info("支付对账调度器停止")
}

// checkStalePendingOrders 定时巡检长时间处于待支付状态的订单
func (s *PaymentScheduler) checkStalePendingOrders() {
	s.scanStalePending()

	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scanStalePending()
		case <-s.quit:
			return
		}
	}
}

func (s *PaymentScheduler) scanStalePending() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	before := time.Now().Add(-stalePendingThreshold)
	orders, err := s.orderRepo.GetStalePending(ctx, before)
	if err != nil {
		s.logger.Error("巡检待支付订单失败", "error", err)
		return
	}

	for _, order := range orders {
		s.logger.Warn("订单长时间未收到支付通知",
			"order_no", order.OrderNo,
			"user_id", order.UserID,
			"amount", order.Amount,
			"created_at", order.CreatedAt,
		)
	}
}
