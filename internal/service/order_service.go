package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redsync/redsync/v4"

	"nebulaai/internal/model"
	"nebulaai/internal/pay"
	"nebulaai/pkg/async"
	"nebulaai/pkg/email"
	"nebulaai/pkg/logger"
)

var (
	// ErrInvalidParams 下单请求缺少必填字段
	ErrInvalidParams = errors.New("参数错误")
	// ErrOrderNotFound 通知中的订单号没有对应订单
	ErrOrderNotFound = errors.New("订单不存在")
	// ErrUnknownTradeStatus 通知携带了未处理的交易状态
	ErrUnknownTradeStatus = errors.New("未知的交易状态")
	// ErrActivationFailed 会员开通事务失败
	ErrActivationFailed = errors.New("会员开通失败")
)

// OrderStore 订单服务依赖的订单存储能力
type OrderStore interface {
	Create(ctx context.Context, order *model.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error)
	MarkFailed(ctx context.Context, orderNo string) error
	MarkCancelled(ctx context.Context, orderNo, tradeNo string) (bool, error)
	UpdateTradeNo(ctx context.Context, orderNo, tradeNo string) error
	GetByUserID(ctx context.Context, userID uint64, page, pageSize int) ([]model.Order, int, error)
}

// Activator 会员开通能力，由MembershipService实现
type Activator interface {
	Activate(ctx context.Context, userID, planID uint64, orderNo string) error
}

// OrderService 订单服务
// 覆盖订单生命周期的两个入口：下单预支付和网关异步通知
type OrderService struct {
	orders    OrderStore
	gateway   pay.Gateway
	activator Activator
	users     UserService
	locks     *redsync.Redsync
	worker    *async.Worker
	emails    *email.Service
	logger    *logger.Logger
}

// NewOrderService 创建订单服务
func NewOrderService(
	orders OrderStore,
	gateway pay.Gateway,
	activator Activator,
	users UserService,
	locks *redsync.Redsync,
	worker *async.Worker,
	emails *email.Service,
	logger *logger.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		gateway:   gateway,
		activator: activator,
		users:     users,
		locks:     locks,
		worker:    worker,
		emails:    emails,
		logger:    logger,
	}
}

// CreateOrderParams 下单参数，五个字段全部必填
type CreateOrderParams struct {
	UserID  uint64
	PlanID  uint64
	Amount  float64
	OrderNo string
	Subject string
}

// CreateOrderResult 下单结果
type CreateOrderResult struct {
	QRCode  string
	OrderNo string
}

// CreateOrder 创建订单并调用网关预下单
// 落库失败时不会调用网关，避免产生没有本地订单的网关交易；
// 网关拒绝时订单转为失败态并把网关的错误信息带回给调用方
func (s *OrderService) CreateOrder(ctx context.Context, p CreateOrderParams) (*CreateOrderResult, error) {
	if p.UserID == 0 || p.PlanID == 0 || p.Amount <= 0 || p.OrderNo == "" || p.Subject == "" {
		return nil, ErrInvalidParams
	}

	order := &model.Order{
		OrderNo: p.OrderNo,
		UserID:  p.UserID,
		PlanID:  sql.NullInt64{Int64: int64(p.PlanID), Valid: true},
		Subject: p.Subject,
		Amount:  p.Amount,
		Status:  model.OrderStatusPending,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("创建订单失败: %w", err)
	}

	result, err := s.gateway.Precreate(ctx, pay.PrecreateRequest{
		OutTradeNo: p.OrderNo,
		Subject:    p.Subject,
		Amount:     p.Amount,
	})
	if err != nil {
		if mErr := s.orders.MarkFailed(ctx, p.OrderNo); mErr != nil {
			s.logger.Error("标记订单失败状态出错", "order_no", p.OrderNo, "error", mErr)
		}
		return nil, err
	}

	s.logger.Info("订单创建成功", "order_no", p.OrderNo, "user_id", p.UserID, "amount", p.Amount)
	return &CreateOrderResult{QRCode: result.QRCode, OrderNo: p.OrderNo}, nil
}

// HandleNotification 处理网关异步通知
// 验签先于一切业务逻辑，验签失败不产生任何状态变更；
// 返回nil表示应答"success"，返回错误时由上层按错误类型应答"fail"
func (s *OrderService) HandleNotification(ctx context.Context, values url.Values) error {
	noti, err := s.gateway.VerifyNotification(values)
	if err != nil {
		// 可能是伪造请求，记录用于安全审计
		s.logger.Warn("通知验签失败", "error", err)
		return err
	}

	// 同一订单的并发重复投递先在这里串行化，锁拿不到时继续走，
	// 真正的幂等保障是MarkPaid的状态守卫
	if s.locks != nil {
		mutex := s.locks.NewMutex(
			"payment:notify:"+noti.OutTradeNo,
			redsync.WithExpiry(10*time.Second),
			redsync.WithTries(3),
		)
		if err := mutex.LockContext(ctx); err != nil {
			s.logger.Warn("获取通知处理锁失败", "order_no", noti.OutTradeNo, "error", err)
		} else {
			defer func() {
				if _, err := mutex.UnlockContext(ctx); err != nil {
					s.logger.Warn("释放通知处理锁失败", "order_no", noti.OutTradeNo, "error", err)
				}
			}()
		}
	}

	order, err := s.orders.GetByOrderNo(ctx, noti.OutTradeNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("通知订单不存在", "out_trade_no", noti.OutTradeNo)
			return ErrOrderNotFound
		}
		return fmt.Errorf("查询订单失败: %w", err)
	}

	switch {
	case pay.IsPaidStatus(noti.TradeStatus):
		return s.handlePaid(ctx, order, noti)
	case pay.IsClosedStatus(noti.TradeStatus):
		return s.handleClosed(ctx, order, noti)
	default:
		s.logger.Warn("收到未处理的交易状态", "order_no", order.OrderNo, "trade_status", noti.TradeStatus)
		return ErrUnknownTradeStatus
	}
}

// handlePaid 处理支付成功通知
func (s *OrderService) handlePaid(ctx context.Context, order *model.Order, noti *pay.Notification) error {
	// 网关按至少一次投递，已支付订单直接应答成功，不做任何写入
	if order.IsPaid() {
		s.logger.Info("订单已支付，忽略重复通知", "order_no", order.OrderNo)
		return nil
	}

	if noti.TotalAmount != "" && noti.TotalAmount != fmt.Sprintf("%.2f", order.Amount) {
		// 金额不一致不拦截开通，网关侧金额在预下单时已经锁定，这里只留痕
		s.logger.Warn("通知金额与订单金额不一致",
			"order_no", order.OrderNo,
			"order_amount", order.Amount,
			"notified_amount", noti.TotalAmount,
		)
	}

	if !order.PlanID.Valid {
		if mErr := s.orders.MarkFailed(ctx, order.OrderNo); mErr != nil {
			s.logger.Error("标记订单失败状态出错", "order_no", order.OrderNo, "error", mErr)
		}
		return fmt.Errorf("%w: 订单未关联套餐", ErrActivationFailed)
	}

	if err := s.activator.Activate(ctx, order.UserID, uint64(order.PlanID.Int64), order.OrderNo); err != nil {
		// 并发投递时后到的一方会输掉状态守卫，此时会员已开通，按成功应答
		if errors.Is(err, ErrOrderAlreadyPaid) {
			s.logger.Info("订单已被并发通知处理", "order_no", order.OrderNo)
			return nil
		}
		if mErr := s.orders.MarkFailed(ctx, order.OrderNo); mErr != nil {
			s.logger.Error("标记订单失败状态出错", "order_no", order.OrderNo, "error", mErr)
		}
		return fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}

	// 会员已开通，交易号落库失败不回滚，只记录日志并照常应答成功
	if err := s.orders.UpdateTradeNo(ctx, order.OrderNo, noti.TradeNo); err != nil {
		s.logger.Error("记录网关交易号失败", "order_no", order.OrderNo, "trade_no", noti.TradeNo, "error", err)
	}

	s.logger.Info("订单支付完成", "order_no", order.OrderNo, "trade_no", noti.TradeNo)
	s.sendReceiptAsync(order)
	return nil
}

// handleClosed 处理交易关闭通知
func (s *OrderService) handleClosed(ctx context.Context, order *model.Order, noti *pay.Notification) error {
	ok, err := s.orders.MarkCancelled(ctx, order.OrderNo, noti.TradeNo)
	if err != nil {
		return fmt.Errorf("更新订单状态失败: %w", err)
	}
	if !ok {
		// 订单已处于终态，已支付订单不会被关闭通知逆转
		s.logger.Info("订单已处于终态，忽略关闭通知", "order_no", order.OrderNo, "status", order.Status)
		return nil
	}
	s.logger.Info("订单已取消", "order_no", order.OrderNo, "trade_status", noti.TradeStatus)
	return nil
}

// sendReceiptAsync 把回执邮件移交给异步工作器，不阻塞通知应答
func (s *OrderService) sendReceiptAsync(order *model.Order) {
	if s.worker == nil || s.emails == nil || s.users == nil {
		return
	}

	orderNo := order.OrderNo
	userID := order.UserID
	amount := order.Amount
	subject := order.Subject
	s.worker.Submit(async.Task{
		Name:     "receipt:" + orderNo,
		Timeout:  30 * time.Second,
		RetryMax: 2,
		Handler: func(ctx context.Context) error {
			user, err := s.users.GetByID(ctx, userID)
			if err != nil {
				return fmt.Errorf("查询用户失败: %w", err)
			}
			if user.Email == "" {
				return nil
			}
			return s.emails.SendReceipt(email.ReceiptData{
				To:             user.Email,
				Username:       user.Username,
				OrderNo:        orderNo,
				PlanName:       subject,
				Amount:         amount,
				MembershipType: user.MembershipType,
				ExpiresAt:      user.MembershipExpiresAt,
				PaidAt:         time.Now(),
			})
		},
	})
}

// GetOrdersByUserID 分页获取用户订单
func (s *OrderService) GetOrdersByUserID(ctx context.Context, userID uint64, page, pageSize int) ([]model.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 50 {
		pageSize = 50
	}
	return s.orders.GetByUserID(ctx, userID, page, pageSize)
}

// GetOrderByOrderNo 根据订单号获取订单
func (s *OrderService) GetOrderByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}
