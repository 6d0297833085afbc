package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nebulaai/internal/model"
	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

var (
	// ErrOrderAlreadyPaid 订单已是支付态，开通动作被状态守卫拒绝
	ErrOrderAlreadyPaid = errors.New("订单已支付")
	// ErrOrderNotPending 订单处于失败或取消等终态
	ErrOrderNotPending = errors.New("订单不在待支付状态")
)

// MembershipService 会员开通服务
// 订单置为已支付和用户会员字段更新必须在同一事务内完成，
// 避免出现已支付但未开通、或已开通但订单仍待支付的中间态
type MembershipService struct {
	userRepo  repository.TransactionalUserRepository
	orderRepo *repository.OrderRepository
	planRepo  *repository.PlanRepository
	logger    *logger.Logger
}

// NewMembershipService 创建会员开通服务
func NewMembershipService(
	userRepo repository.TransactionalUserRepository,
	orderRepo *repository.OrderRepository,
	planRepo *repository.PlanRepository,
	logger *logger.Logger,
) *MembershipService {
	return &MembershipService{
		userRepo:  userRepo,
		orderRepo: orderRepo,
		planRepo:  planRepo,
		logger:    logger,
	}
}

// Activate 开通会员
// 事务内先对订单做待支付到已支付的守卫更新，失去守卫说明有并发投递
// 或订单已终态，整个事务回滚，不会出现重复开通
func (s *MembershipService) Activate(ctx context.Context, userID, planID uint64, orderNo string) error {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("查询套餐失败: %w", err)
	}

	tx, err := s.userRepo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	txOrders := s.orderRepo.WithTx(tx)
	ok, err := txOrders.MarkPaid(ctx, orderNo)
	if err != nil {
		return fmt.Errorf("更新订单状态失败: %w", err)
	}
	if !ok {
		order, err := txOrders.GetByOrderNo(ctx, orderNo)
		if err != nil {
			return fmt.Errorf("查询订单失败: %w", err)
		}
		if order.IsPaid() {
			return ErrOrderAlreadyPaid
		}
		return fmt.Errorf("%w: 当前状态%d", ErrOrderNotPending, order.Status)
	}

	txUsers := s.userRepo.WithTx(tx)
	user, err := txUsers.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("查询用户失败: %w", err)
	}

	expiresAt := computeExpiry(user, plan, time.Now())
	if err := txUsers.UpdateMembership(ctx, userID, plan.MembershipType, expiresAt); err != nil {
		return fmt.Errorf("更新会员信息失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}

	s.logger.Info("会员开通成功",
		"user_id", userID,
		"order_no", orderNo,
		"membership_type", plan.MembershipType,
		"expires_at", expiresAt,
	)
	return nil
}

// ManualActivate 人工补单开通会员
// 管理端使用：按标识解析或创建用户，生成一笔人工订单并走同一开通事务
func (s *MembershipService) ManualActivate(ctx context.Context, users UserService, identifier, planCode string) (string, error) {
	user, err := users.ResolveOrCreate(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("解析用户失败: %w", err)
	}

	plan, err := s.planRepo.GetByCode(ctx, planCode)
	if err != nil {
		return "", fmt.Errorf("查询套餐失败: %w", err)
	}

	orderNo := "MANUAL-" + uuid.NewString()
	order := &model.Order{
		OrderNo: orderNo,
		UserID:  user.ID,
		PlanID:  sql.NullInt64{Int64: int64(plan.ID), Valid: true},
		Subject: plan.Name,
		Amount:  plan.Price,
		Status:  model.OrderStatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return "", fmt.Errorf("创建人工订单失败: %w", err)
	}

	if err := s.Activate(ctx, user.ID, plan.ID, orderNo); err != nil {
		// 人工订单没有支付方，开通失败时不能留在待支付状态
		if mErr := s.orderRepo.MarkFailed(ctx, orderNo); mErr != nil {
			s.logger.Error("标记人工订单失败状态出错", "order_no", orderNo, "error", mErr)
		}
		return "", err
	}
	return orderNo, nil
}

// computeExpiry 计算会员有效期
// 永久类套餐返回nil；同类型会员未过期时在原有效期上顺延
func computeExpiry(user *model.User, plan *model.Plan, now time.Time) *time.Time {
	if plan.DurationDays <= 0 {
		return nil
	}
	base := now
	if user.MembershipType == plan.MembershipType &&
		user.MembershipExpiresAt != nil && user.MembershipExpiresAt.After(now) {
		base = *user.MembershipExpiresAt
	}
	t := base.AddDate(0, 0, plan.DurationDays)
	return &t
}
