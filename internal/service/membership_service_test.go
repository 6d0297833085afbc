package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"nebulaai/internal/model"
	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

func newMembershipService(t *testing.T) (*MembershipService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "mysql")
	svc := NewMembershipService(
		repository.NewUserRepository(sqlxDB),
		repository.NewOrderRepository(sqlxDB),
		repository.NewPlanRepository(sqlxDB),
		logger.NewLogger("error"),
	)
	return svc, mock
}

func planRows(durationDays int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "code", "name", "price", "membership_type", "duration_days", "status", "created_at", "updated_at",
	}).AddRow(3, "p-annual", "年度会员", 99.00, model.MembershipAnnual, durationDays, 1, now, now)
}

func userRows(membershipType string, expiresAt *time.Time) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "external_id", "username", "email", "role", "token", "membership_type", "membership_expires_at", "created_at", "updated_at",
	}).AddRow(7, "u1", "u1", "u1@example.com", "user", "tok", membershipType, expiresAt, now, now)
}

func TestActivateCommitsOrderAndMembershipTogether(t *testing.T) {
	svc, mock := newMembershipService(t)

	mock.ExpectQuery("SELECT \\* FROM plans WHERE id").
		WithArgs(uint64(3)).
		WillReturnRows(planRows(365))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM users WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(userRows(model.MembershipFree, nil))
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.Activate(context.Background(), 7, 3, "ORD-1"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActivateAlreadyPaidRollsBack(t *testing.T) {
	svc, mock := newMembershipService(t)

	mock.ExpectQuery("SELECT \\* FROM plans WHERE id").
		WillReturnRows(planRows(365))
	mock.ExpectBegin()
	// 状态守卫没有命中任何行：订单已被并发通知置为已支付
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE order_no").
		WithArgs("ORD-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_no", "user_id", "plan_id", "subject", "amount", "status", "trade_no", "created_at", "updated_at", "paid_at",
		}).AddRow(1, "ORD-1", 7, 3, "年度会员", 99.00, model.OrderStatusPaid, "2026082922001", now, now, now))
	mock.ExpectRollback()

	err := svc.Activate(context.Background(), 7, 3, "ORD-1")
	if !errors.Is(err, ErrOrderAlreadyPaid) {
		t.Fatalf("expected ErrOrderAlreadyPaid, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActivateCancelledOrderRejected(t *testing.T) {
	svc, mock := newMembershipService(t)

	mock.ExpectQuery("SELECT \\* FROM plans WHERE id").
		WillReturnRows(planRows(365))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	now := time.Now()
	mock.ExpectQuery("SELECT \\* FROM orders WHERE order_no").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_no", "user_id", "plan_id", "subject", "amount", "status", "trade_no", "created_at", "updated_at", "paid_at",
		}).AddRow(1, "ORD-1", 7, 3, "年度会员", 99.00, model.OrderStatusCancelled, nil, now, now, nil))
	mock.ExpectRollback()

	err := svc.Activate(context.Background(), 7, 3, "ORD-1")
	if !errors.Is(err, ErrOrderNotPending) {
		t.Fatalf("expected ErrOrderNotPending, got %v", err)
	}
}

func TestActivateMembershipUpdateFailureRollsBackOrder(t *testing.T) {
	svc, mock := newMembershipService(t)

	mock.ExpectQuery("SELECT \\* FROM plans WHERE id").
		WillReturnRows(planRows(365))
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM users WHERE id").
		WillReturnRows(userRows(model.MembershipFree, nil))
	// 会员字段更新失败，订单的已支付状态必须随事务一起回滚
	mock.ExpectExec("UPDATE users").
		WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	if err := svc.Activate(context.Background(), 7, 3, "ORD-1"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// stubUserService 人工开通测试用的用户服务
type stubUserService struct{}

func (s *stubUserService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return &model.User{ID: id}, nil
}

func (s *stubUserService) GetByToken(ctx context.Context, token string) (*model.User, error) {
	return nil, ErrUserNotFound
}

func (s *stubUserService) ResolveOrCreate(ctx context.Context, identifier string) (*model.User, error) {
	return &model.User{ID: 7, ExternalID: identifier}, nil
}

func TestManualActivateFailsSynthesizedOrderOnError(t *testing.T) {
	svc, mock := newMembershipService(t)

	mock.ExpectQuery("SELECT \\* FROM plans WHERE code").
		WithArgs("p-annual").
		WillReturnRows(planRows(365))
	mock.ExpectExec("INSERT INTO orders").
		WillReturnResult(sqlmock.NewResult(1, 1))
	// 开通事务在套餐查询处失败
	mock.ExpectQuery("SELECT \\* FROM plans WHERE id").
		WillReturnError(errors.New("connection refused"))
	// 人工订单必须转入失败态，不能滞留在待支付
	mock.ExpectExec("UPDATE orders").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if _, err := svc.ManualActivate(context.Background(), &stubUserService{}, "u1", "p-annual"); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestComputeExpiry(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("permanent plan has no expiry", func(t *testing.T) {
		user := &model.User{MembershipType: model.MembershipFree}
		plan := &model.Plan{MembershipType: model.MembershipLifetime, DurationDays: 0}
		if got := computeExpiry(user, plan, now); got != nil {
			t.Fatalf("expected nil expiry, got %v", got)
		}
	})

	t.Run("fresh membership starts from now", func(t *testing.T) {
		user := &model.User{MembershipType: model.MembershipFree}
		plan := &model.Plan{MembershipType: model.MembershipAnnual, DurationDays: 365}
		got := computeExpiry(user, plan, now)
		want := now.AddDate(0, 0, 365)
		if got == nil || !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("renewal extends current expiry", func(t *testing.T) {
		current := now.AddDate(0, 0, 30)
		user := &model.User{MembershipType: model.MembershipAnnual, MembershipExpiresAt: &current}
		plan := &model.Plan{MembershipType: model.MembershipAnnual, DurationDays: 365}
		got := computeExpiry(user, plan, now)
		want := current.AddDate(0, 0, 365)
		if got == nil || !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("expired membership restarts from now", func(t *testing.T) {
		past := now.AddDate(0, 0, -10)
		user := &model.User{MembershipType: model.MembershipAnnual, MembershipExpiresAt: &past}
		plan := &model.Plan{MembershipType: model.MembershipAnnual, DurationDays: 365}
		got := computeExpiry(user, plan, now)
		want := now.AddDate(0, 0, 365)
		if got == nil || !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})

	t.Run("different membership type starts from now", func(t *testing.T) {
		current := now.AddDate(0, 0, 30)
		user := &model.User{MembershipType: model.MembershipTrial, MembershipExpiresAt: &current}
		plan := &model.Plan{MembershipType: model.MembershipAnnual, DurationDays: 365}
		got := computeExpiry(user, plan, now)
		want := now.AddDate(0, 0, 365)
		if got == nil || !got.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got)
		}
	})
}
