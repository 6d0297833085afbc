package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"nebulaai/internal/model"
)

// queryer 同时被*sqlx.DB和*sqlx.Tx满足，仓库方法对两者透明
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// OrderRepository 订单存储库
type OrderRepository struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

// NewOrderRepository 创建订单存储库
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// BeginTx 开始一个新的事务
func (r *OrderRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// WithTx 返回一个在事务上下文中操作的订单存储库
func (r *OrderRepository) WithTx(tx *sqlx.Tx) *OrderRepository {
	return &OrderRepository{db: r.db, tx: tx}
}

func (r *OrderRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	query := `
		INSERT INTO orders (order_no, user_id, plan_id, subject, amount, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.q().ExecContext(ctx, query,
		order.OrderNo,
		order.UserID,
		order.PlanID,
		order.Subject,
		order.Amount,
		order.Status,
	)
	if err != nil {
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		order.ID = uint64(id)
	}
	return nil
}

// GetByOrderNo 根据订单号获取订单
func (r *OrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*model.Order, error) {
	var order model.Order
	query := `SELECT * FROM orders WHERE order_no = ?`
	if err := r.q().GetContext(ctx, &order, query, orderNo); err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid 将待支付订单置为已支付
// WHERE status守卫保证已支付/已终态订单不会被重复或逆向更新，
// 返回false表示订单不处于待支付状态
func (r *OrderRepository) MarkPaid(ctx context.Context, orderNo string) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, paid_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_no = ? AND status = ?
	`
	result, err := r.q().ExecContext(ctx, query,
		model.OrderStatusPaid,
		sql.NullTime{Time: time.Now(), Valid: true},
		orderNo,
		model.OrderStatusPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkFailed 将待支付订单置为失败
func (r *OrderRepository) MarkFailed(ctx context.Context, orderNo string) error {
	query := `
		UPDATE orders
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_no = ? AND status = ?
	`
	_, err := r.q().ExecContext(ctx, query, model.OrderStatusFailed, orderNo, model.OrderStatusPending)
	return err
}

// MarkCancelled 将待支付订单置为已取消，并记录网关交易号
// 返回false表示订单已不在待支付状态
func (r *OrderRepository) MarkCancelled(ctx context.Context, orderNo, tradeNo string) (bool, error) {
	query := `
		UPDATE orders
		SET status = ?, trade_no = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_no = ? AND status = ?
	`
	result, err := r.q().ExecContext(ctx, query,
		model.OrderStatusCancelled,
		sql.NullString{String: tradeNo, Valid: tradeNo != ""},
		orderNo,
		model.OrderStatusPending,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdateTradeNo 记录网关交易号
func (r *OrderRepository) UpdateTradeNo(ctx context.Context, orderNo, tradeNo string) error {
	query := `
		UPDATE orders
		SET trade_no = ?, updated_at = CURRENT_TIMESTAMP
		WHERE order_no = ?
	`
	_, err := r.q().ExecContext(ctx, query,
		sql.NullString{String: tradeNo, Valid: tradeNo != ""},
		orderNo,
	)
	return err
}

// GetByUserID 分页获取用户订单
func (r *OrderRepository) GetByUserID(ctx context.Context, userID uint64, page, pageSize int) ([]model.Order, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = ?`
	if err := r.q().GetContext(ctx, &total, countQuery, userID); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.Order{}, 0, nil
	}

	offset := (page - 1) * pageSize
	var orders []model.Order
	query := `SELECT * FROM orders WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	if err := r.q().SelectContext(ctx, &orders, query, userID, pageSize, offset); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// GetStalePending 获取在指定时间之前创建且仍处于待支付状态的订单
func (r *OrderRepository) GetStalePending(ctx context.Context, before time.Time) ([]model.Order, error) {
	var orders []model.Order
	query := `SELECT * FROM orders WHERE status = ? AND created_at < ?`
	if err := r.q().SelectContext(ctx, &orders, query, model.OrderStatusPending, before); err != nil {
		return nil, err
	}
	return orders, nil
}
