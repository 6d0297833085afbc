package model

import (
	"database/sql"
	"time"
)

// 订单状态
// 状态只允许从待支付单向流转，已支付订单不会再发生任何状态变化
const (
	OrderStatusPending   = 0 // 待支付
	OrderStatusPaid      = 1 // 已支付
	OrderStatusFailed    = 2 // 支付失败
	OrderStatusCancelled = 3 // 已取消
)

// Order 订单模型
// 订单是财务审计记录，只更新状态，永不删除
type Order struct {
	ID        uint64          `db:"id" json:"id"`
	OrderNo   string          `db:"order_no" json:"order_no"`
	UserID    uint64          `db:"user_id" json:"user_id"`
	PlanID    sql.NullInt64   `db:"plan_id" json:"plan_id"` // 人工补单时可能为空
	Subject   string          `db:"subject" json:"subject"`
	Amount    float64         `db:"amount" json:"amount"`
	Status    int             `db:"status" json:"status"`
	TradeNo   sql.NullString  `db:"trade_no" json:"trade_no,omitempty"` // 支付宝交易号，支付确认后写入
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
	PaidAt    sql.NullTime    `db:"paid_at" json:"paid_at,omitempty"`
}

// IsPaid 订单是否已支付
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// IsTerminal 订单是否已处于终态
func (o *Order) IsTerminal() bool {
	return o.Status != OrderStatusPending
}
