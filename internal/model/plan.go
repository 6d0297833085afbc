package model

import "time"

// Plan 会员套餐模型
type Plan struct {
	ID             uint64    `db:"id" json:"id"`
	Code           string    `db:"code" json:"code"` // 对外的套餐标识，如 p-annual
	Name           string    `db:"name" json:"name"`
	Price          float64   `db:"price" json:"price"`
	MembershipType string    `db:"membership_type" json:"membership_type"`
	DurationDays   int       `db:"duration_days" json:"duration_days"` // 0表示永久有效
	Status         int       `db:"status" json:"status"`               // 1上架 0下架
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
