package model

import "time"

// 会员类型
const (
	MembershipFree     = "free"
	MembershipTrial    = "free_trial"
	MembershipAnnual   = "annual"
	MembershipLifetime = "lifetime"
	MembershipAgent    = "agent"
)

// User 用户模型
// 账号本体由外部身份服务管理，这里只保存会员态和关联标识
type User struct {
	ID                  uint64     `db:"id" json:"id"`
	ExternalID          string     `db:"external_id" json:"external_id"` // 身份服务侧的用户标识
	Username            string     `db:"username" json:"username"`
	Email               string     `db:"email" json:"email"`
	Role                string     `db:"role" json:"role"` // user / admin
	Token               string     `db:"token" json:"-"`
	MembershipType      string     `db:"membership_type" json:"membership_type"`
	MembershipExpiresAt *time.Time `db:"membership_expires_at" json:"membership_expires_at"` // 空表示永久或未开通
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// IsMembershipActive 会员是否有效
// 过期的年费会员等价于free，但存储中不做主动降级，只在鉴权时判断
func (u *User) IsMembershipActive(now time.Time) bool {
	switch u.MembershipType {
	case MembershipLifetime, MembershipAgent:
		return true
	case MembershipAnnual, MembershipTrial:
		return u.MembershipExpiresAt != nil && u.MembershipExpiresAt.After(now)
	default:
		return false
	}
}
