package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"nebulaai/internal/model"
)

// UserRepository 用户仓库接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByToken(ctx context.Context, token string) (*model.User, error)
	UpdateMembership(ctx context.Context, userID uint64, membershipType string, expiresAt *time.Time) error
}

// TransactionalUserRepository 扩展了UserRepository以支持事务
type TransactionalUserRepository interface {
	UserRepository
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	WithTx(tx *sqlx.Tx) UserRepository
}

// userRepository 用户仓库实现
type userRepository struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

// NewUserRepository 创建用户仓库实例
func NewUserRepository(db *sqlx.DB) TransactionalUserRepository {
	return &userRepository{db: db}
}

// BeginTx 开始一个新的事务
func (r *userRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// WithTx 返回一个在事务上下文中操作的用户仓库
func (r *userRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepository{db: r.db, tx: tx}
}

func (r *userRepository) q() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (external_id, username, email, role, token, membership_type, membership_expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.q().ExecContext(ctx, query,
		user.ExternalID,
		user.Username,
		user.Email,
		user.Role,
		user.Token,
		user.MembershipType,
		user.MembershipExpiresAt,
	)
	if err != nil {
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		user.ID = uint64(id)
	}
	return nil
}

// GetByID 根据ID获取用户
func (r *userRepository) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE id = ?`
	if err := r.q().GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByExternalID 根据外部身份标识获取用户
func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE external_id = ?`
	if err := r.q().GetContext(ctx, &user, query, externalID); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail 根据邮箱获取用户
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE email = ?`
	if err := r.q().GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByToken 根据Token获取用户
func (r *userRepository) GetByToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	query := `SELECT * FROM users WHERE token = ?`
	if err := r.q().GetContext(ctx, &user, query, token); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMembership 更新用户会员类型和有效期
// 只允许会员开通流程调用，须与订单状态变更在同一事务内执行
func (r *userRepository) UpdateMembership(ctx context.Context, userID uint64, membershipType string, expiresAt *time.Time) error {
	query := `
		UPDATE users
		SET membership_type = ?, membership_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	_, err := r.q().ExecContext(ctx, query, membershipType, expiresAt, userID)
	return err
}
