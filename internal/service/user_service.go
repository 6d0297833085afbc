package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"nebulaai/internal/model"
	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("用户不存在")

// UserService 用户服务接口
// 账号注册和登录由外部身份服务负责，这里只做会员态的读写和镜像
type UserService interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	GetByToken(ctx context.Context, token string) (*model.User, error)
	// ResolveOrCreate 按标识（邮箱或外部用户ID）解析用户，不存在则创建镜像记录，
	// 总是返回一个非空用户或错误
	ResolveOrCreate(ctx context.Context, identifier string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	logger   *logger.Logger
}

// NewUserService 创建用户服务
func NewUserService(userRepo repository.UserRepository, logger *logger.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// generateRandomString 生成随机字符串
func generateRandomString(length int) string {
	b := make([]byte, length/2)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GetByID 根据ID获取用户
func (s *userService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetByToken 根据Token获取用户
func (s *userService) GetByToken(ctx context.Context, token string) (*model.User, error) {
	user, err := s.userRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ResolveOrCreate 按标识解析用户，不存在则创建
func (s *userService) ResolveOrCreate(ctx context.Context, identifier string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidParams
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.userRepo.GetByEmail(ctx, identifier)
	} else {
		user, err = s.userRepo.GetByExternalID(ctx, identifier)
	}
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// 身份服务侧已有账号但本地没有镜像，补建一条
	user = &model.User{
		ExternalID:     identifier,
		Username:       identifier,
		Role:           "user",
		Token:          generateRandomString(32),
		MembershipType: model.MembershipFree,
	}
	if strings.Contains(identifier, "@") {
		user.Email = identifier
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	s.logger.Info("按标识创建用户镜像", "identifier", identifier, "user_id", user.ID)
	return user, nil
}
