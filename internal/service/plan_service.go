package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"nebulaai/internal/model"
	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

const plansCacheKey = "plans:list"

// PlanService 套餐服务
type PlanService struct {
	planRepo    *repository.PlanRepository
	redisClient *redis.Client
	logger      *logger.Logger
}

// NewPlanService 创建套餐服务
func NewPlanService(planRepo *repository.PlanRepository, redisClient *redis.Client, logger *logger.Logger) *PlanService {
	return &PlanService{
		planRepo:    planRepo,
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetPlans 获取上架套餐列表，优先读缓存
func (s *PlanService) GetPlans(ctx context.Context) ([]model.Plan, error) {
	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, plansCacheKey).Bytes()
		if err == nil {
			var plans []model.Plan
			if err := json.Unmarshal(cached, &plans); err == nil {
				return plans, nil
			}
		}
	}

	plans, err := s.planRepo.GetPlans(ctx)
	if err != nil {
		s.logger.Error("获取套餐列表失败", "error", err)
		return nil, err
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(plans); err == nil {
			s.redisClient.Set(ctx, plansCacheKey, data, 5*time.Minute)
		}
	}
	return plans, nil
}

// GetPlanByID 根据ID获取套餐
func (s *PlanService) GetPlanByID(ctx context.Context, id uint64) (*model.Plan, error) {
	return s.planRepo.GetByID(ctx, id)
}

// GetPlanByCode 根据套餐标识获取套餐
func (s *PlanService) GetPlanByCode(ctx context.Context, code string) (*model.Plan, error) {
	return s.planRepo.GetByCode(ctx, code)
}
