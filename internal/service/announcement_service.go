package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nebulaai/internal/model"
	"nebulaai/internal/repository"
	"nebulaai/pkg/logger"
)

// AnnouncementService 公告服务
type AnnouncementService struct {
	announcementRepo *repository.AnnouncementRepository
	redisClient      *redis.Client
	logger           *logger.Logger
}

// NewAnnouncementService 创建公告服务实例
func NewAnnouncementService(announcementRepo *repository.AnnouncementRepository, redisClient *redis.Client, logger *logger.Logger) *AnnouncementService {
	return &AnnouncementService{
		announcementRepo: announcementRepo,
		redisClient:      redisClient,
		logger:           logger,
	}
}

// GetAnnouncements 获取分页公告列表
func (s *AnnouncementService) GetAnnouncements(ctx context.Context, page, limit int) (*model.PaginatedAnnouncements, error) {
	cacheKey := fmt.Sprintf("announcements:list:%d:%d", page, limit)
	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var result model.PaginatedAnnouncements
			if err := json.Unmarshal(cached, &result); err == nil {
				return &result, nil
			}
		}
	}

	total, err := s.announcementRepo.CountAnnouncements(ctx)
	if err != nil {
		s.logger.Error("获取公告总数失败", "error", err)
		return nil, err
	}

	announcements, err := s.announcementRepo.GetAnnouncements(ctx, page, limit)
	if err != nil {
		s.logger.Error("获取公告列表失败", "error", err)
		return nil, err
	}

	result := &model.PaginatedAnnouncements{
		Total: total,
		Items: announcements,
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(result); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, 5*time.Minute)
		}
	}
	return result, nil
}

// CreateAnnouncement 创建公告并清理列表缓存
func (s *AnnouncementService) CreateAnnouncement(ctx context.Context, a *model.Announcement) error {
	if err := s.announcementRepo.Create(ctx, a); err != nil {
		return err
	}

	if s.redisClient != nil {
		iter := s.redisClient.Scan(ctx, 0, "announcements:list:*", 100).Iterator()
		for iter.Next(ctx) {
			s.redisClient.Del(ctx, iter.Val())
		}
	}
	return nil
}
