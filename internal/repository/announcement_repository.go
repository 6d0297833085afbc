package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"nebulaai/internal/model"
)

// AnnouncementRepository 公告存储库
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository 创建公告存储库
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// GetAnnouncements 分页获取公告，按创建时间倒序
func (r *AnnouncementRepository) GetAnnouncements(ctx context.Context, page, limit int) ([]model.Announcement, error) {
	offset := (page - 1) * limit
	var announcements []model.Announcement
	query := `SELECT * FROM announcements ORDER BY created_at DESC LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &announcements, query, limit, offset); err != nil {
		return nil, err
	}
	return announcements, nil
}

// CountAnnouncements 获取公告总数
func (r *AnnouncementRepository) CountAnnouncements(ctx context.Context) (int64, error) {
	var total int64
	query := `SELECT COUNT(*) FROM announcements`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, err
	}
	return total, nil
}

// Create 创建公告
func (r *AnnouncementRepository) Create(ctx context.Context, a *model.Announcement) error {
	query := `INSERT INTO announcements (title, content) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, query, a.Title, a.Content)
	if err != nil {
		return err
	}
	if id, err := result.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}
