package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"nebulaai/internal/model"
)

// PlanRepository 套餐存储库
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository 创建套餐存储库
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// GetPlans 获取所有上架套餐
func (r *PlanRepository) GetPlans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	query := `SELECT * FROM plans WHERE status = 1 ORDER BY price ASC`
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetByID 根据ID获取套餐
func (r *PlanRepository) GetByID(ctx context.Context, id uint64) (*model.Plan, error) {
	var plan model.Plan
	query := `SELECT * FROM plans WHERE id = ?`
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetByCode 根据套餐标识获取套餐
func (r *PlanRepository) GetByCode(ctx context.Context, code string) (*model.Plan, error) {
	var plan model.Plan
	query := `SELECT * FROM plans WHERE code = ?`
	if err := r.db.GetContext(ctx, &plan, query, code); err != nil {
		return nil, err
	}
	return &plan, nil
}
