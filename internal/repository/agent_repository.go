package repository

import (
	"context"

	"github.com/ashwinyue/seek-portal/internal/model"
	"gorm.io/gorm"
)

// AgentRepository Agent数据访问
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建Agent仓库
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// List 列出全部Agent
func (r *AgentRepository) List(ctx context.Context) ([]*model.Agent, error) {
	var agents []*model.Agent
	err := r.db.WithContext(ctx).Order("id ASC").Find(&agents).Error
	return agents, err
}

// GetByID 获取Agent
func (r *AgentRepository) GetByID(ctx context.Context, id int64) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agent).Error; err != nil {
		return nil, translate(err)
	}
	return &agent, nil
}
