package repository

import (
	"context"

	"github.com/ashwinyue/seek-portal/internal/model"
	"gorm.io/gorm"
)

// ConversationRepository 会话数据访问
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建会话仓库
func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create 创建会话，返回 ID
func (r *ConversationRepository) Create(ctx context.Context, conv *model.Conversation) (string, error) {
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return "", err
	}
	return conv.ID, nil
}

// GetByID 获取会话
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

// UpdateTranscript 整体替换对话记录
func (r *ConversationRepository) UpdateTranscript(ctx context.Context, id string, transcript model.Transcript) (*model.Conversation, error) {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).
		Update("conversations", transcript)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// ListByUser 列出用户的会话
func (r *ConversationRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Conversation, error) {
	var convs []*model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("modified_at DESC").
		Find(&convs).Error
	return convs, err
}
