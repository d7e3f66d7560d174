// Package conversation 提供会话管理：创建或恢复会话、追加对话轮次
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/repository"
)

const (
	titleMaxRunes = 60
	defaultTitle  = "New conversation"
)

var (
	// ErrConversationNotFound 会话不存在或不属于该用户，对外不区分
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMultiTurnWithoutID 多轮历史却没有会话 ID
	ErrMultiTurnWithoutID = errors.New("conversation_id is required when history has more than one entry")
)

// ResumeRequest 创建或恢复会话的参数
type ResumeRequest struct {
	History        []model.Message
	ConversationID string
	AgentID        int64
	UserID         int64
	Query          string
}

// Manager 会话管理器
type Manager struct {
	store  repository.ConversationStore
	cache  Cache
	logger zerolog.Logger
}

// Option 管理器选项
type Option func(*Manager)

// WithCache 设置会话缓存
func WithCache(c Cache) Option {
	return func(m *Manager) {
		m.cache = c
	}
}

// NewManager 创建会话管理器
func NewManager(store repository.ConversationStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		cache:  nopCache{},
		logger: observability.Component("conversation"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate 检查请求能否创建或恢复会话，不写入任何数据
func (m *Manager) Validate(ctx context.Context, req ResumeRequest) error {
	if req.ConversationID == "" {
		if len(req.History) > 1 {
			return ErrMultiTurnWithoutID
		}
		return nil
	}
	_, err := m.Get(ctx, req.ConversationID, req.UserID)
	return err
}

// CreateOrResume 返回本轮使用的会话 ID
//
// 无会话 ID 且历史不超过一条时新建会话；
// 无会话 ID 且历史多于一条返回 ErrMultiTurnWithoutID；
// 会话 ID 必须属于 UserID，否则返回 ErrConversationNotFound。
func (m *Manager) CreateOrResume(ctx context.Context, req ResumeRequest) (string, error) {
	if req.ConversationID == "" {
		if len(req.History) > 1 {
			return "", ErrMultiTurnWithoutID
		}
		conv := &model.Conversation{
			UserID:     req.UserID,
			AgentID:    req.AgentID,
			Title:      Title(req.Query),
			Transcript: model.Transcript{},
		}
		id, err := m.store.Create(ctx, conv)
		if err != nil {
			return "", fmt.Errorf("create conversation: %w", err)
		}
		m.cacheSet(ctx, conv)
		m.logger.Info().Str("conversation_id", id).Int64("user_id", req.UserID).Msg("conversation created")
		return id, nil
	}

	if _, err := m.Get(ctx, req.ConversationID, req.UserID); err != nil {
		return "", err
	}
	return req.ConversationID, nil
}

// AppendTurn 追加用户输入和助手回复，一次更新写入
func (m *Manager) AppendTurn(ctx context.Context, id, userText, assistantText string) error {
	conv, err := m.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	transcript := append(conv.Transcript,
		model.TextMessage(model.RoleUser, userText),
		model.TextMessage(model.RoleAssistant, assistantText),
	)
	updated, err := m.store.UpdateTranscript(ctx, id, transcript)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("update conversation %s: %w", id, err)
	}
	m.cacheSet(ctx, updated)
	return nil
}

// Get 获取用户的会话
func (m *Manager) Get(ctx context.Context, id string, userID int64) (*model.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrConversationNotFound
	}

	conv, err := m.cache.Get(ctx, id)
	if err != nil {
		m.logger.Warn().Err(err).Str("conversation_id", id).Msg("conversation cache read failed")
	}
	if conv == nil {
		conv, err = m.store.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("get conversation %s: %w", id, err)
		}
		m.cacheSet(ctx, conv)
	}

	if !conv.OwnedBy(userID) {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// ListForUser 列出用户的全部会话
func (m *Manager) ListForUser(ctx context.Context, userID int64) ([]*model.Conversation, error) {
	convs, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

func (m *Manager) cacheSet(ctx context.Context, conv *model.Conversation) {
	if conv == nil {
		return
	}
	if err := m.cache.Set(ctx, conv); err != nil {
		m.logger.Warn().Err(err).Str("conversation_id", conv.ID).Msg("conversation cache write failed")
	}
}

// Title 取输入前 60 个字符作为会话标题
func Title(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if q == "" {
		return defaultTitle
	}
	r := []rune(q)
	if len(r) > titleMaxRunes {
		return string(r[:titleMaxRunes])
	}
	return q
}
