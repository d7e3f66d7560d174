// Package testutil 提供测试辅助工具
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/repository"
)

// ========== 智能体样例 ==========

// HostAgent 主智能体样例，ID 与默认 agent_id 一致
func HostAgent() *model.Agent {
	return &model.Agent{
		ID:                 8,
		Name:               "host_agent",
		Role:               model.AgentRoleHost,
		ModelName:          "gpt-4o-mini",
		SystemPrompt:       "You are the Seek Portal assistant.",
		Temperature:        0.3,
		ResponseTokenLimit: 512,
		ResponseFormat:     model.ResponseFormatText,
	}
}

// ParserAgent 路由智能体样例
func ParserAgent() *model.Agent {
	return &model.Agent{
		ID:             2,
		Name:           "parser_agent",
		Role:           model.AgentRoleParser,
		ModelName:      "gpt-4o-mini",
		ResponseFormat: model.ResponseFormatJSON,
	}
}

// ========== 内存 AgentStore ==========

// MemoryAgentStore 内存智能体仓库
type MemoryAgentStore struct {
	mu      sync.Mutex
	agents  map[int64]*model.Agent
	ListErr error
	Gets    int
}

var _ repository.AgentStore = (*MemoryAgentStore)(nil)

// NewMemoryAgentStore 创建内存智能体仓库
func NewMemoryAgentStore(agents ...*model.Agent) *MemoryAgentStore {
	s := &MemoryAgentStore{agents: make(map[int64]*model.Agent)}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return s
}

// Put 新增或替换
func (s *MemoryAgentStore) Put(a *model.Agent) {
	s.mu.Lock()
	s.agents[a.ID] = a
	s.mu.Unlock()
}

// List 列出全部
func (s *MemoryAgentStore) List(_ context.Context) ([]*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]*model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetByID 按 ID 获取
func (s *MemoryAgentStore) GetByID(_ context.Context, id int64) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	a, ok := s.agents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ========== 内存 ConversationStore ==========

// MemoryConversationStore 内存会话仓库
type MemoryConversationStore struct {
	mu      sync.Mutex
	convs   map[string]*model.Conversation
	Updates int
	Creates int
}

var _ repository.ConversationStore = (*MemoryConversationStore)(nil)

// NewMemoryConversationStore 创建内存会话仓库
func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{convs: make(map[string]*model.Conversation)}
}

// Create 创建会话
func (s *MemoryConversationStore) Create(_ context.Context, conv *model.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	conv.CreatedAt, conv.ModifiedAt = now, now
	if conv.Transcript == nil {
		conv.Transcript = model.Transcript{}
	}
	cp := *conv
	s.convs[conv.ID] = &cp
	s.Creates++
	return conv.ID, nil
}

// GetByID 获取会话
func (s *MemoryConversationStore) GetByID(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Transcript = append(model.Transcript(nil), c.Transcript...)
	return &cp, nil
}

// UpdateTranscript 替换对话记录
func (s *MemoryConversationStore) UpdateTranscript(_ context.Context, id string, transcript model.Transcript) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c.Transcript = append(model.Transcript(nil), transcript...)
	c.ModifiedAt = time.Now().UTC()
	s.Updates++
	cp := *c
	return &cp, nil
}

// ListByUser 列出用户会话
func (s *MemoryConversationStore) ListByUser(_ context.Context, userID int64) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Conversation
	for _, c := range s.convs {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModifiedAt.After(out[j].ModifiedAt) })
	return out, nil
}

// Seed 直接写入会话
func (s *MemoryConversationStore) Seed(conv *model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	s.convs[conv.ID] = &cp
}
