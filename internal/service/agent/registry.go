package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/repository"
)

// Registry 智能体配置的读穿缓存
// 启动时加载，显式 Refresh 时整体替换
type Registry struct {
	repo   repository.AgentStore
	logger zerolog.Logger

	mu     sync.RWMutex
	agents map[int64]*model.Agent
}

// NewRegistry 创建注册表
func NewRegistry(repo repository.AgentStore) *Registry {
	return &Registry{
		repo:   repo,
		logger: observability.Component("agent_registry"),
		agents: make(map[int64]*model.Agent),
	}
}

// Refresh 从仓库重新加载全部智能体，返回加载数量
func (r *Registry) Refresh(ctx context.Context) (int, error) {
	list, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load agents: %w", err)
	}

	agents := make(map[int64]*model.Agent, len(list))
	for _, a := range list {
		if !r.normalize(a) {
			continue
		}
		agents[a.ID] = a
	}

	r.mu.Lock()
	r.agents = agents
	r.mu.Unlock()

	r.logger.Info().Int("count", len(agents)).Msg("agent registry loaded")
	return len(agents), nil
}

// Get 按 ID 获取智能体，缓存未命中时回源一次
func (r *Registry) Get(ctx context.Context, id int64) (*model.Agent, error) {
	r.mu.RLock()
	a, ok := r.agents[id]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	a, err := r.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrAgentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %d: %w", id, err)
	}
	if !r.normalize(a) {
		return nil, fmt.Errorf("%w: id %d has invalid role", ErrAgentNotFound, id)
	}

	r.mu.Lock()
	r.agents[id] = a
	r.mu.Unlock()
	return a, nil
}

// FirstByRole 返回该角色下 ID 最小的智能体
func (r *Registry) FirstByRole(role model.AgentRole) (*model.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *model.Agent
	for _, a := range r.agents {
		if a.Role != role {
			continue
		}
		if found == nil || a.ID < found.ID {
			found = a
		}
	}
	return found, found != nil
}

// List 按 ID 排序的快照
func (r *Registry) List() []*model.Agent {
	r.mu.RLock()
	list := make([]*model.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		list = append(list, a)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// normalize 补全默认值，角色非法时返回 false
func (r *Registry) normalize(a *model.Agent) bool {
	if a.Role == "" {
		a.Role = model.AgentRolePlain
	}
	if a.ResponseFormat == "" {
		a.ResponseFormat = model.ResponseFormatText
	}
	if !a.Role.Valid() {
		r.logger.Warn().Int64("agent_id", a.ID).Str("role", string(a.Role)).Msg("skipping agent with unknown role")
		return false
	}
	return true
}
