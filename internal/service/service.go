// Package service 组装业务服务：模型、检索、编排与会话
package service

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/config"
	"github.com/ashwinyue/seek-portal/internal/database"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/repository"
	"github.com/ashwinyue/seek-portal/internal/service/agent"
	"github.com/ashwinyue/seek-portal/internal/service/conversation"
	"github.com/ashwinyue/seek-portal/internal/service/knowledge"
	"github.com/ashwinyue/seek-portal/internal/service/retriever"
	"github.com/ashwinyue/seek-portal/internal/service/routing"
	"github.com/ashwinyue/seek-portal/internal/service/tool"
)

// Services 服务集合
type Services struct {
	Config *config.Config

	Registry      *agent.Registry
	Orchestrator  *agent.Orchestrator
	Classifier    *routing.Classifier
	Retriever     retriever.Provider
	Ingestor      *knowledge.Ingestor // 未配置 embedding 时为 nil
	Conversations *conversation.Manager
	Courses       repository.CourseStore

	closers []func()
}

// NewServices 创建所有服务
func NewServices(ctx context.Context, repo *repository.Repositories, cfg *config.Config, redisClient redis.UniversalClient) (*Services, error) {
	logger := observability.Component("service")

	chatModel, err := newChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	jsonModel, err := newJSONChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create json chat model: %w", err)
	}

	registry := agent.NewRegistry(repo.Agent)
	n, err := registry.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	logger.Info().Int("agents", n).Msg("agent registry loaded")

	courseTool := tool.NewCourseContentTool(repo.Course)
	orchestrator, err := agent.NewOrchestrator(ctx, registry, chatModel, courseTool,
		agent.WithTimeout(cfg.Agent.GetGenerationTimeout()),
		agent.WithJSONModel(jsonModel),
	)
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	var convOpts []conversation.Option
	if redisClient != nil {
		convOpts = append(convOpts, conversation.WithCache(conversation.NewRedisCache(redisClient, cfg.Redis.GetTranscriptTTL())))
	}

	s := &Services{
		Config:        cfg,
		Registry:      registry,
		Orchestrator:  orchestrator,
		Classifier:    routing.NewClassifier(jsonModel, registry),
		Retriever:     retriever.Disabled{},
		Conversations: conversation.NewManager(repo.Conversation, convOpts...),
		Courses:       repo.Course,
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if embedder == nil {
		logger.Warn().Msg("embedding api key not configured, retrieval and knowledge ingestion disabled")
		return s, nil
	}

	if err := s.initVectorBackend(ctx, cfg, embedder, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// initVectorBackend 按配置选择 es8 或 pgvector
func (s *Services) initVectorBackend(ctx context.Context, cfg *config.Config, embedder embedding.Embedder, logger zerolog.Logger) error {
	var store knowledge.Store

	switch cfg.Vector.Backend {
	case config.VectorBackendES8:
		client, err := newES8Client(cfg)
		if err != nil {
			return fmt.Errorf("create es client: %w", err)
		}
		s.Retriever = retriever.NewES8Provider(client, embedder, cfg.Elastic.IndexPrefix, cfg.Vector.TopK)
		store = knowledge.NewES8Store(client, embedder, cfg.Elastic.IndexPrefix, cfg.AI.Embedding.Dimensions)

	case config.VectorBackendPGVector:
		pool, err := database.NewVectorPool(ctx, cfg.Vector.GetDSN(&cfg.Database))
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pool.Close)

		pgStore := knowledge.NewPGVectorStore(pool, embedder)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		s.Retriever = retriever.NewPGVectorProvider(pool, embedder, cfg.Vector.TopK)
		store = pgStore

	default:
		return fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}

	ingestor, err := knowledge.NewIngestor(ctx, store, cfg.Vector.ChunkSize, cfg.Vector.ChunkOverlap)
	if err != nil {
		return err
	}
	s.Ingestor = ingestor

	logger.Info().Str("backend", cfg.Vector.Backend).Int("top_k", cfg.Vector.TopK).Msg("vector backend ready")
	return nil
}

// Close 释放连接
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
