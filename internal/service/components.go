package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/elastic/go-elasticsearch/v8"

	"github.com/ashwinyue/seek-portal/internal/config"
)

const defaultChatModel = "gpt-4o-mini"

// chatModelConfig 根据 provider 组装 OpenAI 兼容配置
func chatModelConfig(cfg *config.Config) (*openai.ChatModelConfig, error) {
	aiCfg := cfg.AI

	var apiKey, baseURL, modelName string
	var timeout int

	switch aiCfg.Provider {
	case "openai", "":
		apiKey = aiCfg.OpenAI.APIKey
		baseURL = aiCfg.OpenAI.BaseURL
		modelName = aiCfg.OpenAI.Model
		timeout = aiCfg.OpenAI.Timeout
	case "deepseek":
		apiKey = aiCfg.DeepSeek.APIKey
		baseURL = aiCfg.DeepSeek.BaseURL
		modelName = aiCfg.DeepSeek.Model
		timeout = aiCfg.DeepSeek.Timeout
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", aiCfg.Provider)
	}

	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for provider: %s", aiCfg.Provider)
	}
	if modelName == "" {
		modelName = defaultChatModel
	}

	mc := &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   modelName,
	}
	if timeout > 0 {
		mc.Timeout = time.Duration(timeout) * time.Second
	}
	return mc, nil
}

// newChatModel 创建支持工具调用的流式模型
func newChatModel(ctx context.Context, cfg *config.Config) (*openai.ChatModel, error) {
	mc, err := chatModelConfig(cfg)
	if err != nil {
		return nil, err
	}
	return openai.NewChatModel(ctx, mc)
}

// newJSONChatModel 创建 JSON 输出模式的模型，用于路由和 JSON 智能体
func newJSONChatModel(ctx context.Context, cfg *config.Config) (*openai.ChatModel, error) {
	mc, err := chatModelConfig(cfg)
	if err != nil {
		return nil, err
	}
	mc.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return openai.NewChatModel(ctx, mc)
}

// newEmbedder 创建 Embedding 器，未配置时返回 nil
func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	embCfg := cfg.AI.Embedding

	switch embCfg.Provider {
	case "alibaba", "qwen", "dashscope", "":
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", embCfg.Provider)
	}
	if embCfg.APIKey == "" {
		return nil, nil
	}

	model := embCfg.Model
	if model == "" {
		model = "text-embedding-v3"
	}
	ec := &dashscope.EmbeddingConfig{
		APIKey: embCfg.APIKey,
		Model:  model,
	}
	if embCfg.Timeout > 0 {
		ec.Timeout = time.Duration(embCfg.Timeout) * time.Second
	}
	if embCfg.Dimensions > 0 {
		dims := embCfg.Dimensions
		ec.Dimensions = &dims
	}
	return dashscope.NewEmbedder(ctx, ec)
}

// newES8Client 创建 Elasticsearch 客户端
func newES8Client(cfg *config.Config) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Elastic.Host},
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
}
