// Package knowledge 提供知识库构建：文本切块后写入向量存储
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100

	statusSuccess = "success"
)

var (
	// ErrEmptyContent 内容为空
	ErrEmptyContent = errors.New("content is empty")
	// ErrInvalidIndexName 知识库名不合法
	ErrInvalidIndexName = errors.New("invalid vector index name")

	indexNamePattern = regexp.MustCompile(`^kb_[a-z0-9_]+$`)
)

// Store 向量存储
type Store interface {
	// Store 写入文档，返回写入的 ID
	Store(ctx context.Context, collection string, docs []*schema.Document) ([]string, error)
}

// IngestResult 构建结果
type IngestResult struct {
	Status                string `json:"status"`
	DocumentInsertedCount int    `json:"document_inserted_count"`
	VectorIndex           string `json:"vector_index"`
}

// Ingestor 知识库构建器
type Ingestor struct {
	store    Store
	splitter document.Transformer
	logger   zerolog.Logger
}

// NewIngestor 创建构建器，chunkSize/overlap 非正时使用默认值
func NewIngestor(ctx context.Context, store Store, chunkSize, overlap int) (*Ingestor, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = DefaultChunkOverlap
	}

	splitter, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Separators:  []string{"\n\n", "\n", ". ", "? ", "! ", ", ", " ", ""},
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}

	return &Ingestor{
		store:    store,
		splitter: splitter,
		logger:   observability.Component("knowledge"),
	}, nil
}

// ValidateIndexName 校验知识库名
func ValidateIndexName(name string) error {
	if !indexNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must match %s", ErrInvalidIndexName, name, indexNamePattern.String())
	}
	return nil
}

// Ingest 切块并写入 vectorIndex
func (i *Ingestor) Ingest(ctx context.Context, vectorIndex, content string) (*IngestResult, error) {
	if err := ValidateIndexName(vectorIndex); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	chunks, err := i.Split(ctx, vectorIndex, content)
	if err != nil {
		return nil, err
	}

	ids, err := i.store.Store(ctx, vectorIndex, chunks)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", vectorIndex, err)
	}

	i.logger.Info().Str("vector_index", vectorIndex).Int("chunks", len(ids)).Msg("knowledge base updated")
	return &IngestResult{
		Status:                statusSuccess,
		DocumentInsertedCount: len(ids),
		VectorIndex:           vectorIndex,
	}, nil
}

// Split 切块，每块带上 ID 和序号
func (i *Ingestor) Split(ctx context.Context, vectorIndex, content string) ([]*schema.Document, error) {
	docs, err := i.splitter.Transform(ctx, []*schema.Document{{Content: content, MetaData: map[string]any{}}})
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.Content) == "" {
			continue
		}
		meta := map[string]any{
			"vector_index": vectorIndex,
			"chunk_index":  len(out),
		}
		out = append(out, &schema.Document{
			ID:       uuid.New().String(),
			Content:  d.Content,
			MetaData: meta,
		})
	}
	return out, nil
}
