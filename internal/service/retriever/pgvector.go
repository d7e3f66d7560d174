package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
)

const backendPGVector = "pgvector"

// 与 langchain PGVector 的表结构保持一致，已有知识库可直接检索
const similaritySQL = `
SELECT e.id::text, e.document
FROM langchain_pg_embedding e
JOIN langchain_pg_collection c ON e.collection_id = c.uuid
WHERE c.name = $1
ORDER BY e.embedding <=> $2
LIMIT $3`

// Querier pgxpool.Pool 与 pgx.Conn 的公共子集
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGVectorProvider pgvector 余弦距离检索
type PGVectorProvider struct {
	db       Querier
	embedder embedding.Embedder
	topK     int
	logger   zerolog.Logger
}

var _ Provider = (*PGVectorProvider)(nil)

// NewPGVectorProvider 创建 pgvector 检索
func NewPGVectorProvider(db Querier, embedder embedding.Embedder, topK int) *PGVectorProvider {
	return &PGVectorProvider{
		db:       db,
		embedder: embedder,
		topK:     topK,
		logger:   observability.Component("retriever.pgvector"),
	}
}

// Context 检索并格式化
func (p *PGVectorProvider) Context(ctx context.Context, query, collection string) (string, error) {
	if skipCollection(collection) {
		return "", nil
	}

	start := time.Now()
	docs, err := p.search(ctx, query, collection)
	observability.RecordRetrieval(backendPGVector, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: pgvector %s: %v", ErrRetrieval, collection, err)
	}
	p.logger.Debug().Str("collection", collection).Int("documents", len(docs)).Msg("retrieved")
	return FormatContext(docs), nil
}

func (p *PGVectorProvider) search(ctx context.Context, query, collection string) ([]*schema.Document, error) {
	vec, err := EmbedQuery(ctx, p.embedder, query)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, similaritySQL, collection, vec, p.topK)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []*schema.Document
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		docs = append(docs, &schema.Document{ID: id, Content: content})
	}
	return docs, rows.Err()
}

// EmbedQuery 文本向量化为 pgvector 类型
func EmbedQuery(ctx context.Context, embedder embedding.Embedder, text string) (pgvector.Vector, error) {
	vecs, err := EmbedTexts(ctx, embedder, []string{text})
	if err != nil {
		return pgvector.Vector{}, err
	}
	return vecs[0], nil
}

// EmbedTexts 批量向量化
func EmbedTexts(ctx context.Context, embedder embedding.Embedder, texts []string) ([]pgvector.Vector, error) {
	if embedder == nil {
		return nil, errors.New("embedder not configured")
	}
	raw, err := embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(raw), len(texts))
	}

	out := make([]pgvector.Vector, len(raw))
	for i, v := range raw {
		f := make([]float32, len(v))
		for j, x := range v {
			f[j] = float32(x)
		}
		out[i] = pgvector.NewVector(f)
	}
	return out, nil
}
