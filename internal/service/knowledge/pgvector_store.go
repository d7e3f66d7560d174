package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashwinyue/seek-portal/internal/service/retriever"
)

var schemaSQL = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS langchain_pg_collection (
	uuid UUID PRIMARY KEY,
	name VARCHAR NOT NULL,
	cmetadata JSON
)`,
	`CREATE TABLE IF NOT EXISTS langchain_pg_embedding (
	id VARCHAR PRIMARY KEY,
	collection_id UUID REFERENCES langchain_pg_collection (uuid) ON DELETE CASCADE,
	embedding VECTOR,
	document VARCHAR,
	cmetadata JSONB
)`,
}

const (
	selectCollectionSQL = `SELECT uuid FROM langchain_pg_collection WHERE name = $1`
	insertCollectionSQL = `INSERT INTO langchain_pg_collection (uuid, name, cmetadata) VALUES ($1, $2, '{}'::json)`

	insertEmbeddingSQL = `
INSERT INTO langchain_pg_embedding (id, collection_id, embedding, document, cmetadata)
VALUES ($1, $2, $3, $4, $5)`
)

// PGVectorStore pgvector 存储，沿用 langchain 表结构
type PGVectorStore struct {
	pool     *pgxpool.Pool
	embedder embedding.Embedder
}

var _ Store = (*PGVectorStore)(nil)

// NewPGVectorStore 创建 pgvector 存储
func NewPGVectorStore(pool *pgxpool.Pool, embedder embedding.Embedder) *PGVectorStore {
	return &PGVectorStore{pool: pool, embedder: embedder}
}

// EnsureSchema 表不存在时创建
func (s *PGVectorStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaSQL {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

// Store 在一个事务内创建集合并写入全部分块
func (s *PGVectorStore) Store(ctx context.Context, collection string, docs []*schema.Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := retriever.EmbedTexts(ctx, s.embedder, texts)
	if err != nil {
		return nil, err
	}

	var ids []string
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		collectionID, err := collectionUUID(ctx, tx, collection)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, d := range docs {
			meta, err := json.Marshal(d.MetaData)
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			id := d.ID
			if id == "" {
				id = uuid.New().String()
			}
			batch.Queue(insertEmbeddingSQL, id, collectionID, vectors[i], d.Content, meta)
			ids = append(ids, id)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func collectionUUID(ctx context.Context, tx pgx.Tx, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, selectCollectionSQL, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("lookup collection %s: %w", name, err)
	}

	id = uuid.New()
	if _, err := tx.Exec(ctx, insertCollectionSQL, id, name); err != nil {
		return uuid.Nil, fmt.Errorf("create collection %s: %w", name, err)
	}
	return id, nil
}
