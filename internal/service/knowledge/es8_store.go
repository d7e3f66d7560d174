package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/cloudwego/eino-ext/components/indexer/es8"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/service/retriever"
)

const (
	defaultDimensions = 1536
	indexBatchSize    = 10
)

// ES8Store Elasticsearch 向量存储，每个知识库一个索引
type ES8Store struct {
	client     *elasticsearch.Client
	embedder   embedding.Embedder
	prefix     string
	dimensions int

	mu       sync.Mutex
	indexers map[string]indexer.Indexer
	logger   zerolog.Logger
}

var _ Store = (*ES8Store)(nil)

// NewES8Store 创建 ES8 存储
func NewES8Store(client *elasticsearch.Client, embedder embedding.Embedder, prefix string, dimensions int) *ES8Store {
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &ES8Store{
		client:     client,
		embedder:   embedder,
		prefix:     prefix,
		dimensions: dimensions,
		indexers:   make(map[string]indexer.Indexer),
		logger:     observability.Component("knowledge.es8"),
	}
}

// Store 写入文档，索引不存在时先创建
func (s *ES8Store) Store(ctx context.Context, collection string, docs []*schema.Document) ([]string, error) {
	idx, err := s.indexer(ctx, collection)
	if err != nil {
		return nil, err
	}
	return idx.Store(ctx, docs)
}

func (s *ES8Store) indexer(ctx context.Context, collection string) (indexer.Indexer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexers[collection]; ok {
		return idx, nil
	}

	name := retriever.IndexName(s.prefix, collection)
	if err := s.ensureIndex(ctx, name); err != nil {
		return nil, err
	}

	idx, err := es8.NewIndexer(ctx, &es8.IndexerConfig{
		Client:           s.client,
		Index:            name,
		BatchSize:        indexBatchSize,
		Embedding:        s.embedder,
		DocumentToFields: documentToFields,
	})
	if err != nil {
		return nil, fmt.Errorf("create es8 indexer for %s: %w", name, err)
	}
	s.indexers[collection] = idx
	return idx, nil
}

// documentToFields 正文写入 content 并向量化到 content_vector，元数据原样存储
func documentToFields(_ context.Context, doc *schema.Document) (map[string]es8.FieldValue, error) {
	fields := map[string]es8.FieldValue{
		retriever.ContentField: {
			Value:    doc.Content,
			EmbedKey: retriever.ContentVectorField,
		},
	}
	for k, v := range doc.MetaData {
		if k == retriever.ContentField || k == retriever.ContentVectorField {
			continue
		}
		fields[k] = es8.FieldValue{Value: v}
	}
	return fields, nil
}

// indexMapping 索引映射
func indexMapping(dimensions int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				retriever.ContentField: map[string]any{"type": "text"},
				retriever.ContentVectorField: map[string]any{
					"type":       "dense_vector",
					"dims":       dimensions,
					"index":      true,
					"similarity": "cosine",
				},
				"vector_index": map[string]any{"type": "keyword"},
				"chunk_index":  map[string]any{"type": "integer"},
			},
		},
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
	}
}

func (s *ES8Store) ensureIndex(ctx context.Context, name string) error {
	res, err := s.client.Indices.Exists([]string{name}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(indexMapping(s.dimensions))
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{Index: name, Body: bytes.NewReader(body)}
	res, err = req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", name, res.String())
	}

	s.logger.Info().Str("index", name).Int("dimensions", s.dimensions).Msg("index created")
	return nil
}
