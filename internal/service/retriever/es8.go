package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/retriever/es8"
	"github.com/cloudwego/eino-ext/components/retriever/es8/search_mode"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
)

const (
	backendES8 = "es8"

	// ContentField 文本字段
	ContentField = "content"
	// ContentVectorField 向量字段
	ContentVectorField = "content_vector"
)

type retrieverFactory func(ctx context.Context, index string) (retriever.Retriever, error)

// ES8Provider Elasticsearch 检索，每个知识库对应一个索引，检索器按需创建
type ES8Provider struct {
	prefix     string
	factory    retrieverFactory
	retrievers map[string]retriever.Retriever
	mu         sync.RWMutex
	logger     zerolog.Logger
}

var _ Provider = (*ES8Provider)(nil)

// NewES8Provider 创建 ES8 检索
func NewES8Provider(client *elasticsearch.Client, embedder embedding.Embedder, indexPrefix string, topK int) *ES8Provider {
	factory := func(ctx context.Context, index string) (retriever.Retriever, error) {
		return es8.NewRetriever(ctx, &es8.RetrieverConfig{
			Client:       client,
			Index:        index,
			TopK:         topK,
			SearchMode:   search_mode.SearchModeDenseVectorSimilarity(search_mode.DenseVectorSimilarityTypeCosineSimilarity, ContentVectorField),
			ResultParser: parseHit,
			Embedding:    embedder,
		})
	}
	return newES8Provider(indexPrefix, factory)
}

func newES8Provider(prefix string, factory retrieverFactory) *ES8Provider {
	return &ES8Provider{
		prefix:     prefix,
		factory:    factory,
		retrievers: make(map[string]retriever.Retriever),
		logger:     observability.Component("retriever.es8"),
	}
}

// IndexName 知识库对应的 ES 索引名
func IndexName(prefix, collection string) string {
	if prefix == "" {
		return collection
	}
	return prefix + "_" + collection
}

// Context 检索并格式化
func (p *ES8Provider) Context(ctx context.Context, query, collection string) (string, error) {
	if skipCollection(collection) {
		return "", nil
	}

	r, err := p.get(ctx, collection)
	if err != nil {
		return "", err
	}

	start := time.Now()
	docs, err := r.Retrieve(ctx, query)
	observability.RecordRetrieval(backendES8, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: es8 %s: %v", ErrRetrieval, collection, err)
	}
	p.logger.Debug().Str("collection", collection).Int("documents", len(docs)).Msg("retrieved")
	return FormatContext(docs), nil
}

func (p *ES8Provider) get(ctx context.Context, collection string) (retriever.Retriever, error) {
	p.mu.RLock()
	r, ok := p.retrievers[collection]
	p.mu.RUnlock()
	if ok {
		return r, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.retrievers[collection]; ok {
		return r, nil
	}
	r, err := p.factory(ctx, IndexName(p.prefix, collection))
	if err != nil {
		return nil, fmt.Errorf("%w: create es8 retriever for %s: %v", ErrRetrieval, collection, err)
	}
	p.retrievers[collection] = r
	return r, nil
}

// parseHit 从 _source 读取文本字段
func parseHit(_ context.Context, hit types.Hit) (*schema.Document, error) {
	doc := &schema.Document{MetaData: map[string]any{}}
	if hit.Id_ != nil {
		doc.ID = *hit.Id_
	}
	if hit.Score_ != nil {
		doc.WithScore(float64(*hit.Score_))
	}
	if len(hit.Source_) == 0 {
		return doc, nil
	}

	var src map[string]any
	if err := json.Unmarshal(hit.Source_, &src); err != nil {
		return nil, fmt.Errorf("decode hit source: %w", err)
	}
	for k, v := range src {
		switch k {
		case ContentField:
			if s, ok := v.(string); ok {
				doc.Content = s
			}
		case ContentVectorField:
		default:
			doc.MetaData[k] = v
		}
	}
	return doc, nil
}
