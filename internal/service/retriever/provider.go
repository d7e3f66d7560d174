// Package retriever 提供检索上下文：按知识库检索文档并格式化为提示词上下文
package retriever

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// GeneralCollection 通用知识库，不做检索
const GeneralCollection = "general"

const separatorWidth = 90

// ErrRetrieval 检索后端失败
var ErrRetrieval = errors.New("retrieval failed")

// Provider 检索上下文提供者
type Provider interface {
	// Context 返回 query 在 collection 中的格式化上下文，无结果时返回空串
	Context(ctx context.Context, query, collection string) (string, error)
}

// FormatContext 将文档拼接为上下文块
func FormatContext(docs []*schema.Document) string {
	var b strings.Builder
	sep := strings.Repeat("- ", separatorWidth)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		b.WriteString("\n")
		b.WriteString(sep)
		b.WriteString("\nContent: ")
		b.WriteString(doc.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func skipCollection(collection string) bool {
	c := strings.TrimSpace(collection)
	return c == "" || c == GeneralCollection
}

// Disabled 未配置向量检索时使用，始终返回空上下文
type Disabled struct{}

// Context 返回空上下文
func (Disabled) Context(context.Context, string, string) (string, error) { return "", nil }
