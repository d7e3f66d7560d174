package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/service"
)

// KnowledgeHandler 知识库处理器
type KnowledgeHandler struct {
	svc *service.Services
}

// NewKnowledgeHandler 创建知识库处理器
func NewKnowledgeHandler(svc *service.Services) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// createKnowledgeBaseRequest 表单或 JSON 均可
type createKnowledgeBaseRequest struct {
	VectorIndex string `form:"vector_index" json:"vector_index" binding:"required"`
	Content     string `form:"content" json:"content"`
}

// CreateKnowledgeBase 切分文本并写入向量库
// POST /agent/create_knowledgebase
func (h *KnowledgeHandler) CreateKnowledgeBase(c *gin.Context) {
	if h.svc.Ingestor == nil {
		ServiceUnavailable(c, "knowledge ingestion is not configured")
		return
	}

	var req createKnowledgeBaseRequest
	if err := c.ShouldBind(&req); err != nil {
		Unprocessable(c, err.Error())
		return
	}

	result, err := h.svc.Ingestor.Ingest(c.Request.Context(), req.VectorIndex, req.Content)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Str("vector_index", req.VectorIndex).Msg("ingest failed")
		Error(c, err)
		return
	}
	Success(c, result)
}
