package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/seek-portal/internal/service/agent"
	"github.com/ashwinyue/seek-portal/internal/service/conversation"
	"github.com/ashwinyue/seek-portal/internal/service/knowledge"
	"github.com/ashwinyue/seek-portal/internal/service/routing"
)

// ========== 响应格式 ==========

// ErrorResponse 错误响应，沿用门户前端读取的 detail 字段
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Detail: msg})
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Detail: msg})
}

// Unprocessable 422 参数校验失败
func Unprocessable(c *gin.Context, msg string) {
	c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Detail: msg})
}

// InternalServerError 500 错误响应
func InternalServerError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: msg})
}

// ServiceUnavailable 503 错误响应
func ServiceUnavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: msg})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, msg := statusOf(err)
	c.JSON(status, ErrorResponse{Detail: msg})
}

// statusOf 业务错误到 HTTP 状态码
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrAgentNotFound):
		return http.StatusNotFound, "Agent not found"
	case errors.Is(err, conversation.ErrConversationNotFound):
		return http.StatusNotFound, "Conversation not found"
	case errors.Is(err, conversation.ErrMultiTurnWithoutID):
		return http.StatusBadRequest, "conversation_id is required when history has more than one entry"
	case errors.Is(err, conversation.ErrMalformedHistory):
		return http.StatusInternalServerError, "Invalid history format"
	case errors.Is(err, knowledge.ErrEmptyContent):
		return http.StatusBadRequest, "'content' must be provided"
	case errors.Is(err, knowledge.ErrInvalidIndexName):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, routing.ErrClassifyFailed), errors.Is(err, routing.ErrMalformedDecision):
		return http.StatusInternalServerError, "Failed to route query"
	case errors.Is(err, agent.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, timeoutMessage
	case errors.Is(err, agent.ErrUpstreamLLM), errors.Is(err, agent.ErrMalformedOutput):
		return http.StatusBadGateway, "Failed to generate response"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
