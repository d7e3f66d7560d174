package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/service"
)

// ConversationHandler 会话处理器
type ConversationHandler struct {
	svc *service.Services
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(svc *service.Services) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// GetConversation 获取会话记录，仅限所有者
// GET /conversation/:id?user_id=
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	var q struct {
		UserID *int64 `form:"user_id" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		Unprocessable(c, err.Error())
		return
	}

	conv, err := h.svc.Conversations.Get(c.Request.Context(), c.Param("id"), *q.UserID)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, conv)
}

// ListUserConversations 列出用户的会话
// GET /conversation/user/:user_id
func (h *ConversationHandler) ListUserConversations(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	convs, err := h.svc.Conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Int64("user_id", userID).Msg("list conversations failed")
		Error(c, err)
		return
	}
	Success(c, convs)
}

// parseIDParam 解析整数路径参数，失败时写 422
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		Unprocessable(c, name+" must be an integer")
		return 0, false
	}
	return id, true
}
