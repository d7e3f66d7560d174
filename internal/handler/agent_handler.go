package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/repository"
	"github.com/ashwinyue/seek-portal/internal/service"
	"github.com/ashwinyue/seek-portal/internal/service/agent"
	"github.com/ashwinyue/seek-portal/internal/service/conversation"
	"github.com/ashwinyue/seek-portal/internal/service/routing"
)

// AgentHandler Agent处理器
type AgentHandler struct {
	svc *service.Services
}

// NewAgentHandler 创建Agent处理器
func NewAgentHandler(svc *service.Services) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// hostAgentQuery 主智能体查询参数
type hostAgentQuery struct {
	Query          string `form:"query"`
	CourseID       *int64 `form:"course_id"`
	History        string `form:"history"`
	ConversationID string `form:"conversation_id"`
	AgentID        *int64 `form:"agent_id"`
	UserID         *int64 `form:"user_id" binding:"required"`
}

// HostAgent 主智能体流式对话
// GET /agent/host_agent
func (h *AgentHandler) HostAgent(c *gin.Context) {
	var q hostAgentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Unprocessable(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	logger := zerolog.Ctx(ctx)

	history, err := conversation.ParseHistory(q.History)
	if err != nil {
		logger.Warn().Err(err).Msg("history rejected")
		Error(c, err)
		return
	}

	agentID := h.svc.Config.Agent.DefaultAgentID
	if q.AgentID != nil {
		agentID = *q.AgentID
	}
	ag, err := h.svc.Registry.Get(ctx, agentID)
	if err != nil {
		Error(c, err)
		return
	}

	resume := conversation.ResumeRequest{
		History:        history,
		ConversationID: q.ConversationID,
		AgentID:        agentID,
		UserID:         *q.UserID,
		Query:          q.Query,
	}
	if err := h.svc.Conversations.Validate(ctx, resume); err != nil {
		logger.Warn().Err(err).Str("conversation_id", q.ConversationID).Msg("conversation unavailable")
		Error(c, err)
		return
	}

	// 路由、检索与生成共用一个截止时间
	runCtx, cancel := context.WithTimeout(ctx, h.svc.Config.Agent.GetGenerationTimeout())
	defer cancel()

	var grounding string
	timedOut := false
	if ag.IsHost() {
		grounding, err = h.ground(runCtx, q.Query, q.CourseID, logger)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			logger.Info().Msg("client disconnected during routing")
			return
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			logger.Warn().Err(err).Msg("routing timed out")
			timedOut = true
		default:
			logger.Error().Err(err).Msg("routing failed")
			Error(c, err)
			return
		}
	}

	convID, err := h.svc.Conversations.CreateOrResume(ctx, resume)
	if err != nil {
		logger.Warn().Err(err).Str("conversation_id", q.ConversationID).Msg("conversation unavailable")
		Error(c, err)
		return
	}

	sse := newSSEWriter(c)
	if timedOut {
		sse.errorFrame(timeoutMessage)
		sse.metadata(convID)
		sse.end()
		return
	}

	events := h.svc.Orchestrator.Stream(runCtx, agent.StreamRequest{
		UserInput:        q.Query,
		AgentID:          agentID,
		CourseID:         q.CourseID,
		History:          conversation.PriorTurns(history, q.Query),
		GroundingContext: grounding,
	})

	var answer strings.Builder
	failed := false
	// 必须读空通道，编排协程才能退出
	for ev := range events {
		switch ev.Type {
		case agent.EventText:
			answer.WriteString(ev.Content)
			sse.text(ev.Content)
		case agent.EventError:
			failed = true
			sse.errorFrame(ev.Content)
		}
	}

	switch {
	case ctx.Err() != nil:
		logger.Info().Str("conversation_id", convID).Msg("client disconnected, transcript not saved")
		return
	case failed:
		logger.Warn().Str("conversation_id", convID).Msg("generation failed, transcript not saved")
	default:
		if err := h.svc.Conversations.AppendTurn(ctx, convID, q.Query, answer.String()); err != nil {
			logger.Error().Err(err).Str("conversation_id", convID).Msg("save transcript failed")
			sse.errorFrame("Failed to save conversation")
		}
	}

	sse.metadata(convID)
	sse.end()
}

// ground 路由分类并检索上下文，检索失败时降级为无上下文
func (h *AgentHandler) ground(ctx context.Context, query string, courseID *int64, logger *zerolog.Logger) (string, error) {
	var course *routing.CourseContext
	if courseID != nil {
		c, err := h.svc.Courses.GetCourse(ctx, *courseID)
		switch {
		case err == nil:
			course = &routing.CourseContext{ID: c.ID, Title: c.Title}
		case errors.Is(err, repository.ErrNotFound):
			logger.Debug().Int64("course_id", *courseID).Msg("course not found, routing without course")
		default:
			return "", err
		}
	}

	decision, err := h.svc.Classifier.Classify(ctx, query, course)
	if err != nil {
		return "", err
	}
	if decision.IsGeneral() {
		return "", nil
	}

	text, err := h.svc.Retriever.Context(ctx, query, decision.VectorIndex)
	if err != nil {
		logger.Warn().Err(err).Str("vector_index", decision.VectorIndex).Msg("retrieval failed, answering without context")
		return "", nil
	}
	return text, nil
}

// runRequest 非流式执行请求
type runRequest struct {
	Query   string          `json:"query" binding:"required"`
	Context string          `json:"context"`
	History json.RawMessage `json:"history"`
}

// RunAgent 运行Agent（同步）
// POST /agent/:agent_id/run
func (h *AgentHandler) RunAgent(c *gin.Context) {
	id, ok := parseIDParam(c, "agent_id")
	if !ok {
		return
	}
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Unprocessable(c, err.Error())
		return
	}

	history, err := conversation.ParseHistory(string(req.History))
	if err != nil {
		BadRequest(c, "Invalid history format")
		return
	}

	result, err := h.svc.Orchestrator.Run(c.Request.Context(), agent.RunRequest{
		AgentID: id,
		Query:   req.Query,
		Context: req.Context,
		History: history,
	})
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Warn().Err(err).Int64("agent_id", id).Msg("agent run failed")
		Error(c, err)
		return
	}

	Success(c, result)
}

// ListAgents 列出已加载的智能体
// GET /agent
func (h *AgentHandler) ListAgents(c *gin.Context) {
	Success(c, h.svc.Registry.List())
}

// RefreshAgents 重新加载智能体配置
// POST /agent/refresh
func (h *AgentHandler) RefreshAgents(c *gin.Context) {
	n, err := h.svc.Registry.Refresh(c.Request.Context())
	if err != nil {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("agent refresh failed")
		Error(c, err)
		return
	}
	Success(c, gin.H{"count": n})
}
