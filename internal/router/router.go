package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwinyue/seek-portal/internal/config"
	"github.com/ashwinyue/seek-portal/internal/handler"
	"github.com/ashwinyue/seek-portal/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.CORSMiddleware())
	if cfg.Metrics.Enabled {
		r.Use(middleware.MetricsMiddleware())
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// 健康检查
	r.GET("/health", h.System.Health)
	r.GET("/system/info", h.System.GetSystemInfo)

	// Agent 智能体
	agents := r.Group("/agent")
	{
		agents.GET("", h.Agent.ListAgents)
		agents.GET("/host_agent", h.Agent.HostAgent)
		agents.POST("/refresh", h.Agent.RefreshAgents)
		agents.POST("/create_knowledgebase", h.Knowledge.CreateKnowledgeBase)
		agents.POST("/:agent_id/run", h.Agent.RunAgent)
	}

	// Conversation 会话
	conversations := r.Group("/conversation")
	{
		conversations.GET("/user/:user_id", h.Conversation.ListUserConversations)
		conversations.GET("/:id", h.Conversation.GetConversation)
	}

	return r
}
