package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/seek-portal/internal/service"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	svc *service.Services
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(svc *service.Services) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// Health 健康检查
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	Success(c, gin.H{"response": "ok"})
}

// SystemInfo 系统信息
type SystemInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Environment     string `json:"environment"`
	VectorBackend   string `json:"vector_backend"`
	IngestionReady  bool   `json:"ingestion_ready"`
	AgentsLoaded    int    `json:"agents_loaded"`
	DefaultAgentID  int64  `json:"default_agent_id"`
	TranscriptCache bool   `json:"transcript_cache"`
}

// GetSystemInfo 获取系统信息
// GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	cfg := h.svc.Config
	Success(c, SystemInfo{
		Name:            cfg.App.Name,
		Version:         cfg.App.Version,
		Environment:     cfg.App.Environment,
		VectorBackend:   cfg.Vector.Backend,
		IngestionReady:  h.svc.Ingestor != nil,
		AgentsLoaded:    len(h.svc.Registry.List()),
		DefaultAgentID:  cfg.Agent.DefaultAgentID,
		TranscriptCache: cfg.Redis.Enabled,
	})
}
