package model

import "time"

// AgentRole 智能体角色
type AgentRole string

const (
	AgentRoleHost   AgentRole = "host"   // 对话主智能体，可检索、可调用工具
	AgentRoleParser AgentRole = "parser" // 路由智能体，输出 JSON
	AgentRolePlain  AgentRole = "plain"  // 普通内容智能体
)

// Valid 检查角色是否合法
func (r AgentRole) Valid() bool {
	switch r {
	case AgentRoleHost, AgentRoleParser, AgentRolePlain:
		return true
	}
	return false
}

// ResponseFormat 响应格式
type ResponseFormat string

const (
	ResponseFormatText ResponseFormat = "text"
	ResponseFormatJSON ResponseFormat = "json"
)

// DefaultSystemPrompt 智能体未配置提示词时使用
const DefaultSystemPrompt = "You are a helpful assistant."

// Agent AI 智能体配置
type Agent struct {
	ID                 int64          `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"size:255;not null" json:"name"`
	Description        string         `gorm:"type:text" json:"description"`
	Role               AgentRole      `gorm:"size:20;not null;default:'plain'" json:"role"`
	ModelName          string         `gorm:"size:100" json:"model_name"`
	SystemPrompt       string         `gorm:"type:text" json:"system_prompt"`
	Temperature        float32        `gorm:"default:0.7" json:"temperature"`
	ResponseTokenLimit int            `gorm:"default:1024" json:"response_token_limit"`
	ResponseFormat     ResponseFormat `gorm:"size:10;not null;default:'text'" json:"response_format"`
	VectorIndex        string         `gorm:"size:255" json:"vector_index"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Agent) TableName() string {
	return "ai_agents"
}

// ProducesJSON 是否以结构化 JSON 输出
func (a *Agent) ProducesJSON() bool {
	return a.Role == AgentRoleParser || a.ResponseFormat == ResponseFormatJSON
}

// MayCallTools 是否挂载工具
func (a *Agent) MayCallTools() bool {
	return !a.ProducesJSON()
}

// IsHost 是否为主智能体
func (a *Agent) IsHost() bool {
	return a.Role == AgentRoleHost
}

// Prompt 系统提示词，空时使用默认值
func (a *Agent) Prompt() string {
	if a.SystemPrompt == "" {
		return DefaultSystemPrompt
	}
	return a.SystemPrompt
}
