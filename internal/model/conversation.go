package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRole 消息角色
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// FunctionCall 工具函数调用
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall 助手发起的工具调用
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message 对话消息
// 带 ToolCalls 的 assistant 消息 Content 为 nil
type Message struct {
	Role       MessageRole `json:"role"`
	Content    *string     `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// TextMessage 创建纯文本消息
func TextMessage(role MessageRole, content string) Message {
	return Message{Role: role, Content: &content}
}

// Text 返回消息文本
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Transcript 对话记录，以 JSONB 存储
type Transcript []Message

// Value 实现 driver.Valuer 接口
func (t Transcript) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t)
}

// Scan 实现 sql.Scanner 接口
func (t *Transcript) Scan(value interface{}) error {
	if value == nil {
		*t = Transcript{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported transcript type %T", value)
	}
	return json.Unmarshal(b, t)
}

// Conversation 会话
type Conversation struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     int64      `gorm:"not null;index" json:"user_id"`
	AgentID    int64      `gorm:"not null" json:"agent_id"`
	Title      string     `gorm:"size:255" json:"title"`
	Transcript Transcript `gorm:"column:conversations;type:jsonb;not null" json:"conversations"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt time.Time  `gorm:"autoUpdateTime" json:"modified_at"`
}

// TableName 指定表名
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate GORM 钩子，创建前生成 UUID
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Transcript == nil {
		c.Transcript = Transcript{}
	}
	return nil
}

// OwnedBy 是否属于该用户
func (c *Conversation) OwnedBy(userID int64) bool {
	return c.UserID == userID
}
