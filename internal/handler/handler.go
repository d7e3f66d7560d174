// Package handler 提供 HTTP 处理器
package handler

import (
	"github.com/ashwinyue/seek-portal/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Agent        *AgentHandler
	Conversation *ConversationHandler
	Knowledge    *KnowledgeHandler
	System       *SystemHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Agent:        NewAgentHandler(svc),
		Conversation: NewConversationHandler(svc),
		Knowledge:    NewKnowledgeHandler(svc),
		System:       NewSystemHandler(svc),
	}
}
