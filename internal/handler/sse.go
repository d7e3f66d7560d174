package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 帧类型
const (
	frameText     = "text"
	frameError    = "error"
	frameMetadata = "metadata"
	frameEnd      = "end"

	timeoutMessage = "Response generation timed out"
)

// streamFrame SSE data 字段中的 JSON 帧
type streamFrame struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// sseWriter 写 SSE 帧，客户端断开后写入静默失败
type sseWriter struct {
	c *gin.Context
}

func newSSEWriter(c *gin.Context) *sseWriter {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	return &sseWriter{c: c}
}

func (w *sseWriter) write(f streamFrame) {
	if w.c.Request.Context().Err() != nil {
		return
	}
	w.c.SSEvent("", f)
	w.c.Writer.Flush()
}

func (w *sseWriter) text(content string) {
	w.write(streamFrame{Type: frameText, Content: content})
}

func (w *sseWriter) errorFrame(msg string) {
	w.write(streamFrame{Type: frameError, Content: msg})
}

func (w *sseWriter) metadata(conversationID string) {
	w.write(streamFrame{Type: frameMetadata, ConversationID: conversationID})
}

func (w *sseWriter) end() {
	w.write(streamFrame{Type: frameEnd})
}
