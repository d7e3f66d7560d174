package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwinyue/seek-portal/internal/model"
)

// ErrMalformedHistory history 参数不是合法的消息数组
var ErrMalformedHistory = errors.New("malformed history")

// HistoryEntry 客户端传入的历史消息
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParseHistory 解析 history 参数，空串视为空列表
func ParseHistory(raw string) ([]model.Message, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []model.Message{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var entries []HistoryEntry
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHistory, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedHistory)
	}

	out := make([]model.Message, 0, len(entries))
	for i, e := range entries {
		role := model.MessageRole(e.Role)
		switch role {
		case model.RoleUser, model.RoleAssistant, model.RoleSystem:
		default:
			return nil, fmt.Errorf("%w: entry %d has role %q", ErrMalformedHistory, i, e.Role)
		}
		out = append(out, model.TextMessage(role, e.Content))
	}
	return out, nil
}

// PriorTurns 去掉末尾与当前输入相同的 user 消息
// 客户端可能把当前问题也放进 history
func PriorTurns(history []model.Message, query string) []model.Message {
	n := len(history)
	if n == 0 {
		return history
	}
	last := history[n-1]
	if last.Role == model.RoleUser && strings.TrimSpace(last.Text()) == strings.TrimSpace(query) {
		return history[:n-1]
	}
	return history
}
