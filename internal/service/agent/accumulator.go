package agent

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// AccumulatorState 工具调用累积状态
type AccumulatorState int

const (
	StateEmpty AccumulatorState = iota
	StateAccumulating
	StateComplete
	StateAbandoned
)

func (s AccumulatorState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateComplete:
		return "complete"
	case StateAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// ToolCallAccumulator 合并流式分片中的单个工具调用
//
// 状态: Empty -> Accumulating -> Complete | Abandoned。
// 只跟踪第一个出现的调用，其余调用的分片被丢弃并计数。
type ToolCallAccumulator struct {
	toolName string

	state   AccumulatorState
	id      string
	index   *int
	name    string
	args    strings.Builder
	ignored int
	reason  string
}

// NewToolCallAccumulator 创建累积器，toolName 为唯一允许的工具
func NewToolCallAccumulator(toolName string) *ToolCallAccumulator {
	return &ToolCallAccumulator{toolName: toolName}
}

// Add 合并一个分片
func (a *ToolCallAccumulator) Add(delta schema.ToolCall) {
	switch a.state {
	case StateEmpty:
		a.state = StateAccumulating
		a.id = delta.ID
		if delta.Index != nil {
			idx := *delta.Index
			a.index = &idx
		}
		a.name = delta.Function.Name
		a.args.WriteString(delta.Function.Arguments)
	case StateAccumulating:
		if !a.owns(delta) {
			a.ignored++
			return
		}
		if a.id == "" {
			a.id = delta.ID
		}
		if delta.Function.Name != "" {
			a.name = delta.Function.Name
		}
		a.args.WriteString(delta.Function.Arguments)
	}
}

// owns 分片是否属于正在累积的调用
// 续传分片通常不带 ID，只按 Index 区分
func (a *ToolCallAccumulator) owns(delta schema.ToolCall) bool {
	if delta.ID != "" && a.id != "" && delta.ID != a.id {
		return false
	}
	if delta.Index != nil && a.index != nil && *delta.Index != *a.index {
		return false
	}
	return true
}

// Finalize 结束累积，返回完整调用
// 参数不是 JSON 对象或工具名不符时进入 Abandoned
func (a *ToolCallAccumulator) Finalize() (schema.ToolCall, bool) {
	switch a.state {
	case StateComplete:
		return a.toolCall(), true
	case StateEmpty, StateAbandoned:
		return schema.ToolCall{}, false
	}

	if a.name != a.toolName {
		return a.abandon("unknown tool " + a.name)
	}
	if !isJSONObject(a.args.String()) {
		return a.abandon("arguments are not a complete json object")
	}
	if a.id == "" {
		a.id = "call_" + uuid.New().String()
	}
	a.state = StateComplete
	return a.toolCall(), true
}

func (a *ToolCallAccumulator) abandon(reason string) (schema.ToolCall, bool) {
	a.state = StateAbandoned
	a.reason = reason
	return schema.ToolCall{}, false
}

func (a *ToolCallAccumulator) toolCall() schema.ToolCall {
	return schema.ToolCall{
		Index: a.index,
		ID:    a.id,
		Type:  "function",
		Function: schema.FunctionCall{
			Name:      a.name,
			Arguments: a.args.String(),
		},
	}
}

// State 当前状态
func (a *ToolCallAccumulator) State() AccumulatorState { return a.state }

// Ignored 被丢弃的其他调用分片数
func (a *ToolCallAccumulator) Ignored() int { return a.ignored }

// AbandonReason 放弃原因
func (a *ToolCallAccumulator) AbandonReason() string { return a.reason }

// RawArguments 已累积的参数文本
func (a *ToolCallAccumulator) RawArguments() string { return a.args.String() }

func isJSONObject(s string) bool {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
