package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// StreamScript 一次 Stream 调用的脚本
type StreamScript struct {
	Chunks []*schema.Message
	// OpenErr Stream 直接返回的错误
	OpenErr error
	// RecvErr 所有分片之后 Recv 返回的错误
	RecvErr error
	// HoldOpen 分片发完后保持连接，直到 ctx 结束
	HoldOpen bool
	// Endless 持续发送 Chunks[0]，直到读端关闭
	Endless bool
}

// Call 一次模型调用记录
type Call struct {
	Method   string
	Messages []*schema.Message
	Tools    []*schema.ToolInfo
	Options  *model.Options
}

// ScriptedChatModel 按脚本返回结果的 ToolCallingChatModel
type ScriptedChatModel struct {
	state *scriptState
	tools []*schema.ToolInfo
}

type scriptState struct {
	mu        sync.Mutex
	streams   []StreamScript
	responses []*schema.Message
	genErr    error
	genHold   bool
	calls     []Call

	upstreamClosed atomic.Bool
}

var _ model.ToolCallingChatModel = (*ScriptedChatModel)(nil)

// NewScriptedChatModel 创建脚本模型
func NewScriptedChatModel(streams ...StreamScript) *ScriptedChatModel {
	return &ScriptedChatModel{state: &scriptState{streams: streams}}
}

// WithResponses 设置 Generate 的返回序列
func (m *ScriptedChatModel) WithResponses(responses ...*schema.Message) *ScriptedChatModel {
	m.state.mu.Lock()
	m.state.responses = append(m.state.responses, responses...)
	m.state.mu.Unlock()
	return m
}

// WithGenerateError 设置 Generate 的错误
func (m *ScriptedChatModel) WithGenerateError(err error) *ScriptedChatModel {
	m.state.mu.Lock()
	m.state.genErr = err
	m.state.mu.Unlock()
	return m
}

// WithGenerateHold Generate 阻塞到 ctx 结束
func (m *ScriptedChatModel) WithGenerateHold() *ScriptedChatModel {
	m.state.mu.Lock()
	m.state.genHold = true
	m.state.mu.Unlock()
	return m
}

// WithTools 返回共享脚本、绑定工具的视图
func (m *ScriptedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return &ScriptedChatModel{state: m.state, tools: tools}, nil
}

// Generate 按序返回预设消息
func (m *ScriptedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	st := m.state
	st.mu.Lock()
	st.calls = append(st.calls, m.record("Generate", input, opts))
	if st.genHold {
		st.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer st.mu.Unlock()

	if st.genErr != nil {
		return nil, st.genErr
	}
	if len(st.responses) == 0 {
		return nil, errors.New("testutil: no scripted response left")
	}
	resp := st.responses[0]
	st.responses = st.responses[1:]
	return resp, nil
}

// Stream 按序回放预设流
func (m *ScriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	st := m.state
	st.mu.Lock()
	st.calls = append(st.calls, m.record("Stream", input, opts))
	if len(st.streams) == 0 {
		st.mu.Unlock()
		return nil, errors.New("testutil: no scripted stream left")
	}
	script := st.streams[0]
	st.streams = st.streams[1:]
	st.mu.Unlock()

	if script.OpenErr != nil {
		return nil, script.OpenErr
	}

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer sw.Close()

		if script.Endless && len(script.Chunks) > 0 {
			for {
				if closed := sw.Send(script.Chunks[0], nil); closed {
					st.upstreamClosed.Store(true)
					return
				}
			}
		}

		for _, c := range script.Chunks {
			if closed := sw.Send(c, nil); closed {
				st.upstreamClosed.Store(true)
				return
			}
		}
		if script.RecvErr != nil {
			sw.Send(nil, script.RecvErr)
			return
		}
		if script.HoldOpen {
			<-ctx.Done()
			sw.Send(nil, ctx.Err())
		}
	}()
	return sr, nil
}

func (m *ScriptedChatModel) record(method string, input []*schema.Message, opts []model.Option) Call {
	msgs := make([]*schema.Message, len(input))
	copy(msgs, input)
	return Call{
		Method:   method,
		Messages: msgs,
		Tools:    m.tools,
		Options:  model.GetCommonOptions(nil, opts...),
	}
}

// Calls 调用记录
func (m *ScriptedChatModel) Calls() []Call {
	m.state.mu.Lock()
	defer m.state.mu.Unlock()
	out := make([]Call, len(m.state.calls))
	copy(out, m.state.calls)
	return out
}

// UpstreamClosed 读端是否在流结束前关闭
func (m *ScriptedChatModel) UpstreamClosed() bool {
	return m.state.upstreamClosed.Load()
}

// ========== 分片构造 ==========

// TextChunk 文本分片
func TextChunk(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

// ToolCallChunk 工具调用分片
func ToolCallChunk(index int, id, name, args string) *schema.Message {
	idx := index
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index: &idx,
			ID:    id,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}
}

// FinishChunk 结束分片
func FinishChunk(reason string) *schema.Message {
	return &schema.Message{
		Role:         schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{FinishReason: reason},
	}
}
