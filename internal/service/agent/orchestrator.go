// Package agent 提供智能体编排：配置注册表、流式编排与工具调用
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	pmodel "github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/service/tool"
	"github.com/ashwinyue/seek-portal/internal/telemetry"
)

const (
	defaultTimeout = 60 * time.Second

	finishReasonToolCalls = "tool_calls"
	contextPrefix         = "\nHere is the context...\n"
)

// EventType 事件类型
type EventType string

const (
	EventText       EventType = "text"
	EventToolResult EventType = "tool_result" // 仅内部使用，不转发给客户端
	EventError      EventType = "error"
	EventEnd        EventType = "end"
)

// Event 编排事件
type Event struct {
	Type    EventType
	Content string
	Err     error
}

// StreamRequest 流式请求
type StreamRequest struct {
	UserInput        string
	AgentID          int64
	CourseID         *int64
	History          []pmodel.Message
	GroundingContext string
}

// Orchestrator 流式编排器
type Orchestrator struct {
	registry  *Registry
	chatModel model.ToolCallingChatModel
	toolModel model.ToolCallingChatModel
	jsonModel model.BaseChatModel
	tool      einotool.InvokableTool
	toolName  string
	timeout   time.Duration
	logger    zerolog.Logger
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithTimeout 设置单次生成的总超时
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithJSONModel 设置 JSON 输出模型，未设置时复用 chatModel
func WithJSONModel(m model.BaseChatModel) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.jsonModel = m
		}
	}
}

// NewOrchestrator 创建编排器，工具在创建时绑定一次
func NewOrchestrator(ctx context.Context, registry *Registry, chatModel model.ToolCallingChatModel, t einotool.InvokableTool, opts ...Option) (*Orchestrator, error) {
	info, err := t.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tool info: %w", err)
	}
	toolModel, err := chatModel.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}

	o := &Orchestrator{
		registry:  registry,
		chatModel: chatModel,
		toolModel: toolModel,
		jsonModel: chatModel,
		tool:      t,
		toolName:  info.Name,
		timeout:   defaultTimeout,
		logger:    observability.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Stream 执行一次编排，返回事件通道
//
// 通道中恰好有一个 EventEnd 且总在最后，之后通道关闭。
// 调用方必须读空通道；取消 ctx 会关闭上游模型流。
// ctx 的截止时间与 WithTimeout 取较早者，到期按超时报告。
func (o *Orchestrator) Stream(ctx context.Context, req StreamRequest) <-chan Event {
	out := make(chan Event, 16)
	go o.run(ctx, req, out)
	return out
}

func (o *Orchestrator) run(ctx context.Context, req StreamRequest, out chan<- Event) {
	defer close(out)

	ctx, span := telemetry.Tracer().Start(ctx, "agent.stream")
	span.SetAttributes(attribute.Int64("agent.id", req.AgentID))
	defer span.End()

	observability.StreamStarted()
	outcome := observability.OutcomeOK
	defer func() { observability.StreamFinished(outcome) }()

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	logger := o.logger.With().Int64("agent_id", req.AgentID).Logger()
	em := &emitter{ctx: runCtx, out: out}

	err := o.stream(runCtx, req, em, logger)
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.Canceled):
		// 客户端断开，不再写错误帧
		outcome = observability.OutcomeCancelled
		logger.Info().Msg("stream cancelled by caller")
	default:
		// 调用方的截止时间同样视为超时
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
			outcome = observability.OutcomeTimeout
		} else {
			outcome = observability.OutcomeError
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error().Err(err).Msg("stream failed")
		em.fail(err)
	}
	em.end()
}

func (o *Orchestrator) stream(ctx context.Context, req StreamRequest, em *emitter, logger zerolog.Logger) error {
	agent, err := o.registry.Get(ctx, req.AgentID)
	if err != nil {
		return err
	}

	msgs := buildMessages(agent, req)
	opts := modelOptions(agent)

	if !agent.MayCallTools() {
		sr, err := o.jsonModel.Stream(ctx, msgs, opts...)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
		}
		_, err = relay(sr, em, nil)
		return err
	}

	// 第一阶段：挂载工具
	sr, err := o.toolModel.Stream(ctx, msgs, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
	}
	acc := NewToolCallAccumulator(o.toolName)
	finish, err := relay(sr, em, acc)
	if err != nil {
		return err
	}

	call, ok := acc.Finalize()
	if acc.Ignored() > 0 {
		logger.Warn().Int("ignored_deltas", acc.Ignored()).Msg("only one tool call per turn is supported")
	}
	if !ok {
		if acc.State() == StateAbandoned {
			logger.Warn().Str("reason", acc.AbandonReason()).Str("finish_reason", finish).Msg("tool call abandoned")
		}
		return nil
	}

	logger.Debug().Str("tool_call_id", call.ID).Str("arguments", call.Function.Arguments).Msg("executing tool")
	result, err := o.tool.InvokableRun(ctx, call.Function.Arguments)
	if errors.Is(err, tool.ErrMalformedArguments) {
		logger.Warn().Err(err).Msg("tool arguments rejected, answering without tool")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run tool %s: %w", call.Function.Name, err)
	}
	if err := em.send(Event{Type: EventToolResult, Content: result}); err != nil {
		return err
	}

	// 第二阶段：带上工具结果，不再挂载工具
	msgs = append(msgs,
		schema.AssistantMessage("", []schema.ToolCall{call}),
		schema.ToolMessage(result, call.ID),
	)
	sr, err = o.chatModel.Stream(ctx, msgs, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
	}
	_, err = relay(sr, em, nil)
	return err
}

// relay 转发文本分片，acc 非空时合并工具调用分片
// 收到 tool_calls 结束信号即停止读取
func relay(sr *schema.StreamReader[*schema.Message], em *emitter, acc *ToolCallAccumulator) (string, error) {
	defer sr.Close()

	var finish string
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return finish, nil
		}
		if err != nil {
			return finish, fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
		}

		if chunk.Content != "" {
			if err := em.send(Event{Type: EventText, Content: chunk.Content}); err != nil {
				return finish, err
			}
		}
		if acc != nil {
			for _, tc := range chunk.ToolCalls {
				acc.Add(tc)
			}
		}
		if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
			finish = chunk.ResponseMeta.FinishReason
			if acc != nil && finish == finishReasonToolCalls {
				return finish, nil
			}
		}
	}
}

// buildMessages 组装消息：系统提示词（含检索上下文）、过滤后的历史、当前输入
func buildMessages(agent *pmodel.Agent, req StreamRequest) []*schema.Message {
	prompt := agent.Prompt()
	if req.GroundingContext != "" {
		prompt += contextPrefix + req.GroundingContext
	}

	msgs := make([]*schema.Message, 0, len(req.History)+2)
	msgs = append(msgs, schema.SystemMessage(prompt))
	for _, h := range req.History {
		switch h.Role {
		case pmodel.RoleUser:
			msgs = append(msgs, schema.UserMessage(h.Text()))
		case pmodel.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(h.Text(), nil))
		}
	}

	input := req.UserInput
	if req.CourseID != nil && *req.CourseID != 0 {
		input += fmt.Sprintf(" (Course ID: %d)", *req.CourseID)
	}
	msgs = append(msgs, schema.UserMessage(input))
	return msgs
}

// modelOptions 智能体级别的模型参数
func modelOptions(agent *pmodel.Agent) []model.Option {
	opts := []model.Option{model.WithTemperature(agent.Temperature)}
	if agent.ModelName != "" {
		opts = append(opts, model.WithModel(agent.ModelName))
	}
	if agent.ResponseTokenLimit > 0 {
		opts = append(opts, model.WithMaxTokens(agent.ResponseTokenLimit))
	}
	return opts
}

// ========== 事件发送 ==========

type emitter struct {
	ctx   context.Context
	out   chan<- Event
	ended bool
}

// send 发送非终止事件，ctx 结束时放弃
func (e *emitter) send(ev Event) error {
	select {
	case e.out <- ev:
		return nil
	case <-e.ctx.Done():
		return e.ctx.Err()
	}
}

// fail 发送错误事件，终止事件总是送达
func (e *emitter) fail(err error) {
	e.out <- Event{Type: EventError, Content: userMessage(err), Err: err}
}

func (e *emitter) end() {
	if e.ended {
		return
	}
	e.ended = true
	e.out <- Event{Type: EventEnd}
}
