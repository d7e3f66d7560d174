package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	pmodel "github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/service/tool"
	"github.com/ashwinyue/seek-portal/internal/telemetry"
)

// RunRequest 非流式请求
type RunRequest struct {
	AgentID int64
	Query   string
	Context string
	History []pmodel.Message
}

// RunResult 非流式结果，JSON 智能体填充 Data
type RunResult struct {
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// Run 非流式执行一次生成，包含至多一轮工具调用
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "agent.run")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	agent, err := o.registry.Get(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	msgs := buildMessages(agent, StreamRequest{
		UserInput:        req.Query,
		History:          req.History,
		GroundingContext: req.Context,
	})
	opts := modelOptions(agent)

	if !agent.MayCallTools() {
		resp, err := o.jsonModel.Generate(ctx, msgs, opts...)
		if err != nil {
			return nil, o.generateErr(ctx, err)
		}
		var data map[string]any
		if err := json.Unmarshal([]byte(resp.Content), &data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		return &RunResult{Data: data}, nil
	}

	resp, err := o.toolModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, o.generateErr(ctx, err)
	}

	acc := NewToolCallAccumulator(o.toolName)
	for _, tc := range resp.ToolCalls {
		acc.Add(tc)
	}
	call, ok := acc.Finalize()
	if !ok {
		return &RunResult{Text: resp.Content}, nil
	}

	result, err := o.tool.InvokableRun(ctx, call.Function.Arguments)
	if errors.Is(err, tool.ErrMalformedArguments) {
		return &RunResult{Text: resp.Content}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("run tool %s: %w", call.Function.Name, err)
	}

	msgs = append(msgs,
		schema.AssistantMessage(resp.Content, []schema.ToolCall{call}),
		schema.ToolMessage(result, call.ID),
	)
	final, err := o.chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, o.generateErr(ctx, err)
	}
	return &RunResult{Text: final.Content}, nil
}

func (o *Orchestrator) generateErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrGenerationTimeout, o.timeout)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamLLM, err)
}
