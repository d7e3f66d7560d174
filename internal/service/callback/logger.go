// Package callback 提供 Eino 组件回调：结构化日志
package callback

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/ashwinyue/seek-portal/internal/observability"
)

const maxLoggedPayload = 200

// Logger 日志回调处理器
// 实现 callbacks.Handler 接口，记录模型、工具、检索器的执行事件
type Logger struct {
	EnableDebug bool
	logger      zerolog.Logger
}

// NewLogger 创建日志回调处理器
func NewLogger(enableDebug bool) *Logger {
	return newLoggerWith(observability.Component("eino"), enableDebug)
}

func newLoggerWith(logger zerolog.Logger, enableDebug bool) *Logger {
	return &Logger{EnableDebug: enableDebug, logger: logger}
}

func (l *Logger) event(e *zerolog.Event, info *callbacks.RunInfo) *zerolog.Event {
	if info == nil {
		return e
	}
	return e.Str("name", info.Name).Str("type", info.Type).Str("component", string(info.Component))
}

// OnStart 组件执行开始
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.EnableDebug {
		l.event(l.logger.Debug(), info).Str("input", truncate(input)).Msg("component start")
	}
	return ctx
}

// OnEnd 组件执行成功
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.EnableDebug {
		l.event(l.logger.Debug(), info).Str("output", truncate(output)).Msg("component end")
	}
	return ctx
}

// OnError 组件执行出错，始终记录
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.event(l.logger.Warn(), info).Err(err).Msg("component error")
	return ctx
}

// OnStartWithStreamInput 流式输入开始
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if l.EnableDebug {
		l.event(l.logger.Debug(), info).Msg("component stream input")
	}
	return ctx
}

// OnEndWithStreamOutput 流式输出开始，回调副本必须关闭
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if l.EnableDebug {
		l.event(l.logger.Debug(), info).Msg("component stream output")
	}
	return ctx
}

func truncate(v any) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > maxLoggedPayload {
		return s[:maxLoggedPayload] + "..."
	}
	return s
}

// SetupGlobalCallbacks 注册全局回调
func SetupGlobalCallbacks(enableDebug bool) {
	handler := NewLogger(enableDebug)
	callbacks.AppendGlobalHandlers(handler)
	handler.logger.Info().Bool("debug", enableDebug).Msg("global callbacks registered")
}
