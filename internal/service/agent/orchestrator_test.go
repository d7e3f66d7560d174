package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/service/tool"
	"github.com/ashwinyue/seek-portal/internal/testutil"
)

// ========== Mock Tool ==========

type mockTool struct {
	mu     sync.Mutex
	result string
	err    error
	args   []string
}

func (m *mockTool) Info(context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: tool.CourseContentToolName, Desc: "course content"}, nil
}

func (m *mockTool) InvokableRun(_ context.Context, args string, _ ...einotool.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.args = append(m.args, args)
	return m.result, m.err
}

func (m *mockTool) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.args...)
}

// ========== Helpers ==========

func newTestOrchestrator(t *testing.T, cm *testutil.ScriptedChatModel, tl einotool.InvokableTool, opts ...Option) *Orchestrator {
	t.Helper()
	store := testutil.NewMemoryAgentStore(testutil.HostAgent(), testutil.ParserAgent())
	reg := NewRegistry(store)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	o, err := NewOrchestrator(context.Background(), reg, cm, tl, opts...)
	require.NoError(t, err)
	return o
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func texts(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == EventText {
			b.WriteString(ev.Content)
		}
	}
	return b.String()
}

func assertSingleTrailingEnd(t *testing.T, events []Event) {
	t.Helper()
	require.NotEmpty(t, events)
	ends := 0
	for _, ev := range events {
		if ev.Type == EventEnd {
			ends++
		}
	}
	assert.Equal(t, 1, ends, "exactly one end event")
	assert.Equal(t, EventEnd, events[len(events)-1].Type, "end event is last")
}

func courseID(id int64) *int64 { return &id }

// ========== Stream 测试 ==========

func TestStream_DirectText(t *testing.T) {
	cm := testutil.NewScriptedChatModel(testutil.StreamScript{Chunks: []*schema.Message{
		testutil.TextChunk("Hello"),
		testutil.TextChunk(", "),
		testutil.TextChunk("student"),
		testutil.FinishChunk("stop"),
	}})
	tl := &mockTool{}
	o := newTestOrchestrator(t, cm, tl)

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "hi", AgentID: 8}))

	assertSingleTrailingEnd(t, events)
	require.Len(t, events, 4)
	assert.Equal(t, []string{"Hello", ", ", "student"}, []string{events[0].Content, events[1].Content, events[2].Content})
	assert.Empty(t, tl.calls())

	calls := cm.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Tools, 1, "first call carries the tool")
	assert.Equal(t, tool.CourseContentToolName, calls[0].Tools[0].Name)
}

func TestStream_ToolRound(t *testing.T) {
	cm := testutil.NewScriptedChatModel(
		testutil.StreamScript{Chunks: []*schema.Message{
			testutil.ToolCallChunk(0, "call_abc", tool.CourseContentToolName, ""),
			testutil.ToolCallChunk(0, "", "", `{"course_`),
			testutil.ToolCallChunk(0, "", "", `id": 1}`),
			testutil.FinishChunk("tool_calls"),
		}},
		testutil.StreamScript{Chunks: []*schema.Message{
			testutil.TextChunk("The course has "),
			testutil.TextChunk("12 weeks."),
			testutil.FinishChunk("stop"),
		}},
	)
	tl := &mockTool{result: `{"course_id":1,"content":{"course_title":"BDM","description":"d","total_weeks":12}}`}
	o := newTestOrchestrator(t, cm, tl)

	events := collect(t, o.Stream(context.Background(), StreamRequest{
		UserInput: "How many weeks are in course id 1",
		AgentID:   8,
		CourseID:  courseID(1),
	}))

	assertSingleTrailingEnd(t, events)
	assert.Equal(t, EventToolResult, events[0].Type)
	assert.Equal(t, EventText, events[1].Type)
	assert.Equal(t, "The course has 12 weeks.", texts(events))
	assert.Equal(t, []string{`{"course_id": 1}`}, tl.calls())

	calls := cm.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[1].Tools, "follow-up call has no tools")

	followUp := calls[1].Messages
	require.GreaterOrEqual(t, len(followUp), 4)
	assistant := followUp[len(followUp)-2]
	toolMsg := followUp[len(followUp)-1]
	assert.Equal(t, schema.Assistant, assistant.Role)
	assert.Empty(t, assistant.Content)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_abc", assistant.ToolCalls[0].ID)
	assert.Equal(t, schema.Tool, toolMsg.Role)
	assert.Equal(t, "call_abc", toolMsg.ToolCallID)
	assert.Equal(t, tl.result, toolMsg.Content)
}

func TestStream_ToolCallWithoutFinishSignal(t *testing.T) {
	cm := testutil.NewScriptedChatModel(
		testutil.StreamScript{Chunks: []*schema.Message{
			testutil.ToolCallChunk(0, "call_1", tool.CourseContentToolName, `{"course_id": 1}`),
		}},
		testutil.StreamScript{Chunks: []*schema.Message{testutil.TextChunk("ok")}},
	)
	tl := &mockTool{result: `{}`}
	o := newTestOrchestrator(t, cm, tl)

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

	assertSingleTrailingEnd(t, events)
	assert.Len(t, tl.calls(), 1)
	assert.Equal(t, "ok", texts(events))
}

func TestStream_NotFoundPayloadStillFollowsUp(t *testing.T) {
	cm := testutil.NewScriptedChatModel(
		testutil.StreamScript{Chunks: []*schema.Message{
			testutil.ToolCallChunk(0, "call_1", tool.CourseContentToolName, `{"course_id": 77}`),
			testutil.FinishChunk("tool_calls"),
		}},
		testutil.StreamScript{Chunks: []*schema.Message{testutil.TextChunk("I could not find that course.")}},
	)
	tl := &mockTool{result: `{"error":"Course with ID 77 not found."}`}
	o := newTestOrchestrator(t, cm, tl)

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

	assertSingleTrailingEnd(t, events)
	assert.Equal(t, "I could not find that course.", texts(events))
	for _, ev := range events {
		assert.NotEqual(t, EventError, ev.Type)
	}
	assert.Len(t, cm.Calls(), 2)
}

func TestStream_MalformedToolArgumentsDegradeToText(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []*schema.Message
		toolErr error
	}{
		{
			name: "truncated json",
			chunks: []*schema.Message{
				testutil.TextChunk("Let me check."),
				testutil.ToolCallChunk(0, "call_1", tool.CourseContentToolName, `{"course_id": `),
			},
		},
		{
			name: "rejected by tool",
			chunks: []*schema.Message{
				testutil.TextChunk("Let me check."),
				testutil.ToolCallChunk(0, "call_1", tool.CourseContentToolName, `{"week_no": 2}`),
				testutil.FinishChunk("tool_calls"),
			},
			toolErr: fmt.Errorf("%w: course_id is required", tool.ErrMalformedArguments),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := testutil.NewScriptedChatModel(testutil.StreamScript{Chunks: tt.chunks})
			o := newTestOrchestrator(t, cm, &mockTool{err: tt.toolErr})

			events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

			assertSingleTrailingEnd(t, events)
			assert.Equal(t, "Let me check.", texts(events))
			for _, ev := range events {
				assert.NotEqual(t, EventError, ev.Type)
			}
			assert.Len(t, cm.Calls(), 1, "no follow-up call")
		})
	}
}

func TestStream_AgentNotFound(t *testing.T) {
	cm := testutil.NewScriptedChatModel()
	o := newTestOrchestrator(t, cm, &mockTool{})

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 404}))

	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "Agent not found", events[0].Content)
	assert.True(t, errors.Is(events[0].Err, ErrAgentNotFound))
	assert.Equal(t, EventEnd, events[1].Type)
	assert.Empty(t, cm.Calls())
}

func TestStream_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		scripts  []testutil.StreamScript
		wantText string
	}{
		{
			name:    "open fails",
			scripts: []testutil.StreamScript{{OpenErr: errors.New("401 unauthorized")}},
		},
		{
			name: "mid-stream failure keeps partial text",
			scripts: []testutil.StreamScript{{
				Chunks:  []*schema.Message{testutil.TextChunk("partial")},
				RecvErr: errors.New("connection reset"),
			}},
			wantText: "partial",
		},
		{
			name: "follow-up fails",
			scripts: []testutil.StreamScript{
				{Chunks: []*schema.Message{
					testutil.ToolCallChunk(0, "c", tool.CourseContentToolName, `{"course_id":1}`),
					testutil.FinishChunk("tool_calls"),
				}},
				{OpenErr: errors.New("503")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm := testutil.NewScriptedChatModel(tt.scripts...)
			o := newTestOrchestrator(t, cm, &mockTool{result: `{}`})

			events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

			assertSingleTrailingEnd(t, events)
			errEv := events[len(events)-2]
			assert.Equal(t, EventError, errEv.Type)
			assert.True(t, errors.Is(errEv.Err, ErrUpstreamLLM))
			assert.Equal(t, tt.wantText, texts(events))
		})
	}
}

func TestStream_Timeout(t *testing.T) {
	cm := testutil.NewScriptedChatModel(testutil.StreamScript{
		Chunks:   []*schema.Message{testutil.TextChunk("thinking")},
		HoldOpen: true,
	})
	o := newTestOrchestrator(t, cm, &mockTool{}, WithTimeout(50*time.Millisecond))

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

	assertSingleTrailingEnd(t, events)
	errEv := events[len(events)-2]
	assert.Equal(t, EventError, errEv.Type)
	assert.True(t, errors.Is(errEv.Err, ErrGenerationTimeout))
	assert.Equal(t, "Response generation timed out", errEv.Content)
}

func TestStream_CallerDeadlineIsTimeout(t *testing.T) {
	cm := testutil.NewScriptedChatModel(testutil.StreamScript{
		Chunks:   []*schema.Message{testutil.TextChunk("thinking")},
		HoldOpen: true,
	})
	o := newTestOrchestrator(t, cm, &mockTool{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	events := collect(t, o.Stream(ctx, StreamRequest{UserInput: "q", AgentID: 8}))

	assertSingleTrailingEnd(t, events)
	errEv := events[len(events)-2]
	assert.Equal(t, EventError, errEv.Type)
	assert.True(t, errors.Is(errEv.Err, ErrGenerationTimeout))
	assert.Equal(t, "Response generation timed out", errEv.Content)
}

func TestStream_CancellationClosesUpstream(t *testing.T) {
	cm := testutil.NewScriptedChatModel(testutil.StreamScript{
		Chunks:  []*schema.Message{testutil.TextChunk("tick ")},
		Endless: true,
	})
	o := newTestOrchestrator(t, cm, &mockTool{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Stream(ctx, StreamRequest{UserInput: "q", AgentID: 8})

	first := <-ch
	assert.Equal(t, EventText, first.Type)
	cancel()

	rest := collect(t, ch)
	assertSingleTrailingEnd(t, rest)
	for _, ev := range rest {
		assert.NotEqual(t, EventError, ev.Type, "cancellation is not reported as an error")
	}
	assert.Eventually(t, cm.UpstreamClosed, time.Second, 10*time.Millisecond)
}

func TestStream_JSONAgentSkipsTools(t *testing.T) {
	jsonModel := testutil.NewScriptedChatModel(testutil.StreamScript{Chunks: []*schema.Message{
		testutil.TextChunk(`{"vector_index":`),
		testutil.TextChunk(`"general"}`),
	}})
	cm := testutil.NewScriptedChatModel()
	o := newTestOrchestrator(t, cm, &mockTool{}, WithJSONModel(jsonModel))

	events := collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 2}))

	assertSingleTrailingEnd(t, events)
	assert.Equal(t, `{"vector_index":"general"}`, texts(events))
	assert.Empty(t, cm.Calls())
	require.Len(t, jsonModel.Calls(), 1)
	assert.Empty(t, jsonModel.Calls()[0].Tools)
}

// ========== 消息组装 ==========

func TestBuildMessages(t *testing.T) {
	agent := testutil.HostAgent()
	history := []model.Message{
		model.TextMessage(model.RoleUser, "What is week 1 about?"),
		model.TextMessage(model.RoleAssistant, "Introduction."),
		model.TextMessage(model.RoleSystem, "ignored"),
		{Role: model.RoleTool, ToolCallID: "x"},
	}

	msgs := buildMessages(agent, StreamRequest{
		UserInput:        "And week 2?",
		CourseID:         courseID(3),
		History:          history,
		GroundingContext: "Content: statistics",
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "You are the Seek Portal assistant.\nHere is the context...\nContent: statistics", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "And week 2? (Course ID: 3)", msgs[3].Content)
}

func TestBuildMessages_DefaultPromptNoCourse(t *testing.T) {
	msgs := buildMessages(&model.Agent{}, StreamRequest{UserInput: "hi"})

	require.Len(t, msgs, 2)
	assert.Equal(t, model.DefaultSystemPrompt, msgs[0].Content)
	assert.Equal(t, "hi", msgs[1].Content)
}

func TestStream_AgentOptionsPassedToModel(t *testing.T) {
	cm := testutil.NewScriptedChatModel(testutil.StreamScript{Chunks: []*schema.Message{testutil.TextChunk("x")}})
	o := newTestOrchestrator(t, cm, &mockTool{})

	collect(t, o.Stream(context.Background(), StreamRequest{UserInput: "q", AgentID: 8}))

	opts := cm.Calls()[0].Options
	require.NotNil(t, opts.Model)
	assert.Equal(t, "gpt-4o-mini", *opts.Model)
	require.NotNil(t, opts.Temperature)
	assert.InDelta(t, 0.3, *opts.Temperature, 1e-6)
	require.NotNil(t, opts.MaxTokens)
	assert.Equal(t, 512, *opts.MaxTokens)
}
