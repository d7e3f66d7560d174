// Package routing 提供路由分类：为每轮用户输入选择知识库和专职智能体
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	pmodel "github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/observability"
	"github.com/ashwinyue/seek-portal/internal/service/agent"
	"github.com/ashwinyue/seek-portal/internal/telemetry"
)

const (
	// GeneralIndex 表示无需检索
	GeneralIndex = "general"
	// GeneralAgent 通用问答智能体
	GeneralAgent = "general_agent"
	// CourseAgent 课程问答智能体
	CourseAgent = "course_agent"

	vectorIndexPrefix = "kb_"
)

var (
	// ErrMalformedDecision 模型输出不是合法的路由 JSON
	ErrMalformedDecision = errors.New("malformed routing decision")
	// ErrClassifyFailed 路由模型调用失败
	ErrClassifyFailed = errors.New("routing model call failed")
)

// receptionistPrompt 未注册 parser 智能体时使用的内置提示词
const receptionistPrompt = `You are the parser agent or agent decider. You will be given the user query and the request metadata.
Your job is to return a JSON object and nothing else.
Request metadata fields:
- course_name: set when the user selected a course on the UI and wants a course related answer. When it is null the user is talking to the general agent.
- available_vector_indexes: the knowledge bases that may be searched.
- available_agents: the agents that may answer, each with a name and description.
You are like a receptionist: everyone comes and asks anything and you direct them to the person they should go to.
If no metadata helps to select an agent, answer {"vector_index": "general", "agent": "general_agent"}.

Example. The user asked 'what is in the week 2 of this course' with metadata
{"course_name": "python", "available_vector_indexes": ["kb_python_index", "kb_iitm_bs_degree_handbook"],
 "available_agents": [{"name": "course_agent", "description": "ai agent to resolve course related query"},
 {"name": "general_agent", "description": "ai agent to clear doubts of general queries related to bs course"}]}
Your response:
{"vector_index": "kb_python_index", "agent": "course_agent"}`

// RoutingDecision 一轮对话的路由结果，不落库
type RoutingDecision struct {
	VectorIndex string `json:"vector_index"`
	Agent       string `json:"agent"`
}

// IsGeneral 是否无需检索
func (d *RoutingDecision) IsGeneral() bool {
	return d.VectorIndex == "" || d.VectorIndex == GeneralIndex
}

// CourseContext 分类时可用的课程上下文
type CourseContext struct {
	ID    int64
	Title string
}

type agentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type requestMetadata struct {
	CourseName             *string     `json:"course_name"`
	AvailableVectorIndexes []string    `json:"available_vector_indexes"`
	AvailableAgents        []agentInfo `json:"available_agents"`
}

// Classifier 路由分类器，每次分类恰好一次模型调用
type Classifier struct {
	model    model.BaseChatModel
	registry *agent.Registry
	logger   zerolog.Logger
}

// NewClassifier 创建分类器，jsonModel 需开启 JSON 输出模式
func NewClassifier(jsonModel model.BaseChatModel, registry *agent.Registry) *Classifier {
	return &Classifier{
		model:    jsonModel,
		registry: registry,
		logger:   observability.Component("routing"),
	}
}

// Classify 对用户输入分类
func (c *Classifier) Classify(ctx context.Context, message string, course *CourseContext) (*RoutingDecision, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "routing.classify")
	defer span.End()

	prompt := receptionistPrompt
	var opts []model.Option
	if parser, ok := c.registry.FirstByRole(pmodel.AgentRoleParser); ok {
		if parser.SystemPrompt != "" {
			prompt = parser.SystemPrompt
		}
		if parser.ModelName != "" {
			opts = append(opts, model.WithModel(parser.ModelName))
		}
		opts = append(opts, model.WithTemperature(parser.Temperature))
	}

	meta, err := json.Marshal(buildMetadata(course))
	if err != nil {
		return nil, fmt.Errorf("marshal request metadata: %w", err)
	}
	msgs := []*schema.Message{
		schema.SystemMessage(prompt),
		schema.UserMessage(fmt.Sprintf("User query: %s\nRequest Metadata:\n%s", message, meta)),
	}

	resp, err := c.model.Generate(ctx, msgs, opts...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrClassifyFailed, err)
	}

	decision, err := ParseDecision(resp.Content)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn().Str("output", resp.Content).Msg("routing output rejected")
		return nil, err
	}
	decision = applyPolicy(decision, course)

	span.SetAttributes(
		attribute.String("routing.vector_index", decision.VectorIndex),
		attribute.String("routing.agent", decision.Agent),
	)
	observability.RecordRoutingDecision(decision.Agent)
	c.logger.Debug().Str("vector_index", decision.VectorIndex).Str("agent", decision.Agent).Msg("turn classified")
	return decision, nil
}

// ParseDecision 严格解析模型输出
func ParseDecision(raw string) (*RoutingDecision, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if _, ok := fields["vector_index"]; !ok {
		return nil, fmt.Errorf("%w: missing vector_index", ErrMalformedDecision)
	}

	var d RoutingDecision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	return &d, nil
}

// applyPolicy 课程标题决定知识库名，无课程上下文时走通用路径
func applyPolicy(d *RoutingDecision, course *CourseContext) *RoutingDecision {
	if course == nil || strings.TrimSpace(course.Title) == "" {
		return &RoutingDecision{VectorIndex: GeneralIndex, Agent: GeneralAgent}
	}
	out := &RoutingDecision{VectorIndex: VectorIndexForTitle(course.Title), Agent: d.Agent}
	if out.Agent == "" {
		out.Agent = CourseAgent
	}
	return out
}

// VectorIndexForTitle 由课程标题各单词首字母生成知识库名
// "Business Data Management" -> "kb_bdm"
func VectorIndexForTitle(title string) string {
	var b strings.Builder
	b.WriteString(vectorIndexPrefix)
	for _, word := range strings.Fields(title) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToLower(r))
				break
			}
		}
	}
	return b.String()
}

func buildMetadata(course *CourseContext) requestMetadata {
	meta := requestMetadata{
		AvailableVectorIndexes: []string{GeneralIndex},
		AvailableAgents: []agentInfo{
			{Name: CourseAgent, Description: "ai agent to resolve course related query"},
			{Name: GeneralAgent, Description: "ai agent to clear doubts of general queries related to the degree"},
		},
	}
	if course != nil && strings.TrimSpace(course.Title) != "" {
		title := course.Title
		meta.CourseName = &title
		meta.AvailableVectorIndexes = append([]string{VectorIndexForTitle(title)}, meta.AvailableVectorIndexes...)
	}
	return meta
}
