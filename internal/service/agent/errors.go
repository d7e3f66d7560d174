package agent

import "errors"

var (
	// ErrAgentNotFound 智能体不存在
	ErrAgentNotFound = errors.New("agent not found")
	// ErrUpstreamLLM 模型调用失败
	ErrUpstreamLLM = errors.New("upstream llm failure")
	// ErrGenerationTimeout 生成超时
	ErrGenerationTimeout = errors.New("generation timed out")
	// ErrMalformedOutput JSON 智能体输出无法解析
	ErrMalformedOutput = errors.New("malformed agent output")
)

// userMessage 面向客户端的错误文案
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrAgentNotFound):
		return "Agent not found"
	case errors.Is(err, ErrGenerationTimeout):
		return "Response generation timed out"
	default:
		return "Failed to generate response"
	}
}
