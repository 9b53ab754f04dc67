package llm

import "context"

// Message 是一条对话消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 描述一次大模型补全调用。
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
}

// Client 定义了调用大模型的统一接口，返回模型的原始文本输出。
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// 对话角色常量。
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
