package models

// MessageKind 消息类型
type MessageKind string

const (
	MessagePrompt     MessageKind = "prompt"
	MessageReply      MessageKind = "reply"
	MessageToolResult MessageKind = "tool_result"
)

// ToolCall 模型发起的工具调用请求
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Message 运行消息记录（只追加）
type Message struct {
	Seq        int         `json:"seq"`
	Stage      string      `json:"stage"`
	Agent      string      `json:"agent"`
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"toolCalls,omitempty"`
	ToolName   string      `json:"toolName,omitempty"`
	ToolCallID string      `json:"toolCallId,omitempty"`
	IsError    bool        `json:"isError,omitempty"`
	Timestamp  int64       `json:"timestamp"`
}

// HasToolCalls 是否包含工具调用请求
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}
