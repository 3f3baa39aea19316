package models

// AIProvider AI 服务提供商
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderGemini AIProvider = "gemini"
)

// AIConfig 单个模型的连接配置
type AIConfig struct {
	Provider    AIProvider `json:"provider"`
	BaseURL     string     `json:"baseUrl"`
	APIKey      string     `json:"apiKey"`
	ModelName   string     `json:"modelName"`
	Temperature float64    `json:"temperature"`
}

// MCPTransportType MCP 传输类型
type MCPTransportType string

const (
	MCPTransportHTTP    MCPTransportType = "http"
	MCPTransportSSE     MCPTransportType = "sse"
	MCPTransportCommand MCPTransportType = "command"
)

// MCPServerConfig MCP 服务器配置
type MCPServerConfig struct {
	ID            string           `json:"id" koanf:"id"`
	Name          string           `json:"name" koanf:"name"`
	Enabled       bool             `json:"enabled" koanf:"enabled"`
	TransportType MCPTransportType `json:"transportType" koanf:"transport"`
	Endpoint      string           `json:"endpoint" koanf:"endpoint"`
	Command       string           `json:"command" koanf:"command"`
	Args          []string         `json:"args" koanf:"args"`
	ToolFilter    []string         `json:"toolFilter" koanf:"tool_filter"`
	Analysts      []string         `json:"analysts" koanf:"analysts"`
}
