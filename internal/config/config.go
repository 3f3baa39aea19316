package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/run-bigpig/tradeagents/internal/models"
	"github.com/run-bigpig/tradeagents/internal/pkg/paths"
)

// ErrInvalidConfig 配置校验失败
var ErrInvalidConfig = errors.New("invalid config")

// 记忆后端
const (
	BackendMemory  = "memory"
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// 向量化方式
const (
	EmbedderOpenAI = "openai"
	EmbedderGemini = "gemini"
	EmbedderHash   = "hash"
)

// Config 完整运行配置，显式传入编排器
type Config struct {
	LLM      LLMConfig      `koanf:"llm"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Memory   MemoryConfig   `koanf:"memory"`
	Data     DataConfig     `koanf:"data"`
	MCP      MCPConfig      `koanf:"mcp"`
	Results  ResultsConfig  `koanf:"results"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// LLMConfig 快速/深度两档模型配置
type LLMConfig struct {
	Provider    string        `koanf:"provider"`
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	QuickModel  string        `koanf:"quick_model"`
	DeepModel   string        `koanf:"deep_model"`
	MaxRetries  int           `koanf:"max_retries"`
	CallTimeout time.Duration `koanf:"call_timeout"`
	Temperature float64       `koanf:"temperature"`
	Stream      bool          `koanf:"stream"`
}

// PipelineConfig 流水线上限与超时
type PipelineConfig struct {
	Analysts             []string      `koanf:"analysts"`
	MaxDebateRounds      int           `koanf:"max_debate_rounds"`
	MaxRiskDiscussRounds int           `koanf:"max_risk_discuss_rounds"`
	MaxToolIterations    int           `koanf:"max_tool_iterations"`
	ToolTimeout          time.Duration `koanf:"tool_timeout"`
	ParallelAnalysts     bool          `koanf:"parallel_analysts"`
	MemoryTopK           int           `koanf:"memory_top_k"`
	RunTimeout           time.Duration `koanf:"run_timeout"`
}

// MemoryConfig 记忆存储配置
type MemoryConfig struct {
	Enabled        bool         `koanf:"enabled"`
	Backend        string       `koanf:"backend"`
	Path           string       `koanf:"path"`
	Embedder       string       `koanf:"embedder"`
	EmbeddingModel string       `koanf:"embedding_model"`
	Dimension      int          `koanf:"dimension"`
	ReflectWithLLM bool         `koanf:"reflect_with_llm"`
	Qdrant         QdrantConfig `koanf:"qdrant"`
}

// QdrantConfig Qdrant 连接配置
type QdrantConfig struct {
	Host             string `koanf:"host"`
	Port             int    `koanf:"port"`
	UseTLS           bool   `koanf:"use_tls"`
	CollectionPrefix string `koanf:"collection_prefix"`
}

// DataConfig 内置数据工具配置
type DataConfig struct {
	MarketBaseURL string        `koanf:"market_base_url"`
	NewsFeedURL   string        `koanf:"news_feed_url"`
	SocialBaseURL string        `koanf:"social_base_url"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
	CacheDir      string        `koanf:"cache_dir"`
	HTTPTimeout   time.Duration `koanf:"http_timeout"`
}

// MCPConfig MCP 服务器列表
type MCPConfig struct {
	Servers []models.MCPServerConfig `koanf:"servers"`
}

// ResultsConfig 运行产物目录
type ResultsConfig struct {
	Dir string `koanf:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsConfig 指标端点，Addr 为空时不启用
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// AnalystKinds 解析分析师团队，未配置时使用默认团队
func (c *Config) AnalystKinds() ([]models.AnalystKind, error) {
	if len(c.Pipeline.Analysts) == 0 {
		return models.DefaultAnalystTeam(), nil
	}
	return models.ParseAnalystKinds(c.Pipeline.Analysts)
}

// QuickModel 快速档模型配置（分析师、辩论）
func (c *Config) QuickModel() *models.AIConfig {
	return c.aiConfig(c.LLM.QuickModel)
}

// DeepModel 深度档模型配置（裁决）
func (c *Config) DeepModel() *models.AIConfig {
	return c.aiConfig(c.LLM.DeepModel)
}

func (c *Config) aiConfig(name string) *models.AIConfig {
	return &models.AIConfig{
		Provider:    models.AIProvider(c.LLM.Provider),
		BaseURL:     c.LLM.BaseURL,
		APIKey:      c.LLM.APIKey,
		ModelName:   name,
		Temperature: c.LLM.Temperature,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch models.AIProvider(c.LLM.Provider) {
	case models.AIProviderOpenAI, models.AIProviderGemini:
	default:
		return fmt.Errorf("%w: unknown llm.provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.QuickModel == "" || c.LLM.DeepModel == "" {
		return fmt.Errorf("%w: llm.quick_model and llm.deep_model are required", ErrInvalidConfig)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("%w: llm.max_retries must be >= 0", ErrInvalidConfig)
	}
	if _, err := c.AnalystKinds(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	p := c.Pipeline
	if p.MaxDebateRounds < 0 || p.MaxRiskDiscussRounds < 0 {
		return fmt.Errorf("%w: debate round limits must be >= 0", ErrInvalidConfig)
	}
	if p.MaxToolIterations < 1 {
		return fmt.Errorf("%w: pipeline.max_tool_iterations must be >= 1", ErrInvalidConfig)
	}
	if p.MemoryTopK < 0 {
		return fmt.Errorf("%w: pipeline.memory_top_k must be >= 0", ErrInvalidConfig)
	}

	switch c.Memory.Backend {
	case BackendMemory, BackendChromem, BackendQdrant:
	default:
		return fmt.Errorf("%w: unknown memory.backend %q", ErrInvalidConfig, c.Memory.Backend)
	}
	switch c.Memory.Embedder {
	case EmbedderOpenAI, EmbedderGemini:
	case EmbedderHash:
		if c.Memory.Dimension <= 0 {
			return fmt.Errorf("%w: memory.dimension must be > 0 for the hash embedder", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown memory.embedder %q", ErrInvalidConfig, c.Memory.Embedder)
	}

	for _, s := range c.MCP.Servers {
		if !s.Enabled {
			continue
		}
		switch s.TransportType {
		case models.MCPTransportHTTP, models.MCPTransportSSE:
			if s.Endpoint == "" {
				return fmt.Errorf("%w: mcp server %s needs an endpoint", ErrInvalidConfig, s.ID)
			}
		case models.MCPTransportCommand:
			if s.Command == "" {
				return fmt.Errorf("%w: mcp server %s needs a command", ErrInvalidConfig, s.ID)
			}
		default:
			return fmt.Errorf("%w: mcp server %s has unknown transport %q", ErrInvalidConfig, s.ID, s.TransportType)
		}
		if _, err := models.ParseAnalystKinds(s.Analysts); err != nil {
			return fmt.Errorf("%w: mcp server %s: %v", ErrInvalidConfig, s.ID, err)
		}
	}
	return nil
}

// applyDefaults 填充依赖运行环境的路径
func applyDefaults(c *Config) {
	if c.Results.Dir == "" {
		c.Results.Dir = filepath.Join(paths.GetDataDir(), "results")
	}
	if c.Data.CacheDir == "" {
		c.Data.CacheDir = paths.GetCacheDir()
	}
	if c.Memory.Path == "" && c.Memory.Backend == BackendChromem {
		c.Memory.Path = filepath.Join(paths.GetDataDir(), "memory")
	}
}
