package adk

import (
	"context"
	"errors"
	"fmt"

	"github.com/run-bigpig/tradeagents/internal/adk/openai"
	"github.com/run-bigpig/tradeagents/internal/models"

	go_openai "github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"
)

// ErrNoModel 未配置模型
var ErrNoModel = errors.New("no model configured")

// ModelFactory 模型工厂，根据配置创建对应的 adk model
type ModelFactory struct {
	maxRetries int
}

// NewModelFactory 创建模型工厂，maxRetries 为传输层重试次数
func NewModelFactory(maxRetries int) *ModelFactory {
	return &ModelFactory{maxRetries: maxRetries}
}

// CreateModel 根据 AI 配置创建对应的模型，返回的模型带传输层重试
func (f *ModelFactory) CreateModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	if config == nil || config.ModelName == "" {
		return nil, ErrNoModel
	}

	var (
		llm model.LLM
		err error
	)
	switch config.Provider {
	case models.AIProviderGemini:
		llm, err = f.createGeminiModel(ctx, config)
	case models.AIProviderOpenAI:
		llm = f.createOpenAIModel(config)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetryModel(llm, f.maxRetries), nil
}

// Tiers 快速档与深度档模型
type Tiers struct {
	Quick model.LLM
	Deep  model.LLM
}

// CreateTiers 创建两档模型
func (f *ModelFactory) CreateTiers(ctx context.Context, quick, deep *models.AIConfig) (*Tiers, error) {
	q, err := f.CreateModel(ctx, quick)
	if err != nil {
		return nil, fmt.Errorf("create quick model: %w", err)
	}
	d, err := f.CreateModel(ctx, deep)
	if err != nil {
		return nil, fmt.Errorf("create deep model: %w", err)
	}
	return &Tiers{Quick: q, Deep: d}, nil
}

// createGeminiModel 创建 Gemini 模型
func (f *ModelFactory) createGeminiModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	return gemini.NewModel(ctx, config.ModelName, clientConfig)
}

// createOpenAIModel 创建 OpenAI 兼容模型
func (f *ModelFactory) createOpenAIModel(config *models.AIConfig) model.LLM {
	openaiCfg := go_openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		openaiCfg.BaseURL = config.BaseURL
	}
	return openai.NewModel(config.ModelName, openaiCfg)
}
