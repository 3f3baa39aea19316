package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/logger"
)

var modelLog = logger.New("openai:model")

var _ model.LLM = &Model{}

var (
	ErrNoChoicesInResponse = errors.New("no choices in OpenAI response")
)

// Model 基于 OpenAI 兼容接口实现 model.LLM，支持 reasoning_content
type Model struct {
	client       *openai.Client
	modelName    string
	noSystemRole bool // 不支持 system role 的服务，系统指令并入首条用户消息
}

// Option 模型选项
type Option func(*Model)

// WithoutSystemRole 系统指令降级为用户消息
func WithoutSystemRole() Option {
	return func(m *Model) { m.noSystemRole = true }
}

// NewModel 创建 OpenAI 兼容模型
func NewModel(modelName string, cfg openai.ClientConfig, opts ...Option) *Model {
	m := &Model{
		client:    openai.NewClientWithConfig(cfg),
		modelName: modelName,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name 返回模型名称
func (m *Model) Name() string {
	return m.modelName
}

// GenerateContent 实现 model.LLM 接口
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	if stream {
		return m.generateStream(ctx, req)
	}
	return m.generate(ctx, req)
}

// generate 非流式生成
func (m *Model) generate(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatCompletionRequest(req, m.modelName, m.noSystemRole)
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := m.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}

		llmResp, err := fromChatCompletionResponse(&resp)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(llmResp, nil)
	}
}

// generateStream 流式生成，最后一条为聚合后的完整响应
func (m *Model) generateStream(ctx context.Context, req *model.LLMRequest) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := toChatCompletionRequest(req, m.modelName, m.noSystemRole)
		if err != nil {
			yield(nil, err)
			return
		}
		chatReq.Stream = true

		stream, err := m.client.CreateChatCompletionStream(ctx, chatReq)
		if err != nil {
			yield(nil, err)
			return
		}
		defer stream.Close()

		m.processStream(stream, yield)
	}
}

// processStream 处理流式响应
func (m *Model) processStream(stream *openai.ChatCompletionStream, yield func(*model.LLMResponse, error) bool) {
	var (
		text          strings.Builder
		reasoning     strings.Builder
		finishReason  genai.FinishReason
		usageMetadata *genai.GenerateContentResponseUsageMetadata
	)
	calls := make(map[int]*toolCallBuilder)

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			modelLog.Warn("stream interrupted: %v", err)
			yield(nil, fmt.Errorf("stream recv: %w", err))
			return
		}
		if chunk.Usage != nil {
			usageMetadata = convertUsage(*chunk.Usage)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.ReasoningContent != "" {
			reasoning.WriteString(choice.Delta.ReasoningContent)
			if !yield(partialResponse(&genai.Part{Text: choice.Delta.ReasoningContent, Thought: true}), nil) {
				return
			}
		}
		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			if !yield(partialResponse(genai.NewPartFromText(choice.Delta.Content)), nil) {
				return
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			b, ok := calls[idx]
			if !ok {
				b = &toolCallBuilder{}
				calls[idx] = b
			}
			if tc.ID != "" {
				b.id = tc.ID
			}
			if tc.Function.Name != "" {
				b.name = tc.Function.Name
			}
			b.args.WriteString(tc.Function.Arguments)
		}

		if choice.FinishReason != "" {
			finishReason = convertFinishReason(string(choice.FinishReason))
		}
	}

	content := &genai.Content{Role: genai.RoleModel}
	if reasoning.Len() > 0 {
		content.Parts = append(content.Parts, &genai.Part{Text: reasoning.String(), Thought: true})
	}
	if text.Len() > 0 {
		content.Parts = append(content.Parts, genai.NewPartFromText(text.String()))
	}
	for _, idx := range sortedKeys(calls) {
		b := calls[idx]
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   b.id,
				Name: b.name,
				Args: parseJSONArgs(b.args.String()),
			},
		})
	}

	yield(&model.LLMResponse{
		Content:       content,
		UsageMetadata: usageMetadata,
		FinishReason:  finishReason,
		TurnComplete:  true,
	}, nil)
}

func partialResponse(part *genai.Part) *model.LLMResponse {
	return &model.LLMResponse{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{part}},
		Partial: true,
	}
}

// toolCallBuilder 聚合流式工具调用片段
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

func sortedKeys(m map[int]*toolCallBuilder) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
