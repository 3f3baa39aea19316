package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// toChatCompletionRequest 将 ADK 请求转换为 OpenAI 请求
func toChatCompletionRequest(req *model.LLMRequest, modelName string, noSystemRole bool) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		msgs, err := toChatMessages(content)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, msgs...)
	}

	chatReq := openai.ChatCompletionRequest{Model: modelName}

	cfg := req.Config
	if cfg != nil {
		if cfg.Temperature != nil {
			chatReq.Temperature = *cfg.Temperature
		}
		if cfg.MaxOutputTokens > 0 {
			chatReq.MaxTokens = int(cfg.MaxOutputTokens)
		}
		if cfg.TopP != nil {
			chatReq.TopP = *cfg.TopP
		}
		if len(cfg.StopSequences) > 0 {
			chatReq.Stop = cfg.StopSequences
		}
		if cfg.ResponseMIMEType == "application/json" {
			chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			}
		}
		if len(cfg.Tools) > 0 {
			tools, err := convertTools(cfg.Tools)
			if err != nil {
				return openai.ChatCompletionRequest{}, err
			}
			chatReq.Tools = tools
		}
		if sys := textOf(cfg.SystemInstruction); sys != "" {
			messages = withSystemInstruction(messages, sys, noSystemRole)
		}
	}

	chatReq.Messages = messages
	return chatReq, nil
}

// withSystemInstruction 插入系统指令；不支持 system role 时并入首条用户消息
func withSystemInstruction(messages []openai.ChatCompletionMessage, sys string, noSystemRole bool) []openai.ChatCompletionMessage {
	if !noSystemRole {
		systemMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: sys}
		return append([]openai.ChatCompletionMessage{systemMsg}, messages...)
	}
	for i := range messages {
		if messages[i].Role == openai.ChatMessageRoleUser {
			messages[i].Content = sys + "\n\n" + messages[i].Content
			return messages
		}
	}
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: sys}
	return append([]openai.ChatCompletionMessage{userMsg}, messages...)
}

// toChatMessages 将 genai.Content 转换为 OpenAI 消息
// 每个 FunctionResponse 单独成为一条 tool 消息，其余部分合并为一条消息
func toChatMessages(content *genai.Content) ([]openai.ChatCompletionMessage, error) {
	var (
		toolMsgs  []openai.ChatCompletionMessage
		text      []string
		reasoning strings.Builder
		toolCalls []openai.ToolCall
	)

	for _, part := range content.Parts {
		switch {
		case part == nil:
		case part.FunctionResponse != nil:
			body, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function response: %w", err)
			}
			toolMsgs = append(toolMsgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: part.FunctionResponse.ID,
				Name:       part.FunctionResponse.Name,
				Content:    string(body),
			})
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function args: %w", err)
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   part.FunctionCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.Thought:
			reasoning.WriteString(part.Text)
		case part.Text != "":
			text = append(text, part.Text)
		}
	}

	if len(text) == 0 && len(toolCalls) == 0 && reasoning.Len() == 0 {
		return toolMsgs, nil
	}

	msg := openai.ChatCompletionMessage{
		Role:             convertRole(content.Role),
		Content:          strings.Join(text, "\n"),
		ReasoningContent: reasoning.String(),
		ToolCalls:        toolCalls,
	}
	return append(toolMsgs, msg), nil
}

// convertRole 转换角色
func convertRole(role string) string {
	switch role {
	case genai.RoleModel:
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// textOf 提取非思考文本
func textOf(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var texts []string
	for _, part := range content.Parts {
		if part != nil && !part.Thought && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertTools 转换工具定义，参数使用 JSON Schema
func convertTools(genaiTools []*genai.Tool) ([]openai.Tool, error) {
	var tools []openai.Tool
	for _, t := range genaiTools {
		if t == nil {
			continue
		}
		for _, decl := range t.FunctionDeclarations {
			var params any = decl.ParametersJsonSchema
			if params == nil && decl.Parameters != nil {
				params = decl.Parameters
			}
			if params == nil {
				return nil, fmt.Errorf("parameters is nil for tool %s", decl.Name)
			}
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools, nil
}

// fromChatCompletionResponse 转换 OpenAI 响应
func fromChatCompletionResponse(resp *openai.ChatCompletionResponse) (*model.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: genai.RoleModel}

	if choice.Message.ReasoningContent != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.ReasoningContent, Thought: true})
	}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, genai.NewPartFromText(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type != "" && tc.Type != openai.ToolTypeFunction {
			continue
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: parseJSONArgs(tc.Function.Arguments),
			},
		})
	}

	var usage *genai.GenerateContentResponseUsageMetadata
	if resp.Usage.TotalTokens > 0 {
		usage = convertUsage(resp.Usage)
	}

	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: usage,
		FinishReason:  convertFinishReason(string(choice.FinishReason)),
		TurnComplete:  true,
	}, nil
}

func convertUsage(u openai.Usage) *genai.GenerateContentResponseUsageMetadata {
	return &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(u.PromptTokens),
		CandidatesTokenCount: int32(u.CompletionTokens),
		TotalTokenCount:      int32(u.TotalTokens),
	}
}

// convertFinishReason 转换结束原因
func convertFinishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop", "tool_calls", "function_call":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonUnspecified
	}
}

// parseJSONArgs 解析 JSON 参数，失败时返回空参数
func parseJSONArgs(argsJSON string) map[string]any {
	args := make(map[string]any)
	if argsJSON == "" {
		return args
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return make(map[string]any)
	}
	return args
}
