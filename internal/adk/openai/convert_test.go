package openai

import (
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestToChatCompletionRequestToolRoundTrip(t *testing.T) {
	temp := float32(0.3)
	req := &model.LLMRequest{
		Contents: []*genai.Content{
			genai.NewContentFromText("analyse BTCUSDT", genai.RoleUser),
			{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "hmm", Thought: true},
					{FunctionCall: &genai.FunctionCall{ID: "call_1", Name: "get_news", Args: map[string]any{"query": "btc"}}},
				},
			},
			{
				Role: genai.RoleUser,
				Parts: []*genai.Part{
					{FunctionResponse: &genai.FunctionResponse{ID: "call_1", Name: "get_news", Response: map[string]any{"result": "ok"}}},
				},
			},
		},
		Config: &genai.GenerateContentConfig{
			Temperature:       &temp,
			SystemInstruction: genai.NewContentFromText("you are a market analyst", genai.RoleUser),
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 "get_news",
				Description:          "news",
				ParametersJsonSchema: map[string]any{"type": "object"},
			}}}},
		},
	}

	got, err := toChatCompletionRequest(req, "gpt-x", false)
	require.NoError(t, err)

	require.Len(t, got.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)

	assistant := got.Messages[2]
	assert.Equal(t, openai.ChatMessageRoleAssistant, assistant.Role)
	assert.Equal(t, "hmm", assistant.ReasoningContent)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, `{"query":"btc"}`, assistant.ToolCalls[0].Function.Arguments)

	tool := got.Messages[3]
	assert.Equal(t, openai.ChatMessageRoleTool, tool.Role)
	assert.Equal(t, "call_1", tool.ToolCallID)
	assert.JSONEq(t, `{"result":"ok"}`, tool.Content)

	require.Len(t, got.Tools, 1)
	assert.Equal(t, "get_news", got.Tools[0].Function.Name)
	assert.InDelta(t, 0.3, got.Temperature, 1e-6)
}

func TestSystemInstructionWithoutSystemRole(t *testing.T) {
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("question", genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("rules", genai.RoleUser),
		},
	}
	got, err := toChatCompletionRequest(req, "m", true)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "rules\n\nquestion", got.Messages[0].Content)
}

func TestConvertToolsRequiresParameters(t *testing.T) {
	_, err := convertTools([]*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "bad"}}}})
	assert.Error(t, err)
}

func TestFromChatCompletionResponse(t *testing.T) {
	resp := &openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: openai.FinishReasonToolCalls,
			Message: openai.ChatCompletionMessage{
				Content: "checking",
				ToolCalls: []openai.ToolCall{{
					ID:       "c1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: "get_kline_data", Arguments: `{"symbol":"ETHUSDT"}`},
				}},
			},
		}},
		Usage: openai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}

	got, err := fromChatCompletionResponse(resp)
	require.NoError(t, err)
	require.Len(t, got.Content.Parts, 2)
	assert.Equal(t, "checking", got.Content.Parts[0].Text)
	call := got.Content.Parts[1].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "ETHUSDT", call.Args["symbol"])
	assert.Equal(t, int32(5), got.UsageMetadata.TotalTokenCount)

	_, err = fromChatCompletionResponse(&openai.ChatCompletionResponse{})
	assert.ErrorIs(t, err, ErrNoChoicesInResponse)
}

func TestParseJSONArgs(t *testing.T) {
	assert.Empty(t, parseJSONArgs(""))
	assert.Empty(t, parseJSONArgs("{not json"))
	assert.Equal(t, map[string]any{"n": float64(3)}, parseJSONArgs(`{"n":3}`))
}
