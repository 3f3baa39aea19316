package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestModelGenerateContent(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				FinishReason: openai.FinishReasonStop,
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "FINAL TRANSACTION PROPOSAL: **HOLD**"},
			}},
		})
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	m := NewModel("gpt-test", cfg)
	assert.Equal(t, "gpt-test", m.Name())

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleUser)}}
	var texts []string
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		require.NoError(t, err)
		for _, p := range resp.Content.Parts {
			texts = append(texts, p.Text)
		}
	}
	assert.Equal(t, "gpt-test", gotModel)
	assert.Equal(t, []string{"FINAL TRANSACTION PROPOSAL: **HOLD**"}, texts)
}

func TestModelGenerateContentTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	m := NewModel("gpt-test", cfg)

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleUser)}}
	var gotErr error
	for _, err := range m.GenerateContent(context.Background(), req, false) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestModelGenerateContentStream(t *testing.T) {
	idx := 0
	chunks := []openai.ChatCompletionStreamResponse{
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Role: "assistant", Content: "Checking "}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{Content: "prices."}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{Delta: openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{
			Index: &idx, ID: "call_1", Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: "get_kline_data", Arguments: `{"sym`},
		}}}}}},
		{Choices: []openai.ChatCompletionStreamChoice{{
			Delta:        openai.ChatCompletionStreamChoiceDelta{ToolCalls: []openai.ToolCall{{Index: &idx, Function: openai.FunctionCall{Arguments: `bol":"BTCUSDT"}`}}}},
			FinishReason: openai.FinishReasonToolCalls,
		}}},
	}

	var streamed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		streamed = body.Stream

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			raw, err := json.Marshal(c)
			require.NoError(t, err)
			fmt.Fprintf(w, "data: %s\n\n", raw)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("k")
	cfg.BaseURL = srv.URL + "/v1"
	m := NewModel("gpt-test", cfg)

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("hi", genai.RoleUser)}}
	var partials []string
	var final *model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), req, true) {
		require.NoError(t, err)
		if resp.Partial {
			partials = append(partials, resp.Content.Parts[0].Text)
			continue
		}
		final = resp
	}

	assert.True(t, streamed)
	assert.Equal(t, []string{"Checking ", "prices."}, partials)
	require.NotNil(t, final)
	assert.True(t, final.TurnComplete)
	require.Len(t, final.Content.Parts, 2)
	assert.Equal(t, "Checking prices.", final.Content.Parts[0].Text)
	call := final.Content.Parts[1].FunctionCall
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "get_kline_data", call.Name)
	assert.Equal(t, map[string]any{"symbol": "BTCUSDT"}, call.Args)
}
