package adk

import (
	"context"
	"errors"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ErrEmptyResponse 模型没有返回任何内容
var ErrEmptyResponse = errors.New("empty model response")

// Reply 一次调用的聚合结果
type Reply struct {
	Content *genai.Content // 去掉思考片段后的模型消息，可直接追加到历史
	Text    string
	Calls   []*genai.FunctionCall
}

// HasToolCalls 是否请求了工具
func (r *Reply) HasToolCalls() bool {
	return len(r.Calls) > 0
}

// Generate 非流式调用模型并聚合响应，思考片段被丢弃
func Generate(ctx context.Context, llm model.LLM, req *model.LLMRequest) (*Reply, error) {
	return collect(llm.GenerateContent(ctx, req, false), nil)
}

// GenerateStream 流式调用模型，增量文本交给 onDelta，返回最后的完整响应
func GenerateStream(ctx context.Context, llm model.LLM, req *model.LLMRequest, onDelta func(text string)) (*Reply, error) {
	return collect(llm.GenerateContent(ctx, req, true), onDelta)
}

// collect 聚合非 Partial 响应，Partial 片段只用于 onDelta
func collect(seq iter.Seq2[*model.LLMResponse, error], onDelta func(string)) (*Reply, error) {
	reply := &Reply{Content: &genai.Content{Role: genai.RoleModel}}
	var text strings.Builder
	for resp, err := range seq {
		if err != nil {
			return nil, err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		if resp.Partial {
			if onDelta != nil {
				for _, part := range resp.Content.Parts {
					if part != nil && !part.Thought && part.Text != "" {
						onDelta(part.Text)
					}
				}
			}
			continue
		}
		for _, part := range resp.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			switch {
			case part.FunctionCall != nil:
				reply.Calls = append(reply.Calls, part.FunctionCall)
			case part.Text != "":
				text.WriteString(part.Text)
			default:
				continue
			}
			reply.Content.Parts = append(reply.Content.Parts, part)
		}
	}
	if len(reply.Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}
	reply.Text = strings.TrimSpace(text.String())
	return reply, nil
}

// GenerateText 单轮文本生成
func GenerateText(ctx context.Context, llm model.LLM, prompt string) (string, error) {
	reply, err := Generate(ctx, llm, &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
	})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}
