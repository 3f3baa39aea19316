package adk

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/models"
)

type flakyLLM struct {
	failures int
	err      error
	calls    int
}

func (f *flakyLLM) Name() string { return "flaky" }

func (f *flakyLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		f.calls++
		if f.calls <= f.failures {
			yield(nil, f.err)
			return
		}
		yield(&model.LLMResponse{Content: genai.NewContentFromText("ok", genai.RoleModel)}, nil)
	}
}

func collectText(t *testing.T, llm model.LLM) (string, error) {
	t.Helper()
	var text string
	for resp, err := range llm.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		if err != nil {
			return "", err
		}
		text += resp.Content.Parts[0].Text
	}
	return text, nil
}

func TestRetryModelRecoversFromTransientErrors(t *testing.T) {
	inner := &flakyLLM{failures: 2, err: errors.New("503 service unavailable")}
	m := NewRetryModel(inner, 3).WithBackoff(time.Millisecond, 2*time.Millisecond)

	text, err := collectText(t, m)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "flaky", m.Name())
}

func TestRetryModelGivesUp(t *testing.T) {
	inner := &flakyLLM{failures: 10, err: errors.New("connection reset")}
	m := NewRetryModel(inner, 2).WithBackoff(time.Millisecond, time.Millisecond)

	_, err := collectText(t, m)
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryModelDoesNotRetryCancellation(t *testing.T) {
	inner := &flakyLLM{failures: 10, err: context.DeadlineExceeded}
	m := NewRetryModel(inner, 5).WithBackoff(time.Millisecond, time.Millisecond)

	_, err := collectText(t, m)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryModelZeroRetries(t *testing.T) {
	boom := errors.New("boom")
	inner := &flakyLLM{failures: 1, err: boom}
	_, err := collectText(t, NewRetryModel(inner, 0))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, inner.calls)
}

func TestCreateModel(t *testing.T) {
	f := NewModelFactory(1)

	_, err := f.CreateModel(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = f.CreateModel(context.Background(), &models.AIConfig{Provider: "claude", ModelName: "x"})
	assert.Error(t, err)

	llm, err := f.CreateModel(context.Background(), &models.AIConfig{
		Provider:  models.AIProviderOpenAI,
		APIKey:    "k",
		BaseURL:   "http://127.0.0.1:1/v1",
		ModelName: "gpt-test",
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", llm.Name())
}
