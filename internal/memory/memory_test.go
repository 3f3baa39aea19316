package memory

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

const dim = 128

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	s := NewStore(NewHashEmbedder(dim), backend)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]Backend {
	chromemBackend, err := NewChromemBackend("", NewHashEmbedder(dim))
	require.NoError(t, err)
	return map[string]Backend{
		"memory":  NewMemoryBackend(),
		"chromem": chromemBackend,
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(dim)
	a, err := e.Embed(context.Background(), "Bitcoin rallies on ETF inflows")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "bitcoin RALLIES on etf inflows!")
	require.NoError(t, err)
	c, err := e.Embed(context.Background(), "Treasury yields spike after CPI report")
	require.NoError(t, err)

	assert.Len(t, a, dim)
	assert.InDelta(t, 1.0, cosine(a, b), 1e-5)
	assert.Less(t, cosine(a, c), cosine(a, b))

	_, err = e.Embed(context.Background(), " ... ")
	assert.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestRetrieveStaysInsideRolePartition(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, backend)

			_, err := s.Add(ctx, Entry{Role: models.RoleBull, Situation: "strong momentum after halving", Lesson: "bull lesson", OutcomeScore: 80})
			require.NoError(t, err)
			_, err = s.Add(ctx, Entry{Role: models.RoleBear, Situation: "strong momentum after halving", Lesson: "bear lesson", OutcomeScore: -20})
			require.NoError(t, err)

			got, err := s.Retrieve(ctx, models.RoleBull, "strong momentum after halving", 5)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, models.RoleBull, got[0].Role)
			assert.Equal(t, "bull lesson", got[0].Lesson)

			empty, err := s.Retrieve(ctx, models.RoleTrader, "strong momentum after halving", 3)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t, backend)

			for _, e := range []Entry{
				{Role: models.RoleTrader, Situation: "oil supply shock lifts energy stocks", Lesson: "energy"},
				{Role: models.RoleTrader, Situation: "tech earnings beat with strong cloud growth", Lesson: "tech"},
				{Role: models.RoleTrader, Situation: "central bank cuts rates unexpectedly", Lesson: "rates"},
			} {
				_, err := s.Add(ctx, e)
				require.NoError(t, err)
			}

			got, err := s.Retrieve(ctx, models.RoleTrader, "tech earnings beat, cloud growth strong", 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "tech", got[0].Lesson)
			assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
		})
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	_, err := s.Add(ctx, Entry{Role: models.RoleAggressive, Situation: "x"})
	assert.ErrorIs(t, err, models.ErrUnknownRole)

	_, err = s.Add(ctx, Entry{Role: models.RoleTrader, Situation: "  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = s.Retrieve(ctx, models.RoleTrader, "", 1)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	got, err := s.Retrieve(ctx, models.RoleTrader, "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	first, err := s.Add(ctx, Entry{Role: models.RoleTrader, Situation: "same setup", Lesson: "first", OutcomeScore: 10})
	require.NoError(t, err)
	second, err := s.Add(ctx, Entry{Role: models.RoleTrader, Situation: "same setup", Lesson: "second", OutcomeScore: -10})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := s.Retrieve(ctx, models.RoleTrader, "same setup", 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestChromemPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := NewChromemBackend(dir, NewHashEmbedder(dim))
	require.NoError(t, err)
	s := NewStore(NewHashEmbedder(dim), b)
	created := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return created }
	_, err = s.Add(ctx, Entry{Role: models.RoleRiskJudge, Situation: "funding rates overheated", Lesson: "trim leverage", OutcomeScore: -42.5, Symbol: "BTCUSDT", Date: "2024-05-10"})
	require.NoError(t, err)

	reopened, err := NewChromemBackend(dir, NewHashEmbedder(dim))
	require.NoError(t, err)
	got, err := NewStore(NewHashEmbedder(dim), reopened).Retrieve(ctx, models.RoleRiskJudge, "funding rates overheated", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trim leverage", got[0].Lesson)
	assert.Equal(t, -42.5, got[0].OutcomeScore)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.True(t, created.Equal(got[0].CreatedAt))
}

func TestQdrantPayloadRoundTrip(t *testing.T) {
	rec := models.MemoryRecord{
		ID:           "8d5f0a4e-0f53-4a43-9b8e-2f3c7c1c9a10",
		Role:         models.RoleTrader,
		Situation:    "s",
		Lesson:       "l",
		OutcomeScore: -150,
		Symbol:       "AAPL",
		Date:         "2024-05-10",
		CreatedAt:    time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC),
	}
	got := fromPayload(toPayload(rec))
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = rec.CreatedAt
	assert.Equal(t, rec, got)
}

// scriptedLLM 按顺序返回文本，耗尽后返回错误
type scriptedLLM struct {
	replies []string
	calls   int
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		s.calls++
		if len(s.replies) == 0 {
			yield(nil, errors.New("model unavailable"))
			return
		}
		text := s.replies[0]
		s.replies = s.replies[1:]
		yield(&model.LLMResponse{Content: genai.NewContentFromText(text, genai.RoleModel)}, nil)
	}
}

func finishedRun(t *testing.T) *models.RunState {
	t.Helper()
	state := models.NewRunState("run-1", "BTCUSDT", "2024-05-10", []models.AnalystKind{models.AnalystMarket, models.AnalystNews})
	require.NoError(t, state.SetReport(models.AnalystMarket, "price broke above the 50 day average on rising volume"))
	require.NoError(t, state.SetReport(models.AnalystNews, "spot ETF inflows hit a monthly high"))
	require.NoError(t, state.InvestDebate.Record(models.RoleBull, "momentum is strong"))
	require.NoError(t, state.InvestDebate.Record(models.RoleBear, "inflows are fading"))
	require.NoError(t, state.InvestDebate.SetJudgeDecision("Buy with a tight stop"))
	require.NoError(t, state.SetTraderPlan("Buy 2% of the book. FINAL TRANSACTION PROPOSAL: **BUY**"))
	require.NoError(t, state.SetFinalDecision("Approve the buy. FINAL TRANSACTION PROPOSAL: **BUY**"))
	return state
}

func TestReflectThenRetrieveKeepsOutcomeSign(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())
	llm := &scriptedLLM{replies: []string{"bull lesson", "bear lesson", "trader lesson"}}

	state := finishedRun(t)
	written, err := NewReflector(s, llm).Reflect(ctx, state, -150)
	require.NoError(t, err)
	require.Len(t, written, len(models.MemoryRoles()))

	got, err := s.Retrieve(ctx, models.RoleTrader, state.Situation(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Less(t, got[0].OutcomeScore, 0.0)
	assert.Equal(t, "trader lesson", got[0].Lesson)

	judge, err := s.Retrieve(ctx, models.RoleRiskJudge, state.Situation(), 1)
	require.NoError(t, err)
	require.Len(t, judge, 1)
	assert.Contains(t, judge[0].Lesson, "a loss")
	assert.Contains(t, judge[0].Lesson, "Approve the buy")
}

func TestReflectWithoutModelUsesSummaries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	written, err := NewReflector(s, nil).Reflect(ctx, finishedRun(t), 35)
	require.NoError(t, err)
	for _, rec := range written {
		assert.Contains(t, rec.Lesson, "a gain")
		assert.Equal(t, 35.0, rec.OutcomeScore)
	}
}

func TestReflectSkipsAbsentRoles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, NewMemoryBackend())

	state := models.NewRunState("run-2", "ETHUSDT", "2024-05-10", []models.AnalystKind{models.AnalystMarket})
	require.NoError(t, state.SetReport(models.AnalystMarket, "range bound"))
	require.NoError(t, state.SetTraderPlan("Hold. FINAL TRANSACTION PROPOSAL: HOLD"))

	written, err := NewReflector(s, nil).Reflect(ctx, state, 5)
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, models.RoleTrader, written[0].Role)

	_, err = NewReflector(s, nil).Reflect(ctx, models.NewRunState("run-3", "X", "2024-05-10", nil), 1)
	assert.ErrorIs(t, err, ErrNothingToReflect)
}
