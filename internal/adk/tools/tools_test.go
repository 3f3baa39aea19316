package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/tradeagents/internal/models"
)

type fakeKLines struct {
	gotSymbol string
	gotEnd    time.Time
	err       error
}

func (f *fakeKLines) GetKLineData(ctx context.Context, symbol, interval string, end time.Time, limit int) ([]models.KLineData, error) {
	f.gotSymbol, f.gotEnd = symbol, end
	if f.err != nil {
		return nil, f.err
	}
	return []models.KLineData{{Time: "2024-05-10 00:00", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}}, nil
}

type fakeNews struct{ items []models.NewsItem }

func (f *fakeNews) Search(ctx context.Context, query string, end time.Time, lookback time.Duration, limit int) ([]models.NewsItem, error) {
	return f.items, nil
}

func TestKLineTool(t *testing.T) {
	src := &fakeKLines{}
	tool := NewKLineTool(src)
	assert.Equal(t, "get_kline_data", tool.Name())

	decl := tool.Declaration()
	schema, ok := decl.ParametersJsonSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"symbol"}, schema["required"])

	out, err := tool.Run(context.Background(), map[string]any{"symbol": "BTCUSDT", "end_date": "2024-05-10", "limit": "5"})
	require.NoError(t, err)
	assert.Contains(t, out, "time,open,high,low,close,volume")
	assert.Contains(t, out, "2024-05-10 00:00,1.0000,2.0000,0.5000,1.5000,10.00")
	assert.Equal(t, "BTCUSDT", src.gotSymbol)
	assert.Equal(t, 2024, src.gotEnd.Year())

	_, err = tool.Run(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, ErrMissingArg)

	_, err = tool.Run(context.Background(), map[string]any{"symbol": "BTCUSDT", "end_date": "10/05/2024"})
	assert.Error(t, err)

	src.err = errors.New("exchange down")
	_, err = tool.Run(context.Background(), map[string]any{"symbol": "BTCUSDT"})
	assert.EqualError(t, err, "exchange down")
}

func TestNewsTool(t *testing.T) {
	tool := NewNewsTool(&fakeNews{})
	out, err := tool.Run(context.Background(), map[string]any{"query": "AAPL", "end_date": "2024-05-10"})
	require.NoError(t, err)
	assert.Contains(t, out, "No news found")

	tool = NewNewsTool(&fakeNews{items: []models.NewsItem{{Title: "Apple beats", Source: "Wire", Published: "today"}}})
	out, err = tool.Run(context.Background(), map[string]any{"query": "AAPL"})
	require.NoError(t, err)
	assert.Contains(t, out, "- [today] Apple beats (Wire)")
}

func TestArgs(t *testing.T) {
	a := Args{"n": float64(3), "s": "7", "x": "abc", "empty": ""}
	assert.Equal(t, 3, a.Int("n", 0))
	assert.Equal(t, 7, a.Int("s", 0))
	assert.Equal(t, 9, a.Int("x", 9))
	assert.Equal(t, 9, a.Int("missing", 9))
	assert.Equal(t, "def", a.String("empty", "def"))
	assert.Equal(t, "3", a.String("n", ""))
}

func TestRegistryAndToolset(t *testing.T) {
	r := NewRegistry()
	k := NewKLineTool(&fakeKLines{})
	n := NewNewsTool(&fakeNews{})
	require.NoError(t, r.Register(k, n))
	assert.Error(t, r.Register(k))
	assert.Equal(t, []string{"get_kline_data", "get_news"}, r.Names())

	got := r.GetTools([]string{"get_news", "nope"})
	require.Len(t, got, 1)

	ts := NewToolset(got...)
	ts.Add(n)
	ts.Add(k)
	assert.Equal(t, 2, ts.Len())
	_, err := ts.Lookup("get_news")
	require.NoError(t, err)
	_, err = ts.Lookup("place_order")
	assert.ErrorIs(t, err, ErrUnknownTool)

	gt := ts.GenaiTools()
	require.Len(t, gt, 1)
	assert.Len(t, gt[0].FunctionDeclarations, 2)

	var empty *Toolset
	assert.Nil(t, empty.GenaiTools())
	_, err = empty.Lookup("x")
	assert.ErrorIs(t, err, ErrUnknownTool)
}
