package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const klineBody = `[
 [1715299200000,"61000.5","62000","60500","61500.25","1234.5",1715385599999,"0",10,"0","0","0"],
 [1715385600000,"61500.25","63000","61000","62800","999",1715471999999,"0",8,"0","0","0"]
]`

func TestGetKLineData(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.URL.Query().Get("endTime"))
		_, _ = w.Write([]byte(klineBody))
	}))
	defer srv.Close()

	cache, err := NewFileCache(t.TempDir(), time.Minute)
	require.NoError(t, err)
	ms := NewMarketService(srv.URL, time.Second, cache)

	end := time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)
	klines, err := ms.GetKLineData(context.Background(), "btcusdt", "", end, 2)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, "2024-05-10 00:00", klines[0].Time)
	assert.InDelta(t, 61000.5, klines[0].Open, 1e-9)
	assert.InDelta(t, 62800, klines[1].Close, 1e-9)
	assert.InDelta(t, 999, klines[1].Volume, 1e-9)

	_, err = ms.GetKLineData(context.Background(), "BTCUSDT", "1d", end, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second call should hit the file cache")
}

func TestGetKLineDataErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "EMPTY" {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	ms := NewMarketService(srv.URL, time.Second, nil)
	ctx := context.Background()

	_, err := ms.GetKLineData(ctx, "", "1d", time.Time{}, 10)
	assert.Error(t, err)
	_, err = ms.GetKLineData(ctx, "BTCUSDT", "7m", time.Time{}, 10)
	assert.Error(t, err)
	_, err = ms.GetKLineData(ctx, "NOPE", "1d", time.Time{}, 10)
	assert.ErrorContains(t, err, "status 400")
	_, err = ms.GetKLineData(ctx, "EMPTY", "1d", time.Time{}, 10)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestFileCacheExpiry(t *testing.T) {
	cache, err := NewFileCache(t.TempDir(), 20*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, cache.Set("k", []string{"a"}))
	var got []string
	require.True(t, cache.Get("k", &got))
	assert.Equal(t, []string{"a"}, got)

	time.Sleep(40 * time.Millisecond)
	assert.False(t, cache.Get("k", &got))

	var nilCache *FileCache
	assert.False(t, nilCache.Get("k", &got))
	assert.NoError(t, nilCache.Set("k", got))
}
