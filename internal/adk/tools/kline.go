package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// KLineSource K线数据源
type KLineSource interface {
	GetKLineData(ctx context.Context, symbol, interval string, end time.Time, limit int) ([]models.KLineData, error)
}

// 输出最多保留的K线条数
const maxKLineRows = 60

// NewKLineTool 创建K线数据工具
func NewKLineTool(src KLineSource) Tool {
	schema := ObjectSchema([]Property{
		{Name: "symbol", Type: "string", Description: "Trading pair or ticker, e.g. BTCUSDT", Required: true},
		{Name: "interval", Type: "string", Description: "Candle interval: 1h, 4h, 1d, 1w. Default 1d"},
		{Name: "end_date", Type: "string", Description: "Last date to include, YYYY-MM-DD. Default today"},
		{Name: "limit", Type: "integer", Description: "Number of candles, default 30"},
	})

	handler := func(ctx context.Context, args Args) (string, error) {
		symbol, err := args.RequireString("symbol")
		if err != nil {
			return "", err
		}
		end, err := parseDate(args.String("end_date", ""))
		if err != nil {
			return "", err
		}
		interval := args.String("interval", "1d")
		limit := args.Int("limit", 30)

		log.Debug("get_kline_data symbol=%s interval=%s end=%s limit=%d", symbol, interval, end.Format(time.DateOnly), limit)
		klines, err := src.GetKLineData(ctx, symbol, interval, end, limit)
		if err != nil {
			return "", err
		}
		return formatKLines(symbol, interval, klines), nil
	}

	return NewFuncTool("get_kline_data", "Get OHLCV candles for a symbol up to a date", schema, handler)
}

func formatKLines(symbol, interval string, klines []models.KLineData) string {
	start := 0
	if len(klines) > maxKLineRows {
		start = len(klines) - maxKLineRows
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s %s candles (%d rows)\n", symbol, interval, len(klines)-start)
	sb.WriteString("time,open,high,low,close,volume\n")
	for _, k := range klines[start:] {
		fmt.Fprintf(&sb, "%s,%.4f,%.4f,%.4f,%.4f,%.2f\n", k.Time, k.Open, k.High, k.Low, k.Close, k.Volume)
	}
	return sb.String()
}

// parseDate 空串表示当天
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
