package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// ErrNoData 数据源没有返回数据
var ErrNoData = errors.New("no data returned")

// 支持的K线周期
var klineIntervals = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "4h": true, "1d": true, "1w": true, "1M": true,
}

// MarketService 行情服务，使用交易所 REST 接口获取K线
type MarketService struct {
	baseURL string
	client  *http.Client
	cache   *FileCache
}

// NewMarketService 创建行情服务，cache 可为 nil
func NewMarketService(baseURL string, timeout time.Duration, cache *FileCache) *MarketService {
	return &MarketService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		cache:   cache,
	}
}

// GetKLineData 获取截至 end 当天收盘的 limit 根K线
func (s *MarketService) GetKLineData(ctx context.Context, symbol, interval string, end time.Time, limit int) ([]models.KLineData, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if interval == "" {
		interval = "1d"
	}
	if !klineIntervals[interval] {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	if limit <= 0 || limit > 1000 {
		limit = 30
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if !end.IsZero() {
		endOfDay := time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
		q.Set("endTime", strconv.FormatInt(endOfDay.UnixMilli(), 10))
	}
	reqURL := s.baseURL + "/api/v3/klines?" + q.Encode()

	var klines []models.KLineData
	if s.cache.Get(reqURL, &klines) {
		return klines, nil
	}

	var rows [][]any
	if err := fetchJSON(ctx, s.client, reqURL, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoData, symbol, interval)
	}

	klines = make([]models.KLineData, 0, len(rows))
	for _, row := range rows {
		k, err := parseKLineRow(row)
		if err != nil {
			return nil, err
		}
		klines = append(klines, k)
	}
	_ = s.cache.Set(reqURL, klines)
	return klines, nil
}

// parseKLineRow [openTime, open, high, low, close, volume, ...]，价格为字符串
func parseKLineRow(row []any) (models.KLineData, error) {
	if len(row) < 6 {
		return models.KLineData{}, fmt.Errorf("malformed kline row: %v", row)
	}
	openTime, ok := row[0].(float64)
	if !ok {
		return models.KLineData{}, fmt.Errorf("malformed kline open time: %v", row[0])
	}
	var vals [5]float64
	for i := range vals {
		v, err := toFloat(row[i+1])
		if err != nil {
			return models.KLineData{}, err
		}
		vals[i] = v
	}
	return models.KLineData{
		Time:   time.UnixMilli(int64(openTime)).UTC().Format("2006-01-02 15:04"),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unexpected numeric value %v", v)
	}
}
