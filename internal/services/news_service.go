package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// NewsService 新闻服务，解析 RSS/Atom 搜索源
type NewsService struct {
	feedURL string
	client  *http.Client
	cache   *FileCache
}

// NewNewsService 创建新闻服务，feedURL 接受 q 查询参数
func NewNewsService(feedURL string, timeout time.Duration, cache *FileCache) *NewsService {
	return &NewsService{
		feedURL: feedURL,
		client:  newHTTPClient(timeout),
		cache:   cache,
	}
}

// Search 搜索 end 之前 lookback 范围内的新闻，按源顺序返回最多 limit 条
func (s *NewsService) Search(ctx context.Context, query string, end time.Time, lookback time.Duration, limit int) ([]models.NewsItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = 10
	}

	reqURL, err := s.searchURL(query)
	if err != nil {
		return nil, err
	}

	var items []models.NewsItem
	if !s.cache.Get(reqURL, &items) {
		body, err := fetch(ctx, s.client, reqURL)
		if err != nil {
			return nil, err
		}
		items, err = parseFeed(body)
		if err != nil {
			return nil, err
		}
		_ = s.cache.Set(reqURL, items)
	}

	return filterNews(items, end, lookback, limit), nil
}

func (s *NewsService) searchURL(query string) (string, error) {
	u, err := url.Parse(s.feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid news feed url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseFeed 解析 RSS item 或 Atom entry
func parseFeed(body []byte) ([]models.NewsItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []models.NewsItem
	doc.Find("item, entry").Each(func(_ int, sel *goquery.Selection) {
		item := models.NewsItem{
			Title:     strings.TrimSpace(sel.Find("title").First().Text()),
			Link:      feedLink(sel.Find("link").First()),
			Source:    feedText(sel.Find("source").First()),
			Published: strings.TrimSpace(sel.Find("pubdate, published, updated").First().Text()),
		}
		if item.Title != "" {
			items = append(items, item)
		}
	})
	return items, nil
}

// feedLink Atom 使用 href 属性，RSS 使用元素文本
func feedLink(sel *goquery.Selection) string {
	if href, ok := sel.Attr("href"); ok {
		return href
	}
	return feedText(sel)
}

// feedText HTML 解析器把 RSS 的 <link>、<source> 当作空元素，文本落在紧随其后的文本节点
func feedText(sel *goquery.Selection) string {
	if text := strings.TrimSpace(sel.Text()); text != "" {
		return text
	}
	if len(sel.Nodes) == 0 {
		return ""
	}
	if next := sel.Nodes[0].NextSibling; next != nil && next.Type == html.TextNode {
		return strings.TrimSpace(next.Data)
	}
	return ""
}

var feedTimeLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339}

func parseFeedTime(s string) (time.Time, bool) {
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// filterNews 日期无法解析的条目保留
func filterNews(items []models.NewsItem, end time.Time, lookback time.Duration, limit int) []models.NewsItem {
	result := make([]models.NewsItem, 0, limit)
	var upper, lower time.Time
	if !end.IsZero() {
		upper = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
		if lookback > 0 {
			lower = upper.Add(-lookback)
		}
	}
	for _, it := range items {
		if len(result) >= limit {
			break
		}
		if t, ok := parseFeedTime(it.Published); ok && !upper.IsZero() {
			if t.After(upper) || (!lower.IsZero() && t.Before(lower)) {
				continue
			}
		}
		result = append(result, it)
	}
	return result
}
