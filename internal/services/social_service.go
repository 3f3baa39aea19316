package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// SocialService 社交舆情服务，读取 Reddit 风格的搜索 JSON
type SocialService struct {
	baseURL string
	client  *http.Client
	cache   *FileCache
}

// NewSocialService 创建社交舆情服务
func NewSocialService(baseURL string, timeout time.Duration, cache *FileCache) *SocialService {
	return &SocialService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
		cache:   cache,
	}
}

type listing struct {
	Data struct {
		Children []struct {
			Data struct {
				Title       string  `json:"title"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				Permalink   string  `json:"permalink"`
				CreatedUTC  float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search 搜索最近讨论，community 为空时全站搜索
func (s *SocialService) Search(ctx context.Context, query, community string, limit int) ([]models.SocialPost, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	path := "/search.json"
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "new")
	q.Set("limit", strconv.Itoa(limit))
	if community != "" {
		path = "/r/" + url.PathEscape(community) + "/search.json"
		q.Set("restrict_sr", "1")
	}
	reqURL := s.baseURL + path + "?" + q.Encode()

	var posts []models.SocialPost
	if s.cache.Get(reqURL, &posts) {
		return posts, nil
	}

	var l listing
	if err := fetchJSON(ctx, s.client, reqURL, &l); err != nil {
		return nil, err
	}
	posts = make([]models.SocialPost, 0, len(l.Data.Children))
	for _, c := range l.Data.Children {
		d := c.Data
		posts = append(posts, models.SocialPost{
			Title:     d.Title,
			Community: d.Subreddit,
			Score:     d.Score,
			Comments:  d.NumComments,
			URL:       s.baseURL + d.Permalink,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC().Format(time.RFC3339),
		})
	}
	_ = s.cache.Set(reqURL, posts)
	return posts, nil
}
