package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// NewsSource 新闻数据源
type NewsSource interface {
	Search(ctx context.Context, query string, end time.Time, lookback time.Duration, limit int) ([]models.NewsItem, error)
}

// NewNewsTool 创建新闻搜索工具
func NewNewsTool(src NewsSource) Tool {
	schema := ObjectSchema([]Property{
		{Name: "query", Type: "string", Description: "Search terms, e.g. company name, ticker or macro topic", Required: true},
		{Name: "end_date", Type: "string", Description: "Latest publication date, YYYY-MM-DD. Default today"},
		{Name: "lookback_days", Type: "integer", Description: "How many days before end_date to include, default 7"},
		{Name: "limit", Type: "integer", Description: "Maximum headlines, default 10"},
	})

	handler := func(ctx context.Context, args Args) (string, error) {
		query, err := args.RequireString("query")
		if err != nil {
			return "", err
		}
		end, err := parseDate(args.String("end_date", ""))
		if err != nil {
			return "", err
		}
		lookback := time.Duration(args.Int("lookback_days", 7)) * 24 * time.Hour
		limit := args.Int("limit", 10)

		items, err := src.Search(ctx, query, end, lookback, limit)
		if err != nil {
			return "", err
		}
		if len(items) == 0 {
			return fmt.Sprintf("No news found for %q before %s.", query, end.Format(time.DateOnly)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "# News for %q\n", query)
		for _, it := range items {
			fmt.Fprintf(&sb, "- [%s] %s", it.Published, it.Title)
			if it.Source != "" {
				fmt.Fprintf(&sb, " (%s)", it.Source)
			}
			sb.WriteString("\n")
		}
		return sb.String(), nil
	}

	return NewFuncTool("get_news", "Search recent news headlines", schema, handler)
}
