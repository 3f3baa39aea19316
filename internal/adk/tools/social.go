package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// SocialSource 社交舆情数据源
type SocialSource interface {
	Search(ctx context.Context, query, community string, limit int) ([]models.SocialPost, error)
}

// NewSocialTool 创建社交舆情工具
func NewSocialTool(src SocialSource) Tool {
	schema := ObjectSchema([]Property{
		{Name: "query", Type: "string", Description: "Ticker or asset name to search for", Required: true},
		{Name: "community", Type: "string", Description: "Optional community (subreddit) to restrict the search"},
		{Name: "limit", Type: "integer", Description: "Maximum posts, default 20"},
	})

	handler := func(ctx context.Context, args Args) (string, error) {
		query, err := args.RequireString("query")
		if err != nil {
			return "", err
		}
		posts, err := src.Search(ctx, query, args.String("community", ""), args.Int("limit", 20))
		if err != nil {
			return "", err
		}
		if len(posts) == 0 {
			return fmt.Sprintf("No social posts found for %q.", query), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "# Social posts for %q\n", query)
		for _, p := range posts {
			fmt.Fprintf(&sb, "- [%s] r/%s score=%d comments=%d: %s\n", p.CreatedAt, p.Community, p.Score, p.Comments, p.Title)
		}
		return sb.String(), nil
	}

	return NewFuncTool("get_social_posts", "Search recent social media discussion about an asset", schema, handler)
}
