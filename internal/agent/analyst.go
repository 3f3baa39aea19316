package agent

import (
	"fmt"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// AnalystSpec 分析师定义
type AnalystSpec struct {
	Kind        models.AnalystKind
	Name        string
	Focus       string
	ReportTitle string
	Tools       []string // 默认绑定的内置工具
}

// analystSpecs 静态注册表，键覆盖 models.AllAnalystKinds 的全部取值
var analystSpecs = map[models.AnalystKind]AnalystSpec{
	models.AnalystMarket: {
		Kind:        models.AnalystMarket,
		Name:        "Market Analyst",
		ReportTitle: "Market Analysis",
		Focus: "price action and technicals. Pull recent candles, describe trend, momentum, volatility and " +
			"support/resistance levels, and note the volume profile behind recent moves.",
		Tools: []string{"get_kline_data"},
	},
	models.AnalystSocial: {
		Kind:        models.AnalystSocial,
		Name:        "Social Media Analyst",
		ReportTitle: "Sentiment Analysis",
		Focus: "public sentiment. Read recent social discussion, gauge the crowd's mood and how it shifted over " +
			"the past week, and flag hype or capitulation that could precede a reversal.",
		Tools: []string{"get_social_posts", "get_news"},
	},
	models.AnalystNews: {
		Kind:        models.AnalystNews,
		Name:        "News Analyst",
		ReportTitle: "News Analysis",
		Focus: "news flow. Collect headlines about the asset and its sector from the past week and explain which " +
			"ones are likely to move the price and in which direction.",
		Tools: []string{"get_news"},
	},
	models.AnalystFundamentals: {
		Kind:        models.AnalystFundamentals,
		Name:        "Fundamentals Analyst",
		ReportTitle: "Fundamentals Analysis",
		Focus: "fundamentals as reported in the news. Search headlines for earnings, revenue, guidance, tokenomics " +
			"or supply changes, check how the price reacted in recent candles, and summarise the intrinsic case " +
			"for or against the asset. Say so when the headlines carry no fundamental data.",
		Tools: []string{"get_news", "get_kline_data"},
	},
	models.AnalystMacro: {
		Kind:        models.AnalystMacro,
		Name:        "Macro Analyst",
		ReportTitle: "Macro Analysis",
		Focus: "the macro backdrop as reported in the news. Search headlines on rates, inflation, central banks, " +
			"the dollar and risk appetite, and explain how the regime they describe tends to treat this asset.",
		Tools: []string{"get_news"},
	},
	models.AnalystOnChain: {
		Kind:        models.AnalystOnChain,
		Name:        "On-Chain Analyst",
		ReportTitle: "On-Chain Analysis",
		Focus: "on-chain and flow signals. Use on-chain tools when they are listed below; otherwise infer flows from " +
			"volume in recent candles and from headlines on exchange flows, ETF flows and large holders. " +
			"Net outflows and accumulation are bullish, net inflows and distribution bearish. Never invent figures " +
			"that no tool returned.",
		Tools: []string{"get_kline_data", "get_news"},
	},
}

// LookupAnalyst 获取分析师定义
func LookupAnalyst(kind models.AnalystKind) (AnalystSpec, error) {
	spec, ok := analystSpecs[kind]
	if !ok {
		return AnalystSpec{}, fmt.Errorf("%w: analyst %q", models.ErrUnknownRole, kind)
	}
	return spec, nil
}
