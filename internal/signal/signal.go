// Package signal 从最终决策文本中提取交易信号
package signal

import (
	"regexp"
	"strings"
)

// 交易信号
const (
	Buy  = "BUY"
	Sell = "SELL"
	Hold = "HOLD"
)

// Default 文本中找不到信号时的默认值
const Default = Hold

var (
	markerPattern = regexp.MustCompile(`(?i)FINAL\s+TRANSACTION\s+PROPOSAL\s*:\s*[*_\s]*(BUY|SELL|HOLD)\b`)
	tokenPattern  = regexp.MustCompile(`(?i)\b(BUY|SELL|HOLD)\b`)
)

// Process 提取信号
// 优先取最后一个显式标记，其次取最后出现的动作词，均无时返回 Default
// 与其他词用连字符相连的动作词（buy-side、sell-off）不计入
func Process(text string) string {
	if sig, ok := lastStandalone(text, markerPattern); ok {
		return sig
	}
	if sig, ok := lastStandalone(text, tokenPattern); ok {
		return sig
	}
	return Default
}

// lastStandalone 返回最后一个独立动作词，第一个捕获组为动作词
func lastStandalone(text string, re *regexp.Regexp) (string, bool) {
	matches := re.FindAllStringSubmatchIndex(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][2], matches[i][3]
		if hyphenated(text, start, end) {
			continue
		}
		return strings.ToUpper(text[start:end]), true
	}
	return "", false
}

func hyphenated(text string, start, end int) bool {
	return (start > 0 && text[start-1] == '-') || (end < len(text) && text[end] == '-')
}

// Valid 是否为合法信号
func Valid(s string) bool {
	switch s {
	case Buy, Sell, Hold:
		return true
	default:
		return false
	}
}
