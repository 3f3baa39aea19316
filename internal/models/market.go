package models

// KLineData K线数据
type KLineData struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// NewsItem 新闻条目
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Published string `json:"published"`
}

// SocialPost 社交平台帖子
type SocialPost struct {
	Title     string `json:"title"`
	Community string `json:"community"`
	Score     int    `json:"score"`
	Comments  int    `json:"comments"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt"`
}
