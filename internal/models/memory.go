package models

import "time"

// MemoryRecord 反思记录，写入后不可修改
type MemoryRecord struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Embedding    []float32 `json:"-"`
	Situation    string    `json:"situation"`
	Lesson       string    `json:"lesson"`
	OutcomeScore float64   `json:"outcomeScore"`
	Symbol       string    `json:"symbol,omitempty"`
	Date         string    `json:"date,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScoredRecord 带相似度的检索结果
type ScoredRecord struct {
	MemoryRecord
	Similarity float32 `json:"similarity"`
}
