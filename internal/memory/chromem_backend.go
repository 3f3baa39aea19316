package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// 元数据键
const (
	metaRole      = "role"
	metaLesson    = "lesson"
	metaOutcome   = "outcome"
	metaSymbol    = "symbol"
	metaDate      = "date"
	metaCreatedAt = "created_at"
)

// ChromemBackend 基于 chromem-go 的嵌入式向量库，每个角色一个 collection
type ChromemBackend struct {
	db       *chromem.DB
	embedder Embedder
}

// NewChromemBackend 创建 chromem 后端，path 为空时只在内存中保存
func NewChromemBackend(path string, embedder Embedder) (*ChromemBackend, error) {
	if path == "" {
		return &ChromemBackend{db: chromem.NewDB(), embedder: embedder}, nil
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db %s: %w", path, err)
	}
	return &ChromemBackend{db: db, embedder: embedder}, nil
}

func (b *ChromemBackend) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return b.embedder.Embed(ctx, text)
	}
}

func collectionName(namespace string) string {
	return "memory_" + namespace
}

// Upsert 写入记录
func (b *ChromemBackend) Upsert(ctx context.Context, namespace string, rec models.MemoryRecord) error {
	col, err := b.db.GetOrCreateCollection(collectionName(namespace), nil, b.embeddingFunc())
	if err != nil {
		return fmt.Errorf("get collection %s: %w", namespace, err)
	}
	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Situation,
		Embedding: rec.Embedding,
		Metadata: map[string]string{
			metaRole:      string(rec.Role),
			metaLesson:    rec.Lesson,
			metaOutcome:   strconv.FormatFloat(rec.OutcomeScore, 'f', -1, 64),
			metaSymbol:    rec.Symbol,
			metaDate:      rec.Date,
			metaCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document to %s: %w", namespace, err)
	}
	return nil
}

// Query 检索分区内最相似的 k 条记录
func (b *ChromemBackend) Query(ctx context.Context, namespace string, vec []float32, k int) ([]models.ScoredRecord, error) {
	col := b.db.GetCollection(collectionName(namespace), b.embeddingFunc())
	if col == nil {
		return nil, nil
	}
	// chromem 要求 nResults 不超过文档数
	n := min(k, col.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := col.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", namespace, err)
	}

	out := make([]models.ScoredRecord, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredRecord{
			MemoryRecord: recordFromMetadata(r.ID, r.Content, r.Metadata),
			Similarity:   r.Similarity,
		})
	}
	return out, nil
}

func recordFromMetadata(id, situation string, meta map[string]string) models.MemoryRecord {
	rec := models.MemoryRecord{
		ID:        id,
		Role:      models.Role(meta[metaRole]),
		Situation: situation,
		Lesson:    meta[metaLesson],
		Symbol:    meta[metaSymbol],
		Date:      meta[metaDate],
	}
	rec.OutcomeScore, _ = strconv.ParseFloat(meta[metaOutcome], 64)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta[metaCreatedAt])
	return rec
}

// Close chromem 持久化为逐条写入，无需关闭
func (b *ChromemBackend) Close() error { return nil }
