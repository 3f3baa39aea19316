package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// Backend 相似度索引
// namespace 即角色分区，不同分区的记录互不可见
type Backend interface {
	Upsert(ctx context.Context, namespace string, rec models.MemoryRecord) error
	Query(ctx context.Context, namespace string, vec []float32, k int) ([]models.ScoredRecord, error)
	Close() error
}

// MemoryBackend 进程内暴力检索，每个分区一把读写锁
type MemoryBackend struct {
	mu    sync.Mutex
	parts map[string]*partition
}

type partition struct {
	mu      sync.RWMutex
	records []models.MemoryRecord
}

// NewMemoryBackend 创建进程内后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{parts: make(map[string]*partition)}
}

func (b *MemoryBackend) partition(namespace string) *partition {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.parts[namespace]
	if !ok {
		p = &partition{}
		b.parts[namespace] = p
	}
	return p
}

// Upsert 追加记录
func (b *MemoryBackend) Upsert(_ context.Context, namespace string, rec models.MemoryRecord) error {
	p := b.partition(namespace)
	rec.Embedding = slices.Clone(rec.Embedding)
	p.mu.Lock()
	p.records = append(p.records, rec)
	p.mu.Unlock()
	return nil
}

// Query 返回分区内最相似的 k 条记录
func (b *MemoryBackend) Query(_ context.Context, namespace string, vec []float32, k int) ([]models.ScoredRecord, error) {
	p := b.partition(namespace)
	p.mu.RLock()
	scored := make([]models.ScoredRecord, 0, len(p.records))
	for _, rec := range p.records {
		scored = append(scored, models.ScoredRecord{MemoryRecord: rec, Similarity: cosine(vec, rec.Embedding)})
	}
	p.mu.RUnlock()

	slices.SortStableFunc(scored, func(a, b models.ScoredRecord) int {
		switch {
		case a.Similarity > b.Similarity:
			return -1
		case a.Similarity < b.Similarity:
			return 1
		default:
			return 0
		}
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Close 无需释放资源
func (b *MemoryBackend) Close() error { return nil }
