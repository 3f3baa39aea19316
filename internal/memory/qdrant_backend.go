package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/run-bigpig/tradeagents/internal/models"
)

// QdrantBackend 基于 Qdrant gRPC 的外部向量库，每个角色一个 collection
type QdrantBackend struct {
	client    *qdrant.Client
	prefix    string
	dimension int

	mu    sync.Mutex
	ready map[string]bool
}

// QdrantOptions Qdrant 连接参数
type QdrantOptions struct {
	Host             string
	Port             int
	UseTLS           bool
	CollectionPrefix string
	Dimension        int
}

// NewQdrantBackend 连接 Qdrant
func NewQdrantBackend(opts QdrantOptions) (*QdrantBackend, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("qdrant: dimension must be > 0")
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant %s:%d: %w", opts.Host, opts.Port, err)
	}
	return &QdrantBackend{
		client:    client,
		prefix:    opts.CollectionPrefix,
		dimension: opts.Dimension,
		ready:     make(map[string]bool),
	}, nil
}

func (b *QdrantBackend) collection(namespace string) string {
	if b.prefix == "" {
		return namespace
	}
	return b.prefix + "_" + namespace
}

// ensureCollection 首次写入时创建 collection
func (b *QdrantBackend) ensureCollection(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready[name] {
		return nil
	}
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(b.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	b.ready[name] = true
	return nil
}

// Upsert 写入记录，点 ID 即记录 ID
func (b *QdrantBackend) Upsert(ctx context.Context, namespace string, rec models.MemoryRecord) error {
	name := b.collection(namespace)
	if err := b.ensureCollection(ctx, name); err != nil {
		return err
	}
	_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: toPayload(rec),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert to %s: %w", name, err)
	}
	return nil
}

// Query 检索分区内最相似的 k 条记录
func (b *QdrantBackend) Query(ctx context.Context, namespace string, vec []float32, k int) ([]models.ScoredRecord, error) {
	name := b.collection(namespace)
	exists, err := b.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		return nil, nil
	}
	points, err := b.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	out := make([]models.ScoredRecord, 0, len(points))
	for _, p := range points {
		out = append(out, models.ScoredRecord{
			MemoryRecord: fromPayload(p.Payload),
			Similarity:   p.Score,
		})
	}
	return out, nil
}

// Close 关闭 gRPC 连接
func (b *QdrantBackend) Close() error {
	return b.client.Close()
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func toPayload(rec models.MemoryRecord) map[string]*qdrant.Value {
	return map[string]*qdrant.Value{
		"id":          stringValue(rec.ID),
		metaRole:      stringValue(string(rec.Role)),
		"situation":   stringValue(rec.Situation),
		metaLesson:    stringValue(rec.Lesson),
		metaOutcome:   {Kind: &qdrant.Value_DoubleValue{DoubleValue: rec.OutcomeScore}},
		metaSymbol:    stringValue(rec.Symbol),
		metaDate:      stringValue(rec.Date),
		metaCreatedAt: stringValue(rec.CreatedAt.UTC().Format(time.RFC3339Nano)),
	}
}

func fromPayload(payload map[string]*qdrant.Value) models.MemoryRecord {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	rec := models.MemoryRecord{
		ID:        str("id"),
		Role:      models.Role(str(metaRole)),
		Situation: str("situation"),
		Lesson:    str(metaLesson),
		Symbol:    str(metaSymbol),
		Date:      str(metaDate),
	}
	if v, ok := payload[metaOutcome]; ok {
		rec.OutcomeScore = v.GetDoubleValue()
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, str(metaCreatedAt))
	return rec
}
