package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/run-bigpig/tradeagents/internal/logger"
	"github.com/run-bigpig/tradeagents/internal/models"
)

var log = logger.New("memory")

// ErrEmptyQuery 检索或写入的文本为空
var ErrEmptyQuery = errors.New("empty memory text")

// Store 按角色分区的记忆存储
// 记录写入后不可修改，每次反思都新建记录
type Store struct {
	embedder Embedder
	backend  Backend
	now      func() time.Time
}

// NewStore 创建记忆存储
func NewStore(embedder Embedder, backend Backend) *Store {
	return &Store{embedder: embedder, backend: backend, now: time.Now}
}

// Entry 待写入的反思
type Entry struct {
	Role         models.Role
	Situation    string
	Lesson       string
	OutcomeScore float64
	Symbol       string
	Date         string
}

// Add 写入一条新记录
func (s *Store) Add(ctx context.Context, e Entry) (*models.MemoryRecord, error) {
	if !e.Role.IsMemoryRole() {
		return nil, fmt.Errorf("%w: %s has no memory partition", models.ErrUnknownRole, e.Role)
	}
	if strings.TrimSpace(e.Situation) == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := s.embedder.Embed(ctx, e.Situation)
	if err != nil {
		return nil, fmt.Errorf("embed situation: %w", err)
	}

	rec := models.MemoryRecord{
		ID:           uuid.NewString(),
		Role:         e.Role,
		Embedding:    vec,
		Situation:    e.Situation,
		Lesson:       e.Lesson,
		OutcomeScore: e.OutcomeScore,
		Symbol:       e.Symbol,
		Date:         e.Date,
		CreatedAt:    s.now(),
	}
	if err := s.backend.Upsert(ctx, string(e.Role), rec); err != nil {
		return nil, err
	}
	log.Debug("memory record %s written for %s, outcome %+.2f", rec.ID, rec.Role, rec.OutcomeScore)
	return &rec, nil
}

// Retrieve 在角色分区内检索最相似的 k 条记录
func (s *Store) Retrieve(ctx context.Context, role models.Role, query string, k int) ([]models.ScoredRecord, error) {
	if !role.IsMemoryRole() {
		return nil, fmt.Errorf("%w: %s has no memory partition", models.ErrUnknownRole, role)
	}
	if k <= 0 {
		return nil, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	records, err := s.backend.Query(ctx, string(role), vec, k)
	if err != nil {
		return nil, err
	}
	log.Debug("memory retrieve %s: %d/%d records", role, len(records), k)
	return records, nil
}

// Lessons 检索并只返回经验文本
func (s *Store) Lessons(ctx context.Context, role models.Role, query string, k int) ([]string, error) {
	records, err := s.Retrieve(ctx, role, query, k)
	if err != nil {
		return nil, err
	}
	lessons := make([]string, 0, len(records))
	for _, r := range records {
		lessons = append(lessons, r.Lesson)
	}
	return lessons, nil
}

// Close 释放后端
func (s *Store) Close() error {
	return s.backend.Close()
}
