package memory

import (
	"context"
	"fmt"

	"github.com/run-bigpig/tradeagents/internal/config"
)

// Open 按配置创建记忆存储
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(cfg, embedder)
	if err != nil {
		return nil, err
	}
	log.Info("memory store ready: backend=%s embedder=%s", cfg.Memory.Backend, cfg.Memory.Embedder)
	return NewStore(embedder, backend), nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (Embedder, error) {
	m := cfg.Memory
	switch m.Embedder {
	case config.EmbedderOpenAI:
		return NewOpenAIEmbedder(cfg.LLM.BaseURL, cfg.LLM.APIKey, m.EmbeddingModel, m.Dimension), nil
	case config.EmbedderGemini:
		return NewGeminiEmbedder(ctx, cfg.LLM.BaseURL, cfg.LLM.APIKey, m.EmbeddingModel, m.Dimension)
	case config.EmbedderHash:
		return NewHashEmbedder(m.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", config.ErrInvalidConfig, m.Embedder)
	}
}

func newBackend(cfg *config.Config, embedder Embedder) (Backend, error) {
	m := cfg.Memory
	switch m.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendChromem:
		return NewChromemBackend(m.Path, embedder)
	case config.BackendQdrant:
		return NewQdrantBackend(QdrantOptions{
			Host:             m.Qdrant.Host,
			Port:             m.Qdrant.Port,
			UseTLS:           m.Qdrant.UseTLS,
			CollectionPrefix: m.Qdrant.CollectionPrefix,
			Dimension:        embedder.Dimension(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown memory backend %q", config.ErrInvalidConfig, m.Backend)
	}
}
