package services

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheEntry 缓存条目
type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// FileCache 文件缓存，按 key 存储 JSON，超过 TTL 视为未命中
type FileCache struct {
	cacheDir string
	ttl      time.Duration
	mu       sync.RWMutex
}

// NewFileCache 创建文件缓存
func NewFileCache(cacheDir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{cacheDir: cacheDir, ttl: ttl}, nil
}

// cacheFilePath key 可能包含 URL 等字符，取哈希作为文件名
func (c *FileCache) cacheFilePath(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(c.cacheDir, hex.EncodeToString(sum[:])+".json")
}

// Get 读取缓存并解码到 v
func (c *FileCache) Get(key string, v any) bool {
	if c == nil || c.ttl <= 0 {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.cacheFilePath(key))
	if err != nil {
		return false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return false
	}
	if time.Since(entry.UpdatedAt) > c.ttl {
		return false
	}
	return json.Unmarshal(entry.Data, v) == nil
}

// Set 写入缓存
func (c *FileCache) Set(key string, v any) error {
	if c == nil || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cacheEntry{Data: raw, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return os.WriteFile(c.cacheFilePath(key), data, 0o644)
}
