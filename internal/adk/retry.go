package adk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"google.golang.org/adk/model"

	"github.com/run-bigpig/tradeagents/internal/logger"
)

var log = logger.New("adk")

// 重试配置常量
const (
	RetryBaseDelay = 2 * time.Second  // 指数退避基础延迟
	RetryMaxDelay  = 15 * time.Second // 指数退避最大延迟
)

// RetryModel 传输层重试包装，带指数退避
// 只在尚未产出任何响应时重试，已经产出的流式片段不会重复
type RetryModel struct {
	inner      model.LLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var _ model.LLM = (*RetryModel)(nil)

// NewRetryModel 包装模型，maxRetries 为 0 时不重试
func NewRetryModel(inner model.LLM, maxRetries int) *RetryModel {
	return &RetryModel{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  RetryBaseDelay,
		maxDelay:   RetryMaxDelay,
	}
}

// WithBackoff 调整退避参数
func (m *RetryModel) WithBackoff(base, max time.Duration) *RetryModel {
	m.baseDelay = base
	m.maxDelay = max
	return m
}

// Name 返回内部模型名称
func (m *RetryModel) Name() string {
	return m.inner.Name()
}

// GenerateContent 实现 model.LLM 接口
func (m *RetryModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		var lastErr error
		for attempt := 0; attempt <= m.maxRetries; attempt++ {
			if attempt > 0 {
				delay := m.backoff(attempt)
				log.Warn("%s retry %d/%d after %v, last error: %v", m.inner.Name(), attempt, m.maxRetries, delay, lastErr)
				select {
				case <-ctx.Done():
					yield(nil, ctx.Err())
					return
				case <-time.After(delay):
				}
			}

			produced := false
			var err error
			for resp, e := range m.inner.GenerateContent(ctx, req, stream) {
				if e != nil {
					err = e
					break
				}
				produced = true
				if !yield(resp, nil) {
					return
				}
			}
			if err == nil {
				if attempt > 0 {
					log.Info("%s retry %d/%d succeeded", m.inner.Name(), attempt, m.maxRetries)
				}
				return
			}
			if produced || !isRetryableError(err) {
				yield(nil, err)
				return
			}
			if attempt == m.maxRetries {
				if m.maxRetries == 0 {
					yield(nil, err)
				} else {
					yield(nil, fmt.Errorf("重试 %d 次后仍失败: %w", m.maxRetries, err))
				}
				return
			}
			lastErr = err
		}
	}
}

// backoff baseDelay * 2^(attempt-1)，上限 maxDelay
func (m *RetryModel) backoff(attempt int) time.Duration {
	delay := m.baseDelay * time.Duration(1<<(attempt-1))
	if delay > m.maxDelay {
		delay = m.maxDelay
	}
	return delay
}

// isRetryableError 判断错误是否可重试
// 超时、主动取消、配置错误不重试；网络错误、API 临时错误可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "config") || strings.Contains(msg, "not found") {
		return false
	}
	return true
}
