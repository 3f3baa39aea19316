// Package metrics 流水线 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tradeagents"

// Metrics 流水线计数器，每个实例使用独立的 Registry
// nil 接收者上的调用均为空操作
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	signals       *prometheus.CounterVec
	modelCalls    *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	debateTurns   *prometheus.CounterVec
	reflections   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// New 创建并注册全部指标
func New() *Metrics {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		runs:        counter("runs_total", "Pipeline runs by final status", "status"),
		signals:     counter("signals_total", "Extracted trading signals", "signal"),
		modelCalls:  counter("model_calls_total", "Model invocations by tier", "tier"),
		toolCalls:   counter("tool_calls_total", "Tool invocations by result", "status"),
		debateTurns: counter("debate_turns_total", "Debate turns by debate", "debate"),
		reflections: counter("reflections_total", "Memory records written by role", "role"),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.runs, m.signals, m.modelCalls, m.toolCalls, m.debateTurns, m.reflections, m.stageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RunFinished(status string) {
	if m != nil {
		m.runs.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Signal(signal string) {
	if m != nil {
		m.signals.WithLabelValues(signal).Inc()
	}
}

func (m *Metrics) ModelCall(tier string) {
	if m != nil {
		m.modelCalls.WithLabelValues(tier).Inc()
	}
}

// ToolCall 记录工具调用，err 非空记为 error
func (m *Metrics) ToolCall(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.toolCalls.WithLabelValues(status).Inc()
}

func (m *Metrics) DebateTurn(debate string) {
	if m != nil {
		m.debateTurns.WithLabelValues(debate).Inc()
	}
}

func (m *Metrics) Reflection(role string) {
	if m != nil {
		m.reflections.WithLabelValues(role).Inc()
	}
}

// StageDuration 记录阶段耗时（秒）
func (m *Metrics) StageDuration(stage string, seconds float64) {
	if m != nil {
		m.stageDuration.WithLabelValues(stage).Observe(seconds)
	}
}
