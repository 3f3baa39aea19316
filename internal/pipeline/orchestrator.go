// Package pipeline 交易建议流水线：分析师、多空辩论、交易员、风险辩论与信号提取
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/run-bigpig/tradeagents/internal/adk"
	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/config"
	"github.com/run-bigpig/tradeagents/internal/logger"
	"github.com/run-bigpig/tradeagents/internal/metrics"
	"github.com/run-bigpig/tradeagents/internal/models"
	"github.com/run-bigpig/tradeagents/internal/signal"
)

var log = logger.New("pipeline")

// 阶段名称
const (
	StageAnalysts = "analysts"
	StageResearch = "research"
	StageTrader   = "trader"
	StageRisk     = "risk"
)

// 错误定义
var (
	ErrRunTimeout      = errors.New("运行超时，已返回部分结果")
	ErrInvalidInput    = errors.New("symbol and date are required")
	ErrNoModel         = errors.New("quick and deep models are required")
	ErrNoAnalysts      = errors.New("没有可用的分析师")
	ErrMemoryDisabled  = errors.New("memory is disabled")
	ErrNoFinalDecision = errors.New("risk judge produced no decision")
)

// StageError 阶段失败，Role 为出错的角色
type StageError struct {
	Stage string
	Role  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s (%s): %v", e.Stage, e.Role, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type    string `json:"type"`  // stage_start/stage_done/agent_start/agent_delta/agent_done/tool_call/tool_result/agent_error
	Stage   string `json:"stage"` // 当前阶段
	Role    string `json:"role"`  // 当前角色或分析师
	Detail  string `json:"detail,omitempty"`
	Content string `json:"content,omitempty"`
}

// ProgressCallback 进度回调，并行分析师模式下会被并发调用
type ProgressCallback func(event ProgressEvent)

// LessonSource 按角色检索历史经验
type LessonSource interface {
	Lessons(ctx context.Context, role models.Role, query string, k int) ([]string, error)
}

// Reflector 事后反思写入
type Reflector interface {
	Reflect(ctx context.Context, state *models.RunState, outcome float64) ([]models.MemoryRecord, error)
}

// Options 流水线上限与超时
type Options struct {
	MaxDebateRounds      int
	MaxRiskDiscussRounds int
	MaxToolIterations    int
	ToolTimeout          time.Duration
	CallTimeout          time.Duration
	RunTimeout           time.Duration
	ParallelAnalysts     bool
	MemoryTopK           int
	Temperature          float64
	Stream               bool // 流式调用模型，增量文本以 agent_delta 事件发出
}

// OptionsFromConfig 从配置中取出流水线参数
func OptionsFromConfig(cfg *config.Config) Options {
	p := cfg.Pipeline
	return Options{
		MaxDebateRounds:      p.MaxDebateRounds,
		MaxRiskDiscussRounds: p.MaxRiskDiscussRounds,
		MaxToolIterations:    p.MaxToolIterations,
		ToolTimeout:          p.ToolTimeout,
		CallTimeout:          cfg.LLM.CallTimeout,
		RunTimeout:           p.RunTimeout,
		ParallelAnalysts:     p.ParallelAnalysts,
		MemoryTopK:           p.MemoryTopK,
		Temperature:          cfg.LLM.Temperature,
		Stream:               cfg.LLM.Stream,
	}
}

// Deps 编排器依赖，Memory/Reflector/Metrics/Progress 可为空
type Deps struct {
	Tiers     *adk.Tiers
	Container *agent.Container
	Analysts  []models.AnalystKind
	Memory    LessonSource
	Reflector Reflector
	Metrics   *metrics.Metrics
	Progress  ProgressCallback
}

// Orchestrator 流水线编排器
// 不持有单次运行的可变状态，可被多个运行并发使用
type Orchestrator struct {
	opts      Options
	tiers     *adk.Tiers
	container *agent.Container
	analysts  []models.AnalystKind
	memory    LessonSource
	reflector Reflector
	metrics   *metrics.Metrics
	progress  ProgressCallback
}

// New 创建编排器
func New(opts Options, deps Deps) (*Orchestrator, error) {
	if deps.Tiers == nil || deps.Tiers.Quick == nil || deps.Tiers.Deep == nil {
		return nil, ErrNoModel
	}
	if deps.Container == nil || len(deps.Analysts) == 0 {
		return nil, ErrNoAnalysts
	}
	if opts.MaxToolIterations < 1 {
		opts.MaxToolIterations = 1
	}
	return &Orchestrator{
		opts:      opts,
		tiers:     deps.Tiers,
		container: deps.Container,
		analysts:  append([]models.AnalystKind(nil), deps.Analysts...),
		memory:    deps.Memory,
		reflector: deps.Reflector,
		metrics:   deps.Metrics,
		progress:  deps.Progress,
	}, nil
}

type stage struct {
	name string
	run  func(ctx context.Context, state *models.RunState) error
}

// Run 执行一次完整运行，返回最终状态与信号
// 任一阶段失败时返回已完成的部分状态，状态中带有失败阶段与错误
func (o *Orchestrator) Run(ctx context.Context, symbol, date string) (*models.RunState, string, error) {
	symbol, date = strings.TrimSpace(symbol), strings.TrimSpace(date)
	if symbol == "" || date == "" {
		return nil, "", ErrInvalidInput
	}

	runCtx := ctx
	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	state := models.NewRunState(uuid.NewString(), symbol, date, o.analysts)
	log.Info("run %s started: %s @ %s, analysts=%v", state.RunID, symbol, date, o.analysts)

	stages := []stage{
		{StageAnalysts, o.runAnalysts},
		{StageResearch, o.runResearch},
		{StageTrader, o.runTrader},
		{StageRisk, o.runRisk},
	}
	for _, st := range stages {
		start := time.Now()
		o.emit(ProgressEvent{Type: "stage_start", Stage: st.name})
		err := st.run(runCtx, state)
		o.metrics.StageDuration(st.name, time.Since(start).Seconds())
		if err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				err = fmt.Errorf("%w: %w", ErrRunTimeout, err)
			}
			return o.fail(state, st.name, err)
		}
		o.emit(ProgressEvent{Type: "stage_done", Stage: st.name})
		log.Info("run %s: stage %s done in %s", state.RunID, st.name, time.Since(start).Round(time.Millisecond))
	}

	if strings.TrimSpace(state.FinalDecision) == "" {
		return o.fail(state, StageRisk, ErrNoFinalDecision)
	}
	sig := signal.Process(state.FinalDecision)
	state.Complete(sig)
	o.metrics.Signal(sig)
	o.metrics.RunFinished(string(models.StatusCompleted))
	log.Info("run %s completed: %s %s -> %s", state.RunID, symbol, date, sig)
	return state, sig, nil
}

func (o *Orchestrator) fail(state *models.RunState, stageName string, err error) (*models.RunState, string, error) {
	var se *StageError
	if !errors.As(err, &se) {
		err = &StageError{Stage: stageName, Err: err}
	}
	state.Fail(stageName, err)
	o.metrics.RunFinished(string(models.StatusFailed))
	log.Error("run %s failed at %s: %v", state.RunID, stageName, err)
	return state, "", err
}

// Reflect 根据真实收益写入反思记录
func (o *Orchestrator) Reflect(ctx context.Context, state *models.RunState, outcome float64) ([]models.MemoryRecord, error) {
	if o.reflector == nil {
		return nil, ErrMemoryDisabled
	}
	records, err := o.reflector.Reflect(ctx, state, outcome)
	for _, rec := range records {
		o.metrics.Reflection(string(rec.Role))
	}
	if err != nil {
		log.Warn("reflect %s: %d records written, %v", state.RunID, len(records), err)
		return records, err
	}
	log.Info("reflect %s: %d records written, outcome %+.2f", state.RunID, len(records), outcome)
	return records, nil
}

func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.progress != nil {
		o.progress(ev)
	}
}
