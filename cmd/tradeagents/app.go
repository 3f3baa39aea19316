package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/adk/model"

	"github.com/run-bigpig/tradeagents/internal/adk"
	"github.com/run-bigpig/tradeagents/internal/adk/mcp"
	"github.com/run-bigpig/tradeagents/internal/adk/tools"
	"github.com/run-bigpig/tradeagents/internal/agent"
	"github.com/run-bigpig/tradeagents/internal/config"
	"github.com/run-bigpig/tradeagents/internal/memory"
	"github.com/run-bigpig/tradeagents/internal/metrics"
	"github.com/run-bigpig/tradeagents/internal/pipeline"
	"github.com/run-bigpig/tradeagents/internal/services"
)

// ModelCreationTimeout 模型创建的最大时长
const ModelCreationTimeout = 10 * time.Second

// app 一次命令执行所需的全部组件
type app struct {
	cfg          *config.Config
	orchestrator *pipeline.Orchestrator
	store        *memory.Store
	mcp          *mcp.Manager
	metrics      *metrics.Metrics
	server       *http.Server
}

// appOptions 组装选项
type appOptions struct {
	connectMCP  bool
	metricsAddr string
	progress    pipeline.ProgressCallback
}

// newApp 按配置组装流水线
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	registry, err := newToolRegistry(cfg)
	if err != nil {
		return nil, err
	}

	kinds, err := cfg.AnalystKinds()
	if err != nil {
		return nil, err
	}
	var binders []agent.ToolBinder
	if opts.connectMCP && len(cfg.MCP.Servers) > 0 {
		a.mcp = mcp.NewManager()
		a.mcp.LoadConfigs(ctx, cfg.MCP.Servers)
		for _, st := range a.mcp.GetAllStatus() {
			if !st.Connected {
				log.Warn("mcp server %s skipped: %s", st.ID, st.Error)
			}
		}
		binders = append(binders, a.mcp)
	}
	container, err := agent.NewContainer(kinds, registry, binders...)
	if err != nil {
		a.close()
		return nil, err
	}

	modelCtx, cancel := context.WithTimeout(ctx, ModelCreationTimeout)
	tiers, err := adk.NewModelFactory(cfg.LLM.MaxRetries).CreateTiers(modelCtx, cfg.QuickModel(), cfg.DeepModel())
	cancel()
	if err != nil {
		a.close()
		return nil, err
	}

	deps := pipeline.Deps{
		Tiers:     tiers,
		Container: container,
		Analysts:  kinds,
		Metrics:   a.metrics,
		Progress:  opts.progress,
	}
	if cfg.Memory.Enabled {
		store, err := memory.Open(ctx, cfg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open memory: %w", err)
		}
		a.store = store
		var lessonLLM model.LLM
		if cfg.Memory.ReflectWithLLM {
			lessonLLM = tiers.Deep
		}
		deps.Memory = store
		deps.Reflector = memory.NewReflector(store, lessonLLM)
	}

	a.orchestrator, err = pipeline.New(pipeline.OptionsFromConfig(cfg), deps)
	if err != nil {
		a.close()
		return nil, err
	}

	addr := opts.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		if err := a.serveMetrics(addr); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

// newToolRegistry 注册内置数据工具
func newToolRegistry(cfg *config.Config) (*tools.Registry, error) {
	cache, err := services.NewFileCache(cfg.Data.CacheDir, cfg.Data.CacheTTL)
	if err != nil {
		log.Warn("file cache disabled: %v", err)
		cache = nil
	}
	registry := tools.NewRegistry()
	err = registry.Register(
		tools.NewKLineTool(services.NewMarketService(cfg.Data.MarketBaseURL, cfg.Data.HTTPTimeout, cache)),
		tools.NewNewsTool(services.NewNewsService(cfg.Data.NewsFeedURL, cfg.Data.HTTPTimeout, cache)),
		tools.NewSocialTool(services.NewSocialService(cfg.Data.SocialBaseURL, cfg.Data.HTTPTimeout, cache)),
	)
	if err != nil {
		return nil, err
	}
	return registry, nil
}

// serveMetrics 启动 /metrics 端点
func (a *app) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server: %v", err)
		}
	}()
	log.Info("metrics listening on %s", ln.Addr())
	return nil
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	if a.mcp != nil {
		if err := a.mcp.Close(); err != nil {
			log.Warn("close mcp: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn("close memory: %v", err)
		}
	}
}
