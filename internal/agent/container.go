package agent

import (
	"sync"

	"github.com/run-bigpig/tradeagents/internal/adk/tools"
	"github.com/run-bigpig/tradeagents/internal/models"
)

// ToolBinder 为分析师提供额外工具，例如 MCP 服务器的工具
type ToolBinder interface {
	ToolsFor(kind models.AnalystKind) []tools.Tool
}

// Analyst 绑定了工具的分析师
type Analyst struct {
	Spec  AnalystSpec
	Tools *tools.Toolset
}

// Container 分析师容器
type Container struct {
	analysts map[models.AnalystKind]*Analyst
	mu       sync.RWMutex
}

// NewContainer 按分析师类型构建容器，内置工具来自 registry，binders 追加外部工具
func NewContainer(kinds []models.AnalystKind, registry *tools.Registry, binders ...ToolBinder) (*Container, error) {
	c := &Container{analysts: make(map[models.AnalystKind]*Analyst, len(kinds))}
	for _, kind := range kinds {
		spec, err := LookupAnalyst(kind)
		if err != nil {
			return nil, err
		}
		ts := tools.NewToolset()
		if registry != nil {
			for _, t := range registry.GetTools(spec.Tools) {
				ts.Add(t)
			}
		}
		for _, b := range binders {
			if b == nil {
				continue
			}
			for _, t := range b.ToolsFor(kind) {
				ts.Add(t)
			}
		}
		c.analysts[kind] = &Analyst{Spec: spec, Tools: ts}
	}
	return c, nil
}

// GetAnalyst 获取指定分析师
func (c *Container) GetAnalyst(kind models.AnalystKind) (*Analyst, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.analysts[kind]
	return a, ok
}

// GetAnalysts 按给定顺序获取分析师，未加载的类型被忽略
func (c *Container) GetAnalysts(kinds []models.AnalystKind) []*Analyst {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*Analyst, 0, len(kinds))
	for _, kind := range kinds {
		if a, ok := c.analysts[kind]; ok {
			result = append(result, a)
		}
	}
	return result
}
