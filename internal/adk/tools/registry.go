package tools

import (
	"fmt"
	"sort"
	"sync"

	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/logger"
)

var log = logger.New("tools")

// Registry 工具注册表
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register 注册工具，重名时返回错误
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		if _, ok := r.tools[t.Name()]; ok {
			return fmt.Errorf("tool %s already registered", t.Name())
		}
		r.tools[t.Name()] = t
	}
	return nil
}

// Get 获取工具
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// GetTools 按名称获取工具，未注册的名称被忽略并记录警告
func (r *Registry) GetTools(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			log.Warn("tool %s not registered, skipped", name)
			continue
		}
		result = append(result, t)
	}
	return result
}

// Names 返回全部已注册的工具名
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Toolset 绑定到某个角色的一组工具
type Toolset struct {
	byName map[string]Tool
	order  []Tool
}

// NewToolset 创建工具集，重名工具保留第一个
func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		ts.Add(t)
	}
	return ts
}

// Add 追加工具
func (ts *Toolset) Add(t Tool) {
	if _, ok := ts.byName[t.Name()]; ok {
		return
	}
	ts.byName[t.Name()] = t
	ts.order = append(ts.order, t)
}

// Len 工具数量
func (ts *Toolset) Len() int {
	if ts == nil {
		return 0
	}
	return len(ts.order)
}

// Tools 按添加顺序返回工具
func (ts *Toolset) Tools() []Tool {
	if ts == nil {
		return nil
	}
	return ts.order
}

// Lookup 按名称查找
func (ts *Toolset) Lookup(name string) (Tool, error) {
	if ts != nil {
		if t, ok := ts.byName[name]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// GenaiTools 转换为请求中的工具声明
func (ts *Toolset) GenaiTools() []*genai.Tool {
	if ts.Len() == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(ts.order))
	for _, t := range ts.order {
		decls = append(decls, t.Declaration())
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
