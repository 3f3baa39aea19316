// Package mcp 把 MCP (Model Context Protocol) 服务器的工具接入分析师工具集
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"

	"github.com/run-bigpig/tradeagents/internal/adk/tools"
	"github.com/run-bigpig/tradeagents/internal/logger"
	"github.com/run-bigpig/tradeagents/internal/models"
)

var log = logger.New("mcp")

// ConnectTimeout 连接并列出工具的最大时长
const ConnectTimeout = 15 * time.Second

// ServerStatus MCP 服务器状态
type ServerStatus struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
	Tools     int    `json:"tools"`
	Error     string `json:"error,omitempty"`
}

// server 已连接的服务器
type server struct {
	cfg     *models.MCPServerConfig
	session *mcp.ClientSession
	tools   []tools.Tool
}

// Manager MCP 服务管理器
type Manager struct {
	mu      sync.RWMutex
	servers map[string]*server
	status  map[string]*ServerStatus
}

// NewManager 创建 MCP 管理器
func NewManager() *Manager {
	return &Manager{
		servers: make(map[string]*server),
		status:  make(map[string]*ServerStatus),
	}
}

// LoadConfigs 连接全部启用的服务器
// 单个服务器连接失败只记录状态，不影响其他服务器
func (m *Manager) LoadConfigs(ctx context.Context, configs []models.MCPServerConfig) {
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled {
			continue
		}
		st := &ServerStatus{ID: cfg.ID}
		srv, err := connect(ctx, cfg)
		if err != nil {
			log.Warn("mcp server %s unavailable: %v", cfg.ID, err)
			st.Error = err.Error()
		} else {
			st.Connected = true
			st.Tools = len(srv.tools)
			log.Info("mcp server %s connected, %d tools", cfg.ID, len(srv.tools))
		}

		m.mu.Lock()
		if srv != nil {
			m.servers[cfg.ID] = srv
		}
		m.status[cfg.ID] = st
		m.mu.Unlock()
	}
}

// createTransport 根据配置创建 MCP 传输层
func createTransport(cfg *models.MCPServerConfig) mcp.Transport {
	switch cfg.TransportType {
	case models.MCPTransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.Endpoint}
	case models.MCPTransportCommand:
		return &mcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}
	default: // http
		return &mcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	}
}

func connect(ctx context.Context, cfg *models.MCPServerConfig) (*server, error) {
	return connectTransport(ctx, cfg, createTransport(cfg))
}

func connectTransport(ctx context.Context, cfg *models.MCPServerConfig, transport mcp.Transport) (*server, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	client := mcp.NewClient(&mcp.Implementation{Name: name, Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	resp, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("list tools: %w", err)
	}

	srv := &server{cfg: cfg, session: session}
	for _, t := range resp.Tools {
		if len(cfg.ToolFilter) > 0 && !slices.Contains(cfg.ToolFilter, t.Name) {
			continue
		}
		schema, err := toJSONSchema(t.InputSchema)
		if err != nil {
			log.Warn("mcp tool %s/%s has unusable schema: %v", cfg.ID, t.Name, err)
			continue
		}
		srv.tools = append(srv.tools, &remoteTool{
			session:     session,
			serverID:    cfg.ID,
			name:        t.Name,
			description: t.Description,
			schema:      schema,
		})
	}
	return srv, nil
}

// toJSONSchema 将服务器给出的输入 schema 规整为 map
func toJSONSchema(v any) (map[string]any, error) {
	if v == nil {
		return tools.ObjectSchema(nil), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	if schema == nil {
		return tools.ObjectSchema(nil), nil
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return schema, nil
}

// ToolsFor 获取绑定到指定分析师的 MCP 工具
// 服务器未指定 analysts 时绑定到全部分析师
func (m *Manager) ToolsFor(kind models.AnalystKind) []tools.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.servers))
	for id := range m.servers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var result []tools.Tool
	for _, id := range ids {
		srv := m.servers[id]
		if !bindsTo(srv.cfg, kind) {
			continue
		}
		result = append(result, srv.tools...)
	}
	return result
}

func bindsTo(cfg *models.MCPServerConfig, kind models.AnalystKind) bool {
	if len(cfg.Analysts) == 0 {
		return true
	}
	for _, a := range cfg.Analysts {
		if models.AnalystKind(strings.ToLower(a)) == kind {
			return true
		}
	}
	return false
}

// GetAllStatus 获取所有服务器状态
func (m *Manager) GetAllStatus() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ServerStatus, 0, len(m.status))
	for _, st := range m.status {
		result = append(result, *st)
	}
	slices.SortFunc(result, func(a, b ServerStatus) int { return strings.Compare(a.ID, b.ID) })
	return result
}

// Close 关闭全部会话
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for id, srv := range m.servers {
		if err := srv.session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
	}
	m.servers = make(map[string]*server)
	return errors.Join(errs...)
}

// remoteTool 通过 MCP 会话执行的工具
type remoteTool struct {
	session     *mcp.ClientSession
	serverID    string
	name        string
	description string
	schema      map[string]any
}

func (t *remoteTool) Name() string        { return t.name }
func (t *remoteTool) Description() string { return t.description }

func (t *remoteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:                 t.name,
		Description:          t.description,
		ParametersJsonSchema: t.schema,
	}
}

// Run 调用远端工具，IsError 的结果作为错误返回
func (t *remoteTool) Run(ctx context.Context, args map[string]any) (string, error) {
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{Name: t.name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("mcp %s/%s: %w", t.serverID, t.name, err)
	}

	var parts []string
	for _, c := range res.Content {
		switch v := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			raw, err := json.Marshal(v)
			if err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", fmt.Errorf("mcp %s/%s: %s", t.serverID, t.name, text)
	}
	return text, nil
}
