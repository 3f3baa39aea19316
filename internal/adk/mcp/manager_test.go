package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/run-bigpig/tradeagents/internal/models"
)

type fundingInput struct {
	Symbol string `json:"symbol" jsonschema:"perpetual symbol"`
}

func startServer(t *testing.T) mcp.Transport {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "onchain", Version: "test"}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_funding_rate",
		Description: "Current perpetual funding rate",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in fundingInput) (*mcp.CallToolResult, any, error) {
		if in.Symbol == "" {
			return nil, nil, errors.New("symbol required")
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: in.Symbol + " funding 0.01%"}},
		}, nil, nil
	})
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_whale_moves",
		Description: "Large transfers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in fundingInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "none"}}}, nil, nil
	})

	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := server.Connect(context.Background(), serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })
	return clientT
}

func TestRemoteToolsAreBoundAndCallable(t *testing.T) {
	cfg := &models.MCPServerConfig{
		ID:         "onchain",
		Enabled:    true,
		ToolFilter: []string{"get_funding_rate"},
		Analysts:   []string{"onchain"},
	}
	srv, err := connectTransport(context.Background(), cfg, startServer(t))
	require.NoError(t, err)

	m := NewManager()
	m.servers[cfg.ID] = srv
	defer m.Close()

	assert.Empty(t, m.ToolsFor(models.AnalystMarket))
	bound := m.ToolsFor(models.AnalystOnChain)
	require.Len(t, bound, 1)

	tool := bound[0]
	assert.Equal(t, "get_funding_rate", tool.Name())
	decl := tool.Declaration()
	schema, ok := decl.ParametersJsonSchema.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", schema["type"])

	out, err := tool.Run(context.Background(), map[string]any{"symbol": "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT funding 0.01%", out)

	_, err = tool.Run(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestLoadConfigsRecordsFailures(t *testing.T) {
	m := NewManager()
	m.LoadConfigs(context.Background(), []models.MCPServerConfig{
		{ID: "down", Enabled: true, TransportType: models.MCPTransportHTTP, Endpoint: "http://127.0.0.1:1/mcp"},
		{ID: "off", Enabled: false},
	})

	status := m.GetAllStatus()
	require.Len(t, status, 1)
	assert.Equal(t, "down", status[0].ID)
	assert.False(t, status[0].Connected)
	assert.NotEmpty(t, status[0].Error)
	assert.Empty(t, m.ToolsFor(models.AnalystNews))
}

func TestBindsTo(t *testing.T) {
	assert.True(t, bindsTo(&models.MCPServerConfig{}, models.AnalystMacro))
	assert.True(t, bindsTo(&models.MCPServerConfig{Analysts: []string{"Macro"}}, models.AnalystMacro))
	assert.False(t, bindsTo(&models.MCPServerConfig{Analysts: []string{"news"}}, models.AnalystMacro))
}
