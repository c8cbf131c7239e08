package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/noimport/catalog"
	"github.com/isdmx/noimport/config"
	"github.com/isdmx/noimport/probe"
)

// MockProbeRunner implements ProbeRunner for testing
type MockProbeRunner struct {
	result probe.Result
	err    error
	names  []string
}

func (m *MockProbeRunner) Run(_ context.Context, names []string) (probe.Result, error) {
	m.names = names
	return m.result, m.err
}

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Name:        "test",
		Modules:     []string{"os", "socket", "site"},
		Obvious:     []string{"MacOS"},
		OtherErrors: []string{"site"},
	}
}

func newTestServer(t *testing.T, runner ProbeRunner) *MCPServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Transport: config.TransportStdio, HTTPPort: 8080},
	}
	s, err := New(cfg, zaptest.NewLogger(t), testCatalog(), runner)
	require.NoError(t, err)
	require.NotNil(t, s.GetMCPServer())
	return s
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = ToolName
	req.Params.Arguments = args
	return req
}

func TestHandleListUnavailable(t *testing.T) {
	t.Run("CatalogDefaults", func(t *testing.T) {
		runner := &MockProbeRunner{result: probe.Result{Report: "socket.*\n", NotFound: []string{"os"}, Probed: 1}}
		s := newTestServer(t, runner)

		res, err := s.handleListUnavailable(context.Background(), callTool(map[string]any{}))
		require.NoError(t, err)
		require.False(t, res.IsError)
		assert.Equal(t, []string{"os", "socket"}, runner.names)

		text, ok := res.Content[0].(mcp.TextContent)
		require.True(t, ok)
		var got toolResult
		require.NoError(t, json.Unmarshal([]byte(text.Text), &got))
		assert.Equal(t, toolResult{Report: "socket.*\n", NotFound: []string{"os"}, Probed: 1}, got)
	})

	t.Run("IncludeObvious", func(t *testing.T) {
		runner := &MockProbeRunner{}
		s := newTestServer(t, runner)

		_, err := s.handleListUnavailable(context.Background(), callTool(map[string]any{"include_obvious": true}))
		require.NoError(t, err)
		assert.Equal(t, []string{"os", "socket", "MacOS"}, runner.names)
	})

	t.Run("ExplicitModules", func(t *testing.T) {
		runner := &MockProbeRunner{}
		s := newTestServer(t, runner)

		res, err := s.handleListUnavailable(context.Background(), callTool(map[string]any{"modules": " os.path, ,zlib "}))
		require.NoError(t, err)
		assert.Equal(t, []string{"os.path", "zlib"}, runner.names)

		text := res.Content[0].(mcp.TextContent)
		assert.Contains(t, text.Text, `"not_found":[]`)
	})

	t.Run("RunnerError", func(t *testing.T) {
		runner := &MockProbeRunner{err: errors.New("sandbox server did not start (state=timed-out)")}
		s := newTestServer(t, runner)

		res, err := s.handleListUnavailable(context.Background(), callTool(nil))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "state=timed-out")
	})
}

func TestSplitModules(t *testing.T) {
	assert.Nil(t, splitModules(""))
	assert.Equal(t, []string{"a", "b.c"}, splitModules("a,b.c"))
}
