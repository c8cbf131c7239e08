package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/noimport/catalog"
	"github.com/isdmx/noimport/config"
	"github.com/isdmx/noimport/probe"
)

// ToolName is the name of the single tool this server exposes
const ToolName = "list_unavailable_names"

// ProbeRunner runs one probe over the given module names
type ProbeRunner interface {
	Run(ctx context.Context, names []string) (probe.Result, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	catalog   *catalog.Catalog
	runner    ProbeRunner
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, cat *catalog.Catalog, runner ProbeRunner) (*MCPServer, error) {
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		catalog: cat,
		runner:  runner,
	}

	s.mcpServer = server.NewMCPServer("noimport", "Lists standard library names unavailable in the sandbox")
	s.registerListUnavailableTool()

	return s, nil
}

func (s *MCPServer) registerListUnavailableTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Run the standard library probe inside the sandbox and list modules and attributes that cannot be accessed there",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"modules": map[string]any{
					"type":        "string",
					"description": "Comma-separated module names to probe instead of the catalog (optional)",
				},
				"include_obvious": map[string]any{
					"type":        "boolean",
					"description": "Also probe platform-specific catalog modules (optional)",
				},
			},
		},
	}

	s.mcpServer.AddTool(tool, s.handleListUnavailable)
}

type toolResult struct {
	Report   string   `json:"report"`
	NotFound []string `json:"not_found"`
	Probed   int      `json:"probed"`
}

func (s *MCPServer) handleListUnavailable(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := splitModules(request.GetString("modules", ""))
	if len(names) == 0 {
		includeObvious := request.GetBool("include_obvious", s.config.Probe.IncludeObvious)
		names = s.catalog.Names(includeObvious)
	}

	s.logger.Info("probe requested", zap.Int("modules", len(names)))

	res, err := s.runner.Run(ctx, names)
	if err != nil {
		s.logger.Error("probe failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Probe failed: %v", err)), nil
	}

	notFound := res.NotFound
	if notFound == nil {
		notFound = []string{}
	}
	payload, err := json.Marshal(toolResult{Report: res.Report, NotFound: notFound, Probed: res.Probed})
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(payload),
			},
		},
	}, nil
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: true,
	}
}

func splitModules(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
