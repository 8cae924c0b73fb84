// Package mcp implements the Model Context Protocol server for discovery archaeology.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/engine"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// Server wraps an MCPServer with the analysis engine.
type Server struct {
	mcp    *mcpserver.MCPServer
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer creates a new MCP server. If eng is nil, every tool call
// returns an error response instead of panicking.
func NewServer(eng *engine.Engine, version string, logger *slog.Logger) *Server {
	s := &Server{
		engine: eng,
		logger: logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"discovery-archaeology",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildAnalyzeTool(), s.handleAnalyze)
	mcpSrv.AddTool(buildGetTool(), s.handleGet)
	mcpSrv.AddTool(buildListTool(), s.handleList)
	mcpSrv.AddTool(buildListPatternsTool(), s.handleListPatterns)
	mcpSrv.AddTool(buildAnalyzePatternsTool(), s.handleAnalyzePatterns)
	mcpSrv.AddTool(buildThemesTool(), s.handleThemes)
	mcpSrv.AddTool(buildTimelineTool(), s.handleTimeline)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleAnalyze is the exported handler for the "analyze_invention" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleAnalyze(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAnalyze(ctx, req)
}

// HandleGet is the exported handler for the "get_invention" tool.
func (s *Server) HandleGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleGet(ctx, req)
}

// HandleList is the exported handler for the "list_inventions" tool.
func (s *Server) HandleList(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleList(ctx, req)
}

// HandleListPatterns is the exported handler for the "list_patterns" tool.
func (s *Server) HandleListPatterns(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListPatterns(ctx, req)
}

// HandleAnalyzePatterns is the exported handler for the "analyze_patterns" tool.
func (s *Server) HandleAnalyzePatterns(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleAnalyzePatterns(ctx, req)
}

// HandleThemes is the exported handler for the "common_themes" tool.
func (s *Server) HandleThemes(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleThemes(ctx, req)
}

// HandleTimeline is the exported handler for the "innovation_timeline" tool.
func (s *Server) HandleTimeline(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleTimeline(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// toolError turns a failed engine call into a tool error result. The
// protocol-level error stays nil so the client sees the message.
func (s *Server) toolError(op string, err error) *mcpgo.CallToolResult {
	if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, models.ErrValidation) {
		s.logger.Warn("mcp: "+op+" failed", "error", err)
	}
	return mcpgo.NewToolResultErrorf("%s failed: %s", op, err.Error())
}

// --- tool definitions ---

func buildAnalyzeTool() mcpgo.Tool {
	return mcpgo.NewTool("analyze_invention",
		mcpgo.WithDescription("Reconstruct the origin story of an invention: its discoveries, how they connect, and the innovation patterns it shows. Stored results are returned without calling the model again."),
		mcpgo.WithString("invention_name",
			mcpgo.Required(),
			mcpgo.Description("Name of the invention, e.g. Microwave Oven"),
		),
		mcpgo.WithArray("focus_areas",
			mcpgo.Description("Optional aspects to emphasize (at most 10)"),
			mcpgo.WithStringItems(),
		),
	)
}

func buildGetTool() mcpgo.Tool {
	return mcpgo.NewTool("get_invention",
		mcpgo.WithDescription("Fetch a stored invention analysis by ID."),
		mcpgo.WithNumber("id",
			mcpgo.Required(),
			mcpgo.Description("The numeric ID of the stored invention"),
		),
	)
}

func buildListTool() mcpgo.Tool {
	return mcpgo.NewTool("list_inventions",
		mcpgo.WithDescription("List stored inventions with their year and summary."),
	)
}

func buildListPatternsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_patterns",
		mcpgo.WithDescription("List the innovation pattern aggregates and the inventions that exhibit each."),
	)
}

func buildAnalyzePatternsTool() mcpgo.Tool {
	return mcpgo.NewTool("analyze_patterns",
		mcpgo.WithDescription("Compare stored inventions that share a pattern and refresh each pattern's description and insights. Needs at least two stored inventions."),
	)
}

func buildThemesTool() mcpgo.Tool {
	return mcpgo.NewTool("common_themes",
		mcpgo.WithDescription("Group stored inventions under common themes: accidental discoveries, failures that led to success, critical prerequisites, and missed opportunities."),
	)
}

func buildTimelineTool() mcpgo.Tool {
	return mcpgo.NewTool("innovation_timeline",
		mcpgo.WithDescription("List dated inventions in chronological order with their key discovery."),
	)
}

// --- tool handlers ---

// handleAnalyze returns the stored or freshly extracted analysis.
func (s *Server) handleAnalyze(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	name := req.GetString("invention_name", "")
	if strings.TrimSpace(name) == "" {
		return mcpgo.NewToolResultError("invention_name is required and must not be empty"), nil
	}

	rec, err := s.engine.Analyze(ctx, models.AnalyzeRequest{
		InventionName: name,
		FocusAreas:    req.GetStringSlice("focus_areas", nil),
	})
	if err != nil {
		return s.toolError("analyze", err), nil
	}

	s.logger.Info("mcp: analyze_invention", "id", rec.ID, "invention", rec.Analysis.InventionName)
	return toolResultJSON(rec)
}

// handleGet fetches a stored invention by ID.
func (s *Server) handleGet(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}

	id := req.GetInt("id", 0)
	if id <= 0 {
		return mcpgo.NewToolResultError("id is required and must be a positive integer"), nil
	}

	rec, err := s.engine.Get(ctx, int64(id))
	if err != nil {
		return s.toolError("get", err), nil
	}
	return toolResultJSON(rec)
}

func (s *Server) handleList(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	list, err := s.engine.List(ctx)
	if err != nil {
		return s.toolError("list", err), nil
	}
	return toolResultJSON(map[string]any{"inventions": list, "count": len(list)})
}

func (s *Server) handleListPatterns(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	aggs, err := s.engine.Patterns(ctx)
	if err != nil {
		return s.toolError("list patterns", err), nil
	}
	return toolResultJSON(map[string]any{"patterns": aggs})
}

func (s *Server) handleAnalyzePatterns(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	aggs, err := s.engine.AnalyzePatterns(ctx)
	if err != nil {
		return s.toolError("analyze patterns", err), nil
	}
	return toolResultJSON(map[string]any{"patterns": aggs})
}

func (s *Server) handleThemes(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	themes, err := s.engine.Themes(ctx)
	if err != nil {
		return s.toolError("common themes", err), nil
	}
	return toolResultJSON(themes)
}

func (s *Server) handleTimeline(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.engine == nil {
		return mcpgo.NewToolResultError("engine is unavailable"), nil
	}
	timeline, err := s.engine.Timeline(ctx)
	if err != nil {
		return s.toolError("timeline", err), nil
	}
	return toolResultJSON(map[string]any{"timeline": timeline})
}
