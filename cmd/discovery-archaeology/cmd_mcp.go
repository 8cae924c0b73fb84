package main

import (
	"fmt"
	"log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	archmcp "github.com/Gajesh2007/discovery-archaeology-agent/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  analyze_invention    reconstruct and store an invention's origin story
  get_invention        fetch a stored analysis by ID
  list_inventions      list stored inventions
  list_patterns        list pattern aggregates
  analyze_patterns     compare inventions that share a pattern
  common_themes        group inventions by theme
  innovation_timeline  dated inventions in year order

Without an API key the server still starts; stored analyses are served and
uncached analyses return tool errors.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			eng, cleanup, err := newEngine(cmd.Context(), logger, false)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer cleanup()

			srv := archmcp.NewServer(eng, version, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: discovery-archaeology MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
