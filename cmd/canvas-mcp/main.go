// Entry point for the canvas MCP bridge — a stdio MCP server whose tools
// call the canvasd HTTP control plane.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/canvasd/mcpbridge"
)

func main() {
	baseURL := os.Getenv("CANVASD_URL")

	// stdout carries the MCP protocol; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bridge := mcpbridge.New(mcpbridge.NewClient(baseURL), mcpbridge.WithLogger(logger))

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "excalidraw-http",
		Version: "1.0.0",
	}, nil)
	bridge.RegisterMCP(srv)

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("mcp server", "error", err)
		os.Exit(1)
	}
}
