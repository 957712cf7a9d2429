// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Vellum manuscript tools for LLM integration via stdio
// transport. Tools go through the gateway, so they only ever see
// decrypted chapter content.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hollevik/vellum/internal/gateway"
	"github.com/hollevik/vellum/internal/models"
)

// Server wraps the MCP server with Vellum tools.
type Server struct {
	mcp *server.MCPServer
	gw  gateway.Gateway
}

// New creates a new MCP server with all Vellum tools registered.
func New(gw gateway.Gateway) *Server {
	s := &Server{gw: gw}

	s.mcp = server.NewMCPServer(
		"Vellum",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List a novel's chapters in manuscript order with word counts and publication status."),
		mcp.WithString("novel_id", mcp.Required(), mcp.Description("Novel identifier")),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("read_chapter",
		mcp.WithDescription("Read a chapter's title and decrypted content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chapter identifier")),
	), s.readChapter)

	s.mcp.AddTool(mcp.NewTool("write_chapter",
		mcp.WithDescription("Apply a partial edit to a chapter. Absent fields are left untouched; "+
			"the word count is re-derived from the new content."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chapter identifier")),
		mcp.WithString("title", mcp.Description("New title (optional)")),
		mcp.WithString("content", mcp.Description("New content (optional)")),
	), s.writeChapter)

	s.mcp.AddTool(mcp.NewTool("create_chapter",
		mcp.WithDescription("Append a new empty chapter to a novel."),
		mcp.WithString("novel_id", mcp.Required(), mcp.Description("Novel identifier")),
	), s.createChapter)

	s.mcp.AddTool(mcp.NewTool("novel_stats",
		mcp.WithDescription("Total word count across a novel's chapters."),
		mcp.WithString("novel_id", mcp.Required(), mcp.Description("Novel identifier")),
	), s.novelStats)

	s.mcp.AddTool(mcp.NewTool("list_comments",
		mcp.WithDescription("List a chapter's margin comments, oldest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chapter identifier")),
	), s.listComments)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	novelID, err := req.RequireString("novel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.gw.ListChapters(ctx, novelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ch, err := s.gw.GetChapter(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", ch.Title, ch.Content)), nil
}

func (s *Server) writeChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var edit models.PendingEdit
	if title, err := req.RequireString("title"); err == nil {
		edit.Title = &title
	}
	if content, err := req.RequireString("content"); err == nil {
		edit.Content = &content
	}
	if edit.Empty() {
		return mcp.NewToolResultError("nothing to change: provide title or content"), nil
	}

	ch, err := s.gw.SaveChapter(ctx, id, edit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (%d words)", ch.ID, ch.WordCount)), nil
}

func (s *Server) createChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	novelID, err := req.RequireString("novel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ch, err := s.gw.CreateChapter(ctx, novelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (order %d)", ch.ID, ch.Order)), nil
}

func (s *Server) novelStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	novelID, err := req.RequireString("novel_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	items, err := s.gw.ListChapters(ctx, novelID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	total := 0
	for _, it := range items {
		total += it.WordCount
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d chapters, %d words", len(items), total)), nil
}

func (s *Server) listComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comments, err := s.gw.ListComments(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(comments) == 0 {
		return mcp.NewToolResultText("no comments"), nil
	}
	var lines []string
	for _, c := range comments {
		mark := " "
		if c.Resolved {
			mark = "x"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", mark, c.ID, c.Body))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}
