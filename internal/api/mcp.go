package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/physicalai/tbrag/internal/retrieval"
	"github.com/physicalai/tbrag/internal/textbook"
)

// ChapterLibrary lists and reads chapters. Implemented by textbook.Source.
type ChapterLibrary interface {
	Read(chapterID int) (textbook.Chapter, error)
	List() ([]textbook.Chapter, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Query    QueryService
	Chapters ChapterLibrary
	Version  string
}

// NewMCPServer creates an MCP server exposing textbook question answering
// and chapter reading.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"tbrag",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("tbrag answers questions from the Physical AI & Humanoid Robotics textbook and returns chapter text."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_textbook",
			mcp.WithDescription("Answer a question from the textbook, citing the sections used."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithNumber("top_k", mcp.Description("Maximum number of cited sections (default 5, max 20)")),
			mcp.WithString("selected_text", mcp.Description("Optional passage to answer from instead of searching")),
		),
		mcpAskTextbook(deps),
	)

	s.AddTool(
		mcp.NewTool("read_chapter",
			mcp.WithDescription("Return the markdown of one textbook chapter."),
			mcp.WithNumber("chapter_id", mcp.Description("Chapter number"), mcp.Required()),
		),
		mcpReadChapter(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"textbook://chapters",
			"Textbook Chapters",
			mcp.WithResourceDescription("Chapter numbers and titles as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceChapters(deps),
	)

	return s
}

func mcpAskTextbook(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}

		topK := req.GetInt("top_k", retrieval.DefaultTopK)
		if topK <= 0 {
			topK = retrieval.DefaultTopK
		}
		if topK > 20 {
			topK = 20
		}

		resp, err := deps.Query.Query(ctx, retrieval.Request{
			Question:     question,
			TopK:         topK,
			SelectedText: req.GetString("selected_text", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("query failed: %v", err)), nil
		}

		var b strings.Builder
		b.WriteString(resp.Answer)
		if len(resp.Sources) > 0 {
			b.WriteString("\n\nSources:\n")
			for _, src := range resp.Sources {
				fmt.Fprintf(&b, "- Chapter %d, section %s: %s (score %.3f)\n",
					src.ChapterID, src.SectionID, src.SectionTitle, src.RelevanceScore)
			}
		}
		return mcpText(b.String()), nil
	}
}

func mcpReadChapter(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetInt("chapter_id", 0)
		if id <= 0 {
			return mcpError("chapter_id must be a positive chapter number"), nil
		}
		ch, err := deps.Chapters.Read(id)
		if errors.Is(err, textbook.ErrChapterNotFound) {
			return mcpError(fmt.Sprintf("chapter %d not found", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("reading chapter %d: %v", id, err)), nil
		}
		return mcpText(ch.Markdown), nil
	}
}

type chapterEntry struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

func mcpResourceChapters(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		chapters, err := deps.Chapters.List()
		if err != nil {
			return nil, fmt.Errorf("listing chapters: %w", err)
		}

		entries := make([]chapterEntry, 0, len(chapters))
		for _, ch := range chapters {
			entries = append(entries, chapterEntry{ID: ch.ID, Title: ch.Title})
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return nil, fmt.Errorf("marshalling chapters: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
