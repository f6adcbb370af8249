package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/texttutor/internal/conversation"
	"github.com/kalambet/texttutor/internal/document"
	"github.com/kalambet/texttutor/internal/pipeline"
	"github.com/kalambet/texttutor/internal/session"
)

// MCPDeps holds dependencies for the MCP server. Every tool call works on
// the one Session.
type MCPDeps struct {
	Pipeline      *pipeline.Pipeline
	Session       *session.Session
	Conversations ConversationLister
}

// NewMCPServer creates an MCP server with the texttutor tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"texttutor",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("texttutor answers questions about documents you ingest. Ingest text or a PDF first, then ask."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ingest_text",
			mcp.WithDescription("Add a block of text to the session corpus."),
			mcp.WithString("text", mcp.Description("The text to ingest"), mcp.Required()),
		),
		mcpIngestText(deps),
	)

	s.AddTool(
		mcp.NewTool("ingest_pdf",
			mcp.WithDescription("Extract a local PDF file page by page and add it to the session corpus."),
			mcp.WithString("path", mcp.Description("Path to the PDF file"), mcp.Required()),
		),
		mcpIngestPDF(deps),
	)

	s.AddTool(
		mcp.NewTool("ask",
			mcp.WithDescription("Answer a question from the ingested documents and list the sources used."),
			mcp.WithString("question", mcp.Description("The question"), mcp.Required()),
		),
		mcpAsk(deps),
	)

	s.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List recorded questions and answers, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 10)")),
		),
		mcpListConversations(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"conversations://recent",
			"Recent Conversations",
			mcp.WithResourceDescription("Last 10 recorded questions with their sources"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpIngestText(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		res, err := deps.Pipeline.Ingest(ctx, deps.Session, pipeline.TextInput(text))
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Ingested %d chunks from %s", res.Chunks, document.FormatSource(res.Source))), nil
	}
}

func mcpIngestPDF(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return mcpError(fmt.Sprintf("reading %s: %v", path, err)), nil
		}
		res, err := deps.Pipeline.Ingest(ctx, deps.Session, pipeline.PDFInput(filepath.Base(path), data))
		if err != nil {
			return mcpError(fmt.Sprintf("ingest failed: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Ingested %d chunks from %d pages of %s",
			res.Chunks, res.Pages, document.FormatSource(res.Source))), nil
	}
}

func mcpAsk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		ans, err := deps.Pipeline.Ask(ctx, deps.Session, question)
		if err != nil && !errors.Is(err, conversation.ErrPersistence) {
			return mcpError(fmt.Sprintf("ask failed: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(ans.Text)
		if len(ans.Sources) > 0 {
			sb.WriteString("\n\nSources:\n")
			for _, s := range ans.Sources {
				sb.WriteString("- ")
				sb.WriteString(document.FormatSource(s))
				sb.WriteString("\n")
			}
		}
		if err != nil {
			fmt.Fprintf(&sb, "\n(not recorded: %v)", err)
		}
		return mcpText(sb.String()), nil
	}
}

func mcpListConversations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		records, err := deps.Conversations.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing conversations: %v", err)), nil
		}
		if len(records) > limit {
			records = records[:limit]
		}
		if len(records) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal records: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Conversations.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		if len(records) > 10 {
			records = records[:10]
		}

		type recordSummary struct {
			Timestamp string   `json:"timestamp"`
			Question  string   `json:"question"`
			Sources   []string `json:"sources"`
		}

		summaries := make([]recordSummary, len(records))
		for i, rec := range records {
			q := rec.Question
			if utf8.RuneCountInString(q) > 200 {
				q = string([]rune(q)[:200]) + "..."
			}
			summaries[i] = recordSummary{Timestamp: rec.Timestamp, Question: q, Sources: rec.Sources}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal conversations: %w", err)
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
