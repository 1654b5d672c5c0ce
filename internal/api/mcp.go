package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/macitch/Bridgea/internal/link"
	"github.com/macitch/Bridgea/internal/pipeline"
	"github.com/macitch/Bridgea/internal/retrieval"
	"github.com/macitch/Bridgea/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store     *storage.Store
	Processor MetadataProcessor
	Searcher  LinkSearcher
}

// NewMCPServer creates an MCP server exposing Bridgea tools over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bridgea",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("Bridgea — local bookmark manager with metadata extraction and semantic search over saved links."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("extract_metadata",
			mcp.WithDescription("Fetch a URL and extract its title, description, image, tags and categories."),
			mcp.WithString("url", mcp.Description("Absolute URL to extract metadata from"), mcp.Required()),
		),
		mcpExtractMetadata(deps),
	)

	s.AddTool(
		mcp.NewTool("search_links",
			mcp.WithDescription("Semantically search saved links. Supports key:value filters such as tag:design or category:tools."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithString("userId", mcp.Description("Scope search to one user's links")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchLinks(deps),
	)

	s.AddTool(
		mcp.NewTool("save_link",
			mcp.WithDescription("Save a link with its metadata and queue it for embedding."),
			mcp.WithString("userId", mcp.Description("Owner of the link"), mcp.Required()),
			mcp.WithString("url", mcp.Description("URL to save"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Link title")),
			mcp.WithString("description", mcp.Description("Link description")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpSaveLink(deps),
	)

	return s
}

func mcpExtractMetadata(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		meta, err := deps.Processor.Process(ctx, target)
		if errors.Is(err, pipeline.ErrInFlight) {
			return mcpError("url is already being processed, try again shortly"), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("extraction failed: %v", err)), nil
		}

		b, err := json.Marshal(meta)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal metadata: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchLinks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		result, err := deps.Searcher.Search(ctx, retrieval.Query{
			Text:      query,
			SessionID: "mcp",
			UserID:    req.GetString("userId", ""),
			Limit:     limit,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(result.Links) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(result.Links)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveLink(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("userId")
		if err != nil {
			return mcpError("userId is required"), nil
		}
		target, err := req.RequireString("url")
		if err != nil {
			return mcpError("url is required"), nil
		}

		saved := link.SavedLink{
			ID:          uuid.New().String(),
			UserID:      userID,
			URL:         target,
			Title:       req.GetString("title", ""),
			Description: req.GetString("description", ""),
			Tags:        req.GetStringSlice("tags", nil),
			CreatedAt:   time.Now().UTC(),
		}
		saved.SearchTerms = saved.BuildSearchTerms()

		if err := deps.Store.SaveLink(saved); err != nil {
			return mcpError(fmt.Sprintf("failed to save link: %v", err)), nil
		}
		if err := enqueueEmbed(deps.Store, saved.ID); err != nil {
			return mcpError(fmt.Sprintf("saved link but failed to queue embedding: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved link %s", saved.ID)), nil
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
