package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/persona/internal/narrative"
)

// NewMCPServer creates an MCP server exposing the profile engine to
// LLM-driven consumers without HTTP glue.
func NewMCPServer(deps AppDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"persona",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("persona serves per-user personality and preference profiles synthesized from chat and resume-analysis history."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch the synthesized personality profile for a user as JSON."),
			mcp.WithString("username", mcp.Description("The user to look up"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("personalization_context",
			mcp.WithDescription("Build the personalization insights block to inject into an assistant prompt. Empty when the user has no usable data."),
			mcp.WithString("username", mcp.Description("The user to build context for"), mcp.Required()),
		),
		mcpPersonalizationContext(deps),
	)

	s.AddTool(
		mcp.NewTool("resume_summary",
			mcp.WithDescription("Get a conversational summary of the user's resume analysis history."),
			mcp.WithString("username", mcp.Description("The user to summarize"), mcp.Required()),
		),
		mcpResumeSummary(deps),
	)

	s.AddTool(
		mcp.NewTool("trigger_update",
			mcp.WithDescription("Queue an asynchronous profile rebuild for a user."),
			mcp.WithString("username", mcp.Description("The user to rebuild"), mcp.Required()),
		),
		mcpTriggerUpdate(deps),
	)

	return s
}

func mcpGetProfile(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}

		p, err := loadProfile(ctx, deps, username)
		if err != nil {
			return mcpError(fmt.Sprintf("loading profile: %v", err)), nil
		}

		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("marshaling profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpPersonalizationContext(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}

		p, err := loadProfile(ctx, deps, username)
		if err != nil {
			return mcpError(fmt.Sprintf("loading profile: %v", err)), nil
		}
		return mcpText(narrative.PersonalizationContext(p)), nil
	}
}

func mcpResumeSummary(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}

		p, err := loadProfile(ctx, deps, username)
		if err != nil {
			return mcpError(fmt.Sprintf("loading profile: %v", err)), nil
		}
		return mcpText(narrative.ResumeChatSummary(p)), nil
	}
}

func mcpTriggerUpdate(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		username, err := req.RequireString("username")
		if err != nil {
			return mcpError("username is required"), nil
		}

		deps.Queue.Enqueue(username)
		return mcpText(fmt.Sprintf("Queued profile update for %s", username)), nil
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
