package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/persona/internal/storage"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func toolText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content items = %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T", res.Content[0])
	}
	return tc.Text
}

func mcpDeps(t *testing.T) (*testApp, AppDeps) {
	t.Helper()
	app := newTestApp(t)
	deps := AppDeps{
		Store:       app.store,
		Synthesizer: app.synthesizer,
		Queue:       app.worker,
		Logger:      discardLogger(),
	}
	return app, deps
}

func TestMCPGetProfile(t *testing.T) {
	app, deps := mcpDeps(t)

	if rec := app.do(t, http.MethodPost, "/user/ana/interactions", InteractionRequest{
		Role: "user", Message: "tell me about python?", Topics: []string{"python"},
	}); rec.Code != http.StatusCreated {
		t.Fatalf("seed append failed: %d", rec.Code)
	}

	res, err := mcpGetProfile(deps)(context.Background(), toolRequest(map[string]any{"username": "ana"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}

	var p storage.Profile
	if err := json.Unmarshal([]byte(toolText(t, res)), &p); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if p.Username != "ana" || p.TotalInteractions != 1 {
		t.Errorf("profile = %+v", p)
	}
}

func TestMCPGetProfileRequiresUsername(t *testing.T) {
	_, deps := mcpDeps(t)
	res, err := mcpGetProfile(deps)(context.Background(), toolRequest(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing username")
	}
}

func TestMCPPersonalizationContextEmptyWithoutData(t *testing.T) {
	_, deps := mcpDeps(t)
	res, err := mcpPersonalizationContext(deps)(context.Background(), toolRequest(map[string]any{"username": "ghost"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}
	if got := toolText(t, res); got != "" {
		t.Errorf("context = %q, want empty", got)
	}
}

func TestMCPResumeSummaryGuidance(t *testing.T) {
	_, deps := mcpDeps(t)
	res, err := mcpResumeSummary(deps)(context.Background(), toolRequest(map[string]any{"username": "ghost"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := toolText(t, res); !strings.Contains(got, "haven't uploaded any resume") {
		t.Errorf("summary = %q", got)
	}
}

func TestMCPTriggerUpdate(t *testing.T) {
	app, deps := mcpDeps(t)
	res, err := mcpTriggerUpdate(deps)(context.Background(), toolRequest(map[string]any{"username": "ana"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", toolText(t, res))
	}
	if !app.worker.RunOnce(context.Background()) {
		t.Error("trigger did not reach the queue")
	}
}
