package mapview

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testMCPImpl = &mcp.Implementation{Name: "plotmap-test", Version: "0.1.0"}

func setupMCP(t *testing.T) (*Service, *mcp.ClientSession) {
	t.Helper()
	svc, _ := setupTestService(t, staticSource(testPlots()))
	svc.Refresh(context.Background())

	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return svc, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text, result.IsError
}

func TestMCP_SelectAndView(t *testing.T) {
	// WHAT: plotmap_select changes the selection seen by plotmap_view.
	// WHY: Agents drive the same controller as the HTTP API.
	_, session := setupMCP(t)

	if _, isErr := callTool(t, session, "plotmap_select", map[string]any{"plot_id": "2"}); isErr {
		t.Fatal("select failed")
	}
	text, _ := callTool(t, session, "plotmap_view", map[string]any{})
	var v View
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if v.SelectedID != "2" || v.RowCount != 2 {
		t.Errorf("view: selected=%q rows=%d", v.SelectedID, v.RowCount)
	}

	if _, isErr := callTool(t, session, "plotmap_select", map[string]any{"plot_id": "nope"}); !isErr {
		t.Error("select unknown id should be a tool error")
	}
}

func TestMCP_ZoomClamps(t *testing.T) {
	// WHAT: plotmap_zoom set is clamped to the allowed range.
	// WHY: Tool input is untrusted.
	svc, session := setupMCP(t)
	text, isErr := callTool(t, session, "plotmap_zoom", map[string]any{"action": "set", "factor": 10})
	if isErr {
		t.Fatalf("zoom: %s", text)
	}
	if svc.View().Zoom != MaxZoom {
		t.Errorf("zoom: got %v", svc.View().Zoom)
	}
	if _, isErr := callTool(t, session, "plotmap_zoom", map[string]any{"action": "sideways"}); !isErr {
		t.Error("unknown action should be a tool error")
	}
}

func TestMCP_EditAndSVG(t *testing.T) {
	// WHAT: plotmap_edit updates a plot; plotmap_svg shows the new colour.
	// WHY: Edits through tools use the same validation as the UI.
	svc, session := setupMCP(t)
	if text, isErr := callTool(t, session, "plotmap_edit", map[string]any{"plot_id": "1", "color": "#abcdef"}); isErr {
		t.Fatalf("edit: %s", text)
	}
	svg, _ := callTool(t, session, "plotmap_svg", map[string]any{})
	if !strings.Contains(svg, `fill="#abcdef"`) {
		t.Errorf("svg missing edited colour: %s", svg)
	}

	if _, isErr := callTool(t, session, "plotmap_edit", map[string]any{"plot_id": "1", "x": "abc"}); !isErr {
		t.Error("invalid x should be a tool error")
	}
	if _, open := svc.CurrentDraft(); open {
		t.Error("failed tool edit left a draft open")
	}
}

func TestMCP_RefreshAndHistory(t *testing.T) {
	// WHAT: plotmap_refresh reports the outcome; history lists cycles.
	// WHY: Manual refresh is available to agents.
	_, session := setupMCP(t)
	text, _ := callTool(t, session, "plotmap_refresh", map[string]any{})
	if !strings.Contains(text, `"outcome":"unchanged"`) {
		t.Errorf("refresh: %s", text)
	}
	hist, isErr := callTool(t, session, "plotmap_history", map[string]any{"limit": 5})
	if isErr || !strings.HasPrefix(hist, "[") {
		t.Errorf("history: %s", hist)
	}
}
