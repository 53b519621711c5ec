package mcpbridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/canvasd/canvas"
	"github.com/hazyhaar/canvasd/notify"
	"github.com/hazyhaar/canvasd/server"
)

var testMCPImpl = &mcp.Implementation{Name: "canvas-mcp-test", Version: "0.1.0"}

const testElementID = "testelementid1234567"

// setupBridge starts a real control plane behind httptest and connects an
// in-memory MCP session to a Bridge pointed at it.
func setupBridge(t *testing.T) (*canvas.Store, *mcp.ClientSession) {
	t.Helper()
	store := canvas.NewStore()
	sink := notify.Func(func(context.Context, string, canvas.Payload) error { return nil })
	h := server.New(store, sink)
	r := chi.NewRouter()
	h.RegisterHTTP(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	bridge := New(NewClient(ts.URL),
		WithIDGenerator(func() string { return testElementID }),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	srv := mcp.NewServer(testMCPImpl, nil)
	bridge.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return store, session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
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
	if result.IsError {
		t.Fatalf("CallTool(%s) tool error: %v", name, tc.Text)
	}
	return tc.Text
}

func callToolExpectError(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if !result.IsError {
		t.Fatalf("CallTool(%s): expected a tool error", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

// ---

func TestMCP_HealthCheck(t *testing.T) {
	_, session := setupBridge(t)
	text := callTool(t, session, "health_check", map[string]any{})
	if text != "Server is healthy: ok" {
		t.Fatalf("text = %q", text)
	}
}

func TestMCP_GetCanvas(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{Elements: []canvas.Element{{"id": "a"}, {"id": "b"}}})

	text := callTool(t, session, "get_canvas", map[string]any{})
	if !strings.Contains(text, "Elements count: 2") {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(text, "Updated at: 2") {
		t.Fatalf("missing timestamp: %q", text)
	}
}

func TestMCP_UpdateCanvas(t *testing.T) {
	store, session := setupBridge(t)

	text := callTool(t, session, "update_canvas", map[string]any{
		"elements": []map[string]any{{"id": "x", "type": "rectangle"}},
		"appState": map[string]any{"zoom": 2},
	})
	if text != "Canvas updated successfully" {
		t.Fatalf("text = %q", text)
	}

	doc := store.Snapshot()
	if len(doc.Elements) != 1 || doc.AppState["zoom"] != float64(2) {
		t.Fatalf("store = %+v", doc)
	}
}

func TestMCP_ClearCanvas(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{Elements: []canvas.Element{{"id": "a"}}})

	text := callTool(t, session, "clear_canvas", map[string]any{})
	if text != "Canvas cleared successfully" {
		t.Fatalf("text = %q", text)
	}
	if len(store.Snapshot().Elements) != 0 {
		t.Fatal("canvas not cleared")
	}
}

func TestMCP_ExportCanvas(t *testing.T) {
	_, session := setupBridge(t)

	text := callTool(t, session, "export_canvas", map[string]any{"width": 640, "height": 480})
	if !strings.Contains(text, "toDataURL export successful") ||
		!strings.Contains(text, "Size: 640x480") ||
		!strings.Contains(text, "data:image/svg+xml;base64,") {
		t.Fatalf("text = %q", text)
	}
}

func TestMCP_ExportCanvas_RejectsOtherFormats(t *testing.T) {
	_, session := setupBridge(t)
	msg := callToolExpectError(t, session, "export_canvas", map[string]any{"format": "png"})
	if !strings.Contains(msg, "only toDataURL format is supported") {
		t.Fatalf("error = %q", msg)
	}
}

func TestMCP_CreateElement_Rectangle(t *testing.T) {
	store, session := setupBridge(t)

	text := callTool(t, session, "create_element", map[string]any{
		"elementType": "rectangle",
		"x":           10,
		"y":           20,
		"width":       120,
		"height":      80,
	})
	if !strings.Contains(text, "Rectangle element created successfully") ||
		!strings.Contains(text, "Element ID: "+testElementID) ||
		!strings.Contains(text, "Position: (10, 20)") ||
		!strings.Contains(text, "Size: 120x80") {
		t.Fatalf("text = %q", text)
	}

	elems := store.Elements()
	if len(elems) != 1 {
		t.Fatalf("elements = %v", elems)
	}
	el := elems[0]
	if el["id"] != testElementID || el["type"] != "rectangle" {
		t.Fatalf("element = %v", el)
	}
	if el["strokeColor"] != "#1e1e1e" || el["backgroundColor"] != "transparent" {
		t.Fatalf("defaults missing: %v", el)
	}
	if el["version"] != float64(1) || el["isDeleted"] != false {
		t.Fatalf("skeleton fields missing: %v", el)
	}
	if seed, ok := el["seed"].(float64); !ok || seed < 1 {
		t.Fatalf("seed = %v", el["seed"])
	}
}

func TestMCP_CreateElement_AppendsToExisting(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{
		Elements: []canvas.Element{{"id": "existing"}},
		AppState: map[string]any{"zoom": 3},
	})

	callTool(t, session, "create_element", map[string]any{
		"elementType": "ellipse", "x": 0, "y": 0,
	})

	doc := store.Snapshot()
	if len(doc.Elements) != 2 || doc.Elements[0]["id"] != "existing" {
		t.Fatalf("elements = %v", doc.Elements)
	}
	if doc.AppState["zoom"] != float64(3) {
		t.Fatal("appState lost during element append")
	}
}

func TestMCP_CreateElement_Text(t *testing.T) {
	store, session := setupBridge(t)

	callTool(t, session, "create_element", map[string]any{
		"elementType": "text", "x": 5, "y": 5, "text": "hello",
	})

	el := store.Elements()[0]
	if el["text"] != "hello" || el["originalText"] != "hello" {
		t.Fatalf("text fields = %v", el)
	}
	if el["fontSize"] != float64(20) || el["fontFamily"] != float64(1) || el["textAlign"] != "left" {
		t.Fatalf("text defaults = %v", el)
	}
}

func TestMCP_CreateElement_Arrow(t *testing.T) {
	store, session := setupBridge(t)

	callTool(t, session, "create_element", map[string]any{
		"elementType": "arrow", "x": 0, "y": 0,
		"points": [][]float64{{0, 0}, {50, 50}},
	})

	el := store.Elements()[0]
	if el["endArrowhead"] != "arrow" || el["startArrowhead"] != nil {
		t.Fatalf("arrowheads = %v", el)
	}
	if _, ok := el["points"].([]any); !ok {
		t.Fatalf("points = %v", el["points"])
	}
}

func TestMCP_CreateElement_LineNeedsPoints(t *testing.T) {
	_, session := setupBridge(t)
	msg := callToolExpectError(t, session, "create_element", map[string]any{
		"elementType": "line", "x": 0, "y": 0,
	})
	if !strings.Contains(msg, "line elements require at least 2 points") {
		t.Fatalf("error = %q", msg)
	}
}

func TestMCP_DrawWithBrush(t *testing.T) {
	store, session := setupBridge(t)

	text := callTool(t, session, "draw_with_brush", map[string]any{
		"points": [][]float64{{100, 200}, {150, 180}, {120, 260}},
	})
	if !strings.Contains(text, "Brush stroke created successfully") ||
		!strings.Contains(text, "Points: 3 points") {
		t.Fatalf("text = %q", text)
	}

	el := store.Elements()[0]
	if el["type"] != "freedraw" {
		t.Fatalf("type = %v", el["type"])
	}
	// Bounds: x=min(100,150,120), y=min(200,180,260).
	if el["x"] != float64(100) || el["y"] != float64(180) {
		t.Fatalf("origin = (%v, %v)", el["x"], el["y"])
	}
	if el["width"] != float64(50) || el["height"] != float64(80) {
		t.Fatalf("size = %vx%v", el["width"], el["height"])
	}
	points := el["points"].([]any)
	first := points[0].([]any)
	if first[0] != float64(0) || first[1] != float64(20) {
		t.Fatalf("relative points = %v", points)
	}
	if el["simulatePressure"] != true {
		t.Fatalf("freedraw extras = %v", el)
	}
}

func TestMCP_DrawWithBrush_NeedsTwoPoints(t *testing.T) {
	_, session := setupBridge(t)
	msg := callToolExpectError(t, session, "draw_with_brush", map[string]any{
		"points": [][]float64{{1, 1}},
	})
	if !strings.Contains(msg, "at least 2 points") {
		t.Fatalf("error = %q", msg)
	}
}

func TestMCP_GetElementByID(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{Elements: []canvas.Element{
		{"id": "a", "type": "rectangle", "x": 1.0, "y": 2.0, "width": 3.0, "height": 4.0},
	}})

	text := callTool(t, session, "get_element_by_id", map[string]any{"element_id": "a"})
	if !strings.Contains(text, "Element found") ||
		!strings.Contains(text, "Type: rectangle") ||
		!strings.Contains(text, `"id": "a"`) {
		t.Fatalf("text = %q", text)
	}
}

func TestMCP_GetElementByID_Missing(t *testing.T) {
	_, session := setupBridge(t)
	msg := callToolExpectError(t, session, "get_element_by_id", map[string]any{"element_id": "nope"})
	if !strings.Contains(msg, "Element with ID 'nope' not found") {
		t.Fatalf("error = %q", msg)
	}
}

func TestMCP_UpdateAppState_Merges(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{AppState: map[string]any{"theme": "light", "gridSize": 10}})

	text := callTool(t, session, "update_app_state", map[string]any{
		"stateUpdates": map[string]any{"theme": "dark", "scrollX": 40},
	})
	if !strings.Contains(text, "App state updated successfully") ||
		!strings.Contains(text, "Updated fields: scrollX, theme") {
		t.Fatalf("text = %q", text)
	}

	state := store.Snapshot().AppState
	if state["theme"] != "dark" || state["gridSize"] != float64(10) || state["scrollX"] != float64(40) {
		t.Fatalf("merged state = %v", state)
	}
}

func TestMCP_RemoveElement(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{Elements: []canvas.Element{{"id": "a"}, {"id": "b"}}})

	text := callTool(t, session, "remove_element", map[string]any{"element_id": "a"})
	if text != "Element 'a' removed" {
		t.Fatalf("text = %q", text)
	}
	if len(store.Elements()) != 1 {
		t.Fatal("element not removed")
	}

	msg := callToolExpectError(t, session, "remove_element", map[string]any{"element_id": "zzz"})
	if !strings.Contains(msg, "Element with ID 'zzz' not found") {
		t.Fatalf("error = %q", msg)
	}
}

func TestMCP_UpdateElement(t *testing.T) {
	store, session := setupBridge(t)
	store.Apply(canvas.Payload{Elements: []canvas.Element{{"id": "a", "x": 0}}})

	text := callTool(t, session, "update_element", map[string]any{
		"element_id":   "a",
		"element_data": map[string]any{"id": "a", "x": 42},
	})
	if text != "Element 'a' updated" {
		t.Fatalf("text = %q", text)
	}
	if store.Elements()[0]["x"] != float64(42) {
		t.Fatal("element not updated")
	}
}

func TestMCP_ListTools(t *testing.T) {
	_, session := setupBridge(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{
		"health_check": true, "get_canvas": true, "update_canvas": true,
		"clear_canvas": true, "export_canvas": true, "draw_with_brush": true,
		"create_element": true, "get_element_by_id": true,
		"update_app_state": true, "remove_element": true, "update_element": true,
	}
	for _, tool := range res.Tools {
		delete(want, tool.Name)
	}
	for name := range want {
		t.Errorf("missing tool: %s", name)
	}
}
