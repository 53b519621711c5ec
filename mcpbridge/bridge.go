// Package mcpbridge exposes the canvasd control plane as MCP tools over
// stdio. Every tool is a thin front for the HTTP API: reads go through
// GET /canvas, element creation composes GET + PUT, and element-level
// operations call the dedicated endpoints.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/canvasd/canvas"
	"github.com/hazyhaar/canvasd/idgen"
	"github.com/hazyhaar/canvasd/kit"
)

// Bridge holds the MCP tool implementations.
type Bridge struct {
	client *Client
	log    *slog.Logger
	newID  idgen.Generator
	now    func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithIDGenerator overrides the element id generator. Test hook.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(b *Bridge) { b.newID = gen }
}

// WithClock overrides the timestamp source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// New creates a Bridge talking to the control plane through client.
func New(client *Client, opts ...Option) *Bridge {
	b := &Bridge{
		client: client,
		newID:  idgen.ElementID(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

// RegisterMCP registers the canvas tools on an MCP server.
func (b *Bridge) RegisterMCP(srv *mcp.Server) {
	b.registerHealthCheck(srv)
	b.registerGetCanvas(srv)
	b.registerUpdateCanvas(srv)
	b.registerClearCanvas(srv)
	b.registerExportCanvas(srv)
	b.registerDrawWithBrush(srv)
	b.registerCreateElement(srv)
	b.registerGetElementByID(srv)
	b.registerUpdateAppState(srv)
	b.registerRemoveElement(srv)
	b.registerUpdateElement(srv)
}

func (b *Bridge) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	endpoint = kit.Chain(kit.Logging(b.log, tool.Name))(endpoint)
	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeNone(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{Request: nil}, nil
}

func decodeInto[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var r T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &r}, nil
}

// --- health_check ---

func (b *Bridge) registerHealthCheck(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "health_check",
		Description: "Check server status (GET /health)",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		body, err := b.client.Health(ctx)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Server is healthy: %s", body), nil
	}

	b.register(srv, tool, endpoint, decodeNone)
}

// --- get_canvas ---

func (b *Bridge) registerGetCanvas(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_canvas",
		Description: "Get current canvas data (GET /canvas)",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		doc, err := b.client.GetCanvas(ctx)
		if err != nil {
			return nil, err
		}
		updated := doc.UpdatedAt
		if updated == "" {
			updated = "unknown"
		}
		return fmt.Sprintf("Canvas data\nElements count: %d\nUpdated at: %s", len(doc.Elements), updated), nil
	}

	b.register(srv, tool, endpoint, decodeNone)
}

// --- update_canvas ---

type updateCanvasReq struct {
	Elements []canvas.Element `json:"elements"`
	AppState map[string]any   `json:"appState"`
	Files    map[string]any   `json:"files"`
}

func (b *Bridge) registerUpdateCanvas(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "update_canvas",
		Description: "Update canvas data (PUT /canvas)",
		InputSchema: inputSchema(map[string]any{
			"elements": map[string]any{"type": "array", "description": "Array of drawing elements"},
			"appState": map[string]any{"type": "object", "description": "Application state including viewport and UI settings"},
			"files":    map[string]any{"type": "object", "description": "File attachments keyed by file ID"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateCanvasReq)
		err := b.client.UpdateCanvas(ctx, canvas.Payload{
			Elements: r.Elements,
			AppState: r.AppState,
			Files:    r.Files,
		})
		if err != nil {
			return nil, err
		}
		return "Canvas updated successfully", nil
	}

	b.register(srv, tool, endpoint, decodeInto[updateCanvasReq])
}

// --- clear_canvas ---

func (b *Bridge) registerClearCanvas(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "clear_canvas",
		Description: "Clear canvas (POST /canvas/clear)",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		if err := b.client.ClearCanvas(ctx); err != nil {
			return nil, err
		}
		return "Canvas cleared successfully", nil
	}

	b.register(srv, tool, endpoint, decodeNone)
}

// --- export_canvas ---

type exportCanvasReq struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (b *Bridge) registerExportCanvas(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "export_canvas",
		Description: "Export canvas as toDataURL format (GET /canvas/export)",
		InputSchema: inputSchema(map[string]any{
			"format": map[string]any{"type": "string", "enum": []string{"toDataURL"}, "default": "toDataURL"},
			"width":  map[string]any{"type": "integer", "minimum": 1, "maximum": 4096, "default": 800},
			"height": map[string]any{"type": "integer", "minimum": 1, "maximum": 4096, "default": 600},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*exportCanvasReq)
		if r.Format != "" && r.Format != "toDataURL" {
			return nil, fmt.Errorf("unsupported format: %s, only toDataURL format is supported", r.Format)
		}
		width, height := r.Width, r.Height
		if width == 0 {
			width = 800
		}
		if height == 0 {
			height = 600
		}

		out, err := b.client.ExportDataURL(ctx, width, height)
		if err != nil {
			return nil, err
		}
		preview := out.DataURL
		if len(preview) > 100 {
			preview = preview[:100] + "..."
		}
		return fmt.Sprintf("toDataURL export successful\nSize: %dx%d\nData URL length: %d characters\n\nData URL preview:\n%s",
			width, height, len(out.DataURL), preview), nil
	}

	b.register(srv, tool, endpoint, decodeInto[exportCanvasReq])
}

// --- draw_with_brush ---

type drawWithBrushReq struct {
	Points      [][]float64 `json:"points"`
	StrokeColor string      `json:"strokeColor"`
	StrokeWidth *float64    `json:"strokeWidth"`
	Opacity     *float64    `json:"opacity"`
	Roughness   *float64    `json:"roughness"`
}

func (b *Bridge) registerDrawWithBrush(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "draw_with_brush",
		Description: "Draw with brush tool (create freedraw element)",
		InputSchema: inputSchema(map[string]any{
			"points": map[string]any{
				"type":        "array",
				"description": "Array of path points [x, y] or [x, y, pressure]",
				"minItems":    2,
			},
			"strokeColor": map[string]any{"type": "string", "default": "#1e1e1e"},
			"strokeWidth": map[string]any{"type": "number", "minimum": 1, "maximum": 50, "default": 2},
			"opacity":     map[string]any{"type": "number", "minimum": 0, "maximum": 100, "default": 100},
			"roughness":   map[string]any{"type": "number", "minimum": 0, "maximum": 2, "default": 1},
		}, []string{"points"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*drawWithBrushReq)
		if err := validatePoints(r.Points, 2); err != nil {
			return nil, fmt.Errorf("brush stroke: %w", err)
		}
		strokeColor := r.StrokeColor
		if strokeColor == "" {
			strokeColor = "#1e1e1e"
		}
		el := b.freedrawElement(r.Points, strokeColor,
			orDefault(r.StrokeWidth, 2),
			orDefault(r.Opacity, 100),
			orDefault(r.Roughness, 1))

		if err := b.appendElement(ctx, el); err != nil {
			return nil, err
		}
		return fmt.Sprintf("Brush stroke created successfully\nElement ID: %s\nPoints: %d points\nColor: %s\nWidth: %s",
			el["id"], len(r.Points), strokeColor, num(orDefault(r.StrokeWidth, 2))), nil
	}

	b.register(srv, tool, endpoint, decodeInto[drawWithBrushReq])
}

// --- create_element ---

type createElementReq struct {
	ElementType     string      `json:"elementType"`
	X               *float64    `json:"x"`
	Y               *float64    `json:"y"`
	Width           *float64    `json:"width"`
	Height          *float64    `json:"height"`
	StrokeColor     string      `json:"strokeColor"`
	BackgroundColor string      `json:"backgroundColor"`
	StrokeWidth     *float64    `json:"strokeWidth"`
	Text            string      `json:"text"`
	Points          [][]float64 `json:"points"`
}

func (b *Bridge) registerCreateElement(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "create_element",
		Description: "Create a new canvas element (supports multiple types)",
		InputSchema: inputSchema(map[string]any{
			"elementType": map[string]any{
				"type": "string",
				"enum": []string{"rectangle", "ellipse", "arrow", "line", "text", "freedraw"},
			},
			"x":               map[string]any{"type": "number"},
			"y":               map[string]any{"type": "number"},
			"width":           map[string]any{"type": "number", "minimum": 1, "default": 100},
			"height":          map[string]any{"type": "number", "minimum": 1, "default": 100},
			"strokeColor":     map[string]any{"type": "string", "default": "#1e1e1e"},
			"backgroundColor": map[string]any{"type": "string", "default": "transparent"},
			"strokeWidth":     map[string]any{"type": "number", "minimum": 1, "maximum": 50, "default": 2},
			"text":            map[string]any{"type": "string", "description": "Text content (for text elements)"},
			"points":          map[string]any{"type": "array", "description": "Points array (for line/arrow/freedraw elements)"},
		}, []string{"elementType", "x", "y"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*createElementReq)
		if r.ElementType == "" || r.X == nil || r.Y == nil {
			return nil, fmt.Errorf("missing required parameters: elementType, x, y")
		}
		strokeColor := r.StrokeColor
		if strokeColor == "" {
			strokeColor = "#1e1e1e"
		}
		backgroundColor := r.BackgroundColor
		if backgroundColor == "" {
			backgroundColor = "transparent"
		}
		x, y := *r.X, *r.Y
		width := orDefault(r.Width, 100)
		height := orDefault(r.Height, 100)

		el := b.baseElement(r.ElementType, x, y, width, height,
			strokeColor, backgroundColor, orDefault(r.StrokeWidth, 2))

		switch r.ElementType {
		case "text":
			textExtras(el, r.Text)
		case "line", "arrow":
			if err := validatePoints(r.Points, 2); err != nil {
				return nil, fmt.Errorf("%s elements require at least 2 points", r.ElementType)
			}
			linearExtras(el, r.ElementType, r.Points)
		case "freedraw":
			if err := validatePoints(r.Points, 2); err != nil {
				return nil, fmt.Errorf("freedraw elements require at least 2 points")
			}
			minX, minY, w, h := bounds(r.Points)
			rel := relativePoints(r.Points, minX, minY)
			el["x"] = minX
			el["y"] = minY
			el["width"] = w
			el["height"] = h
			el["points"] = rel
			el["pressures"] = []any{}
			el["simulatePressure"] = true
			el["lastCommittedPoint"] = rel[len(rel)-1]
		}

		if err := b.appendElement(ctx, el); err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s element created successfully\nElement ID: %s\nPosition: (%s, %s)\nSize: %sx%s",
			capitalize(r.ElementType), el["id"], num(x), num(y), num(width), num(height)), nil
	}

	b.register(srv, tool, endpoint, decodeInto[createElementReq])
}

// --- get_element_by_id ---

type elementIDReq struct {
	ElementID string `json:"element_id"`
}

func (b *Bridge) registerGetElementByID(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_element_by_id",
		Description: "Get specific element by ID",
		InputSchema: inputSchema(map[string]any{
			"element_id": map[string]any{"type": "string", "minLength": 1},
		}, []string{"element_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementIDReq)
		if r.ElementID == "" {
			return nil, fmt.Errorf("missing element_id parameter")
		}
		doc, err := b.client.GetCanvas(ctx)
		if err != nil {
			return nil, err
		}
		for _, el := range doc.Elements {
			if id, ok := el.ID(); ok && id == r.ElementID {
				data, err := json.MarshalIndent(el, "", "  ")
				if err != nil {
					return nil, fmt.Errorf("marshal element: %w", err)
				}
				return fmt.Sprintf("Element found\nID: %s\nType: %v\nPosition: (%v, %v)\nSize: %vx%v\n\nFull element data:\n%s",
					r.ElementID, el["type"], el["x"], el["y"], el["width"], el["height"], data), nil
			}
		}
		return nil, &NotFoundError{ID: r.ElementID}
	}

	b.register(srv, tool, endpoint, decodeInto[elementIDReq])
}

// --- update_app_state ---

type updateAppStateReq struct {
	StateUpdates map[string]any `json:"stateUpdates"`
}

func (b *Bridge) registerUpdateAppState(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "update_app_state",
		Description: "Update application state (theme, zoom, etc.)",
		InputSchema: inputSchema(map[string]any{
			"stateUpdates": map[string]any{"type": "object", "description": "State fields to merge into appState"},
		}, []string{"stateUpdates"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateAppStateReq)
		if len(r.StateUpdates) == 0 {
			return nil, fmt.Errorf("missing stateUpdates parameter")
		}
		doc, err := b.client.GetCanvas(ctx)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]any, len(doc.AppState)+len(r.StateUpdates))
		for k, v := range doc.AppState {
			merged[k] = v
		}
		for k, v := range r.StateUpdates {
			merged[k] = v
		}
		err = b.client.UpdateCanvas(ctx, canvas.Payload{
			Elements: doc.Elements,
			AppState: merged,
			Files:    doc.Files,
		})
		if err != nil {
			return nil, err
		}
		fields := make([]string, 0, len(r.StateUpdates))
		for k := range r.StateUpdates {
			fields = append(fields, k)
		}
		sort.Strings(fields)
		return fmt.Sprintf("App state updated successfully\nUpdated fields: %s", strings.Join(fields, ", ")), nil
	}

	b.register(srv, tool, endpoint, decodeInto[updateAppStateReq])
}

// --- remove_element ---

func (b *Bridge) registerRemoveElement(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "remove_element",
		Description: "Remove element by specified ID",
		InputSchema: inputSchema(map[string]any{
			"element_id": map[string]any{"type": "string", "pattern": "^[a-zA-Z0-9_-]+$", "minLength": 1, "maxLength": 100},
		}, []string{"element_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*elementIDReq)
		if r.ElementID == "" {
			return nil, fmt.Errorf("missing element_id parameter")
		}
		msg, err := b.client.RemoveElement(ctx, r.ElementID)
		if err != nil {
			return nil, err
		}
		return msg, nil
	}

	b.register(srv, tool, endpoint, decodeInto[elementIDReq])
}

// --- update_element ---

type updateElementReq struct {
	ElementID   string         `json:"element_id"`
	ElementData canvas.Element `json:"element_data"`
}

func (b *Bridge) registerUpdateElement(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "update_element",
		Description: "Update element by specified ID",
		InputSchema: inputSchema(map[string]any{
			"element_id":   map[string]any{"type": "string", "pattern": "^[a-zA-Z0-9_-]+$", "minLength": 1, "maxLength": 100},
			"element_data": map[string]any{"type": "object", "description": "Updated element properties", "additionalProperties": true},
		}, []string{"element_id", "element_data"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*updateElementReq)
		if r.ElementID == "" {
			return nil, fmt.Errorf("missing element_id parameter")
		}
		if len(r.ElementData) == 0 {
			return nil, fmt.Errorf("missing element_data parameter")
		}
		msg, err := b.client.UpdateElement(ctx, r.ElementID, r.ElementData)
		if err != nil {
			return nil, err
		}
		return msg, nil
	}

	b.register(srv, tool, endpoint, decodeInto[updateElementReq])
}

// ---

// appendElement fetches the current canvas and writes it back with el
// appended. The full document round-trip mirrors how the frontend itself
// adds elements, so appState and files survive the write.
func (b *Bridge) appendElement(ctx context.Context, el map[string]any) error {
	doc, err := b.client.GetCanvas(ctx)
	if err != nil {
		return err
	}
	elements := append(doc.Elements, canvas.Element(el))
	return b.client.UpdateCanvas(ctx, canvas.Payload{
		Elements: elements,
		AppState: doc.AppState,
		Files:    doc.Files,
	})
}

func validatePoints(points [][]float64, min int) error {
	if len(points) < min {
		return fmt.Errorf("at least %d points required", min)
	}
	for i, p := range points {
		if len(p) < 2 {
			return fmt.Errorf("point %d needs x and y coordinates", i)
		}
	}
	return nil
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
