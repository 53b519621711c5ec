// Package server wires the canvas store, export encoders, and notification
// sink into the HTTP control plane. Handlers follow a fixed shape: decode,
// mutate the store, notify the sink, respond. The store commit always
// happens before the notify call, so a sink failure returns 500 with the
// mutation already applied.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/canvasd/audit"
	"github.com/hazyhaar/canvasd/canvas"
	"github.com/hazyhaar/canvasd/export"
	"github.com/hazyhaar/canvasd/notify"
	"github.com/hazyhaar/canvasd/shield"
)

// DefaultAddr is the loopback control-plane address.
const DefaultAddr = "127.0.0.1:31337"

// serializeFailed substitutes for canvas payloads that cannot be marshalled
// when logging pre/post state. Never surfaced as a request error.
const serializeFailed = "unable to serialize canvas data"

// Handlers holds the control plane's collaborators.
type Handlers struct {
	store *canvas.Store
	sink  notify.Sink
	log   *slog.Logger
	audit *audit.Logger
	now   func() time.Time
}

// Option configures Handlers.
type Option func(*Handlers)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.log = l }
}

// WithAudit enables business-event audit logging.
func WithAudit(a *audit.Logger) Option {
	return func(h *Handlers) { h.audit = a }
}

// WithClock overrides the export timestamp source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// New creates the control-plane handlers around store and sink.
func New(store *canvas.Store, sink notify.Sink, opts ...Option) *Handlers {
	h := &Handlers{
		store: store,
		sink:  sink,
		now:   time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	return h
}

// RegisterHTTP mounts the control-plane routes on r.
func (h *Handlers) RegisterHTTP(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/draw", h.draw)
	r.Route("/canvas", func(r chi.Router) {
		r.Get("/", h.getCanvas)
		r.Put("/", h.updateCanvas)
		r.Post("/clear", h.clearCanvas)
		r.Get("/export", h.exportCanvas)
		r.Delete("/element/{id}", h.removeElement)
		r.Put("/element/{id}", h.updateElement)
	})
}

// ListenAndServe binds addr and serves handler until ctx is cancelled.
// A bind failure is returned immediately so the caller can log it without
// taking the rest of the host process down.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: bind %s: %w", addr, err)
	}
	srv := &http.Server{Handler: handler}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

// ---

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (h *Handlers) draw(w http.ResponseWriter, r *http.Request) {
	var p canvas.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	h.store.Apply(p)

	if err := h.sink.Notify(r.Context(), notify.EventDraw, p); err != nil {
		h.emitFailed(r.Context(), "draw", "", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to emit draw event"})
		return
	}
	h.logEvent(r.Context(), "draw", "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) getCanvas(w http.ResponseWriter, r *http.Request) {
	doc := h.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]canvas.Document{"canvas": doc})
}

func (h *Handlers) updateCanvas(w http.ResponseWriter, r *http.Request) {
	var p canvas.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	log := shield.GetLogger(r.Context())
	log.Info("canvas update received", "canvas_data", marshalForLog(p))

	updatedAt := h.store.Apply(p)

	if err := h.sink.Notify(r.Context(), notify.EventDraw, p); err != nil {
		h.emitFailed(r.Context(), "update", "", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to emit draw event"})
		return
	}

	log.Info("canvas updated",
		"updated_at", updatedAt,
		"final_canvas_data", marshalForLog(h.store.Snapshot()),
	)
	h.logEvent(r.Context(), "update", "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) clearCanvas(w http.ResponseWriter, r *http.Request) {
	updatedAt := h.store.Clear()
	p := canvas.Payload{Elements: []canvas.Element{}}

	if err := h.sink.Notify(r.Context(), notify.EventDraw, p); err != nil {
		h.emitFailed(r.Context(), "clear", "", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to emit clear event"})
		return
	}

	shield.GetLogger(r.Context()).Info("canvas cleared",
		"updated_at", updatedAt,
		"final_canvas_data", marshalForLog(h.store.Snapshot()),
	)
	h.logEvent(r.Context(), "clear", "")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) exportCanvas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := string(export.FormatSVG)
	if q.Has("format") {
		format = q.Get("format")
	}
	width, err := queryDim(q, "width", export.DefaultWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := queryDim(q, "height", export.DefaultHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	doc := h.store.Snapshot()
	elements := doc.Elements
	if elements == nil {
		elements = []canvas.Element{}
	}

	switch f {
	case export.FormatSVG:
		svg := export.SVG(elements, width, height)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Content-Disposition", `inline; filename="canvas.svg"`)
		w.Write([]byte(svg))

	case export.FormatJSON:
		w.Header().Set("Content-Disposition", `attachment; filename="canvas.excalidraw"`)
		writeJSON(w, http.StatusOK, export.JSONSnapshot(doc, h.now()))

	case export.FormatDataURL:
		writeJSON(w, http.StatusOK, export.ToDataURL(elements, width, height, h.now()))

	default:
		writeError(w, http.StatusNotImplemented, &export.NotImplementedError{Format: f})
	}
}

func (h *Handlers) removeElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	updated, found := h.store.RemoveElement(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("Element with ID '%s' not found", id),
		})
		return
	}

	p := canvas.Payload{Elements: updated}
	if err := h.sink.Notify(r.Context(), notify.EventDraw, p); err != nil {
		h.emitFailed(r.Context(), "element_delete", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to emit remove event"})
		return
	}

	h.logEvent(r.Context(), "element_delete", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Element '%s' removed", id),
	})
}

func (h *Handlers) updateElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Element canvas.Element `json:"element"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	updated, found := h.store.UpdateElement(id, req.Element)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("Element with ID '%s' not found", id),
		})
		return
	}

	p := canvas.Payload{Elements: updated}
	if err := h.sink.Notify(r.Context(), notify.EventDraw, p); err != nil {
		h.emitFailed(r.Context(), "element_update", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to emit update event"})
		return
	}

	h.logEvent(r.Context(), "element_update", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Element '%s' updated", id),
	})
}

// ---

func (h *Handlers) logEvent(ctx context.Context, action, elementID string) {
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(ctx, audit.Event{
		Action:    action,
		ElementID: elementID,
		Success:   true,
	})
}

func (h *Handlers) emitFailed(ctx context.Context, action, elementID string, err error) {
	h.log.Error("notify sink failed", "action", action, "error", err)
	if h.audit == nil {
		return
	}
	h.audit.LogEvent(ctx, audit.Event{
		Action:    action,
		ElementID: elementID,
		Success:   false,
		Details:   err.Error(),
	})
}

// marshalForLog serializes v for structured log fields, substituting a
// fixed placeholder when marshalling fails.
func marshalForLog(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return serializeFailed
	}
	return string(b)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// queryDim reads a dimension parameter. An absent key yields the default;
// a present key must parse as a positive integer.
func queryDim(q url.Values, key string, def int) (int, error) {
	if !q.Has(key) {
		return def, nil
	}
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: %q", key, q.Get(key))
	}
	return n, nil
}
