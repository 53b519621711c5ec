// Package notify carries canvas change events to the host application.
//
// The control plane fires exactly one notification per successful
// mutation, after the store commit and outside the store lock. Delivery
// is a two-phase contract: phase 1 (the commit) always stands; phase 2
// (the notification) is best-effort, and a delivery failure downgrades
// the HTTP response to a 500 without rolling the commit back. Because
// the lock is released before delivery, notification order is not
// guaranteed to match commit order under concurrent mutations.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hazyhaar/canvasd/canvas"
)

// EventDraw is the single event the desktop frontend listens for. Every
// mutation — draw, update, clear, element ops — emits it; the payload
// distinguishes what changed.
const EventDraw = "excalidraw_draw"

// Sink delivers one change event to the host application.
type Sink interface {
	Notify(ctx context.Context, event string, payload canvas.Payload) error
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, event string, payload canvas.Payload) error

func (f Func) Notify(ctx context.Context, event string, payload canvas.Payload) error {
	return f(ctx, event, payload)
}

// Log is a Sink that records events on a structured logger and never
// fails. It is the default when no webhook target is configured, so a
// bare canvasd still exposes the full HTTP contract.
type Log struct {
	Logger *slog.Logger
}

func (l *Log) Notify(ctx context.Context, event string, payload canvas.Payload) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "canvas event",
		"event", event,
		"elements", len(payload.Elements),
		"has_app_state", payload.AppState != nil,
		"has_files", payload.Files != nil)
	return nil
}

// Multi fans an event out to several sinks. Every sink is attempted;
// the joined errors are returned.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, event string, payload canvas.Payload) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
