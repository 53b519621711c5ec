// Package canvas owns the single shared drawing document of a canvasd
// process: an ordered element list, an opaque view state, embedded file
// references, and a last-update timestamp.
//
// The document is exclusively owned by a Store. All reads and writes go
// through the Store's mutex; reads hand out deep copies so callers can
// never alias live state. Element records are opaque string-keyed maps —
// the store only ever interprets the "id" key, and only when an element
// is addressed individually. Unknown element shapes survive round-trips
// without loss.
package canvas

import (
	"sync"
	"time"
)

// Element is one opaque drawable record. The store treats it as a blob;
// only the optional "id" key is meaningful for element-level operations.
type Element map[string]any

// ID returns the element's "id" value when it is present and a string.
func (e Element) ID() (string, bool) {
	id, ok := e["id"].(string)
	return id, ok
}

// Document is the full canvas state. Nil Elements/AppState/Files mean
// "absent" and marshal as JSON null, matching the wire format the
// desktop frontend expects.
type Document struct {
	Elements  []Element      `json:"elements"`
	AppState  map[string]any `json:"appState"`
	Files     map[string]any `json:"files"`
	UpdatedAt string         `json:"updated_at"`
}

// Payload is a partial mutation as submitted by a caller: each nil field
// is absent and leaves the corresponding document field untouched.
// Change notifications carry the payload as given, not the merged
// document.
type Payload struct {
	Elements []Element      `json:"elements"`
	AppState map[string]any `json:"appState"`
	Files    map[string]any `json:"files"`
}

// Store guards the process-wide Document. One exclusive lock serializes
// readers and writers both: reads return a full clone and writes touch
// several fields together, so a shared read lock buys nothing here.
type Store struct {
	mu  sync.Mutex
	doc Document
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates the document store. The document starts with all
// fields absent and updated_at set to the current time.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.doc.UpdatedAt = s.timestamp()
	return s
}

// timestamp formats the current time with sub-second precision, so two
// mutations landing in the same wall-clock second still get distinct
// updated_at values.
func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// Snapshot returns a deep copy of the current document.
func (s *Store) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Document{
		Elements:  cloneElements(s.doc.Elements),
		AppState:  cloneMap(s.doc.AppState),
		Files:     cloneMap(s.doc.Files),
		UpdatedAt: s.doc.UpdatedAt,
	}
}

// Elements returns a deep copy of the current element sequence (nil when
// absent).
func (s *Store) Elements() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneElements(s.doc.Elements)
}

// Apply overwrites each document field that is present in the payload,
// leaves absent fields untouched, and refreshes updated_at. It returns
// the refreshed timestamp.
func (s *Store) Apply(p Payload) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Elements != nil {
		s.doc.Elements = cloneElements(p.Elements)
	}
	if p.AppState != nil {
		s.doc.AppState = cloneMap(p.AppState)
	}
	if p.Files != nil {
		s.doc.Files = cloneMap(p.Files)
	}
	s.doc.UpdatedAt = s.timestamp()
	return s.doc.UpdatedAt
}

// Clear resets the document: elements become an empty sequence, view
// state and files become absent, updated_at refreshes.
func (s *Store) Clear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Elements = []Element{}
	s.doc.AppState = nil
	s.doc.Files = nil
	s.doc.UpdatedAt = s.timestamp()
	return s.doc.UpdatedAt
}

// RemoveElement deletes every element whose "id" equals id, in one
// critical section so concurrent element operations on distinct ids never
// lose each other's writes. It returns a deep copy of the resulting
// sequence, or found=false (and no mutation) when nothing matched.
func (s *Store) RemoveElement(id string) ([]Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, found := RemoveByID(s.doc.Elements, id)
	if !found {
		return nil, false
	}
	s.doc.Elements = next
	s.doc.UpdatedAt = s.timestamp()
	return cloneElements(next), true
}

// UpdateElement replaces every element whose "id" equals id with repl,
// preserving positions, in one critical section. It returns a deep copy
// of the resulting sequence, or found=false (and no mutation) when
// nothing matched.
func (s *Store) UpdateElement(id string, repl Element) ([]Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, found := ReplaceByID(s.doc.Elements, id, Element(cloneMap(repl)))
	if !found {
		return nil, false
	}
	s.doc.Elements = next
	s.doc.UpdatedAt = s.timestamp()
	return cloneElements(next), true
}

// RemoveByID returns elems minus every entry whose "id" equals id.
// Entries without an "id" key are always kept. The second return
// reports whether anything matched. Pure: the input is not modified.
//
// Operating on the whole sequence means duplicate ids are all removed
// in one pass, not just the first match.
func RemoveByID(elems []Element, id string) ([]Element, bool) {
	next := make([]Element, 0, len(elems))
	found := false
	for _, e := range elems {
		if eid, ok := e.ID(); ok && eid == id {
			found = true
			continue
		}
		next = append(next, e)
	}
	return next, found
}

// ReplaceByID returns elems with every entry whose "id" equals id
// replaced by repl, preserving positions. Entries without an "id" key
// are kept as-is. The second return reports whether anything matched.
func ReplaceByID(elems []Element, id string, repl Element) ([]Element, bool) {
	next := make([]Element, 0, len(elems))
	found := false
	for _, e := range elems {
		if eid, ok := e.ID(); ok && eid == id {
			next = append(next, repl)
			found = true
			continue
		}
		next = append(next, e)
	}
	return next, found
}

func cloneElements(elems []Element) []Element {
	if elems == nil {
		return nil
	}
	out := make([]Element, len(elems))
	for i, e := range elems {
		out[i] = Element(cloneMap(e))
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the JSON value shapes produced by encoding/json
// (maps, slices, scalars). Element maps decode to map[string]any, so this
// covers everything a payload can carry.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Element:
		return Element(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
