// Package export converts canvas state into output encodings: SVG markup,
// an Excalidraw-compatible JSON snapshot, and a base64 SVG data URL.
//
// Everything here is pure and deterministic given its input; the caller
// supplies the export timestamp. Raster formats (png, jpeg, webp) are
// recognized but deliberately unimplemented — they yield a
// NotImplementedError, distinct from the UnsupportedFormatError returned
// for unknown format strings.
package export

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/hazyhaar/canvasd/canvas"
)

// Format identifies an export encoding.
type Format string

const (
	FormatSVG     Format = "svg"
	FormatJSON    Format = "json"
	FormatDataURL Format = "toDataURL"
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatWebP    Format = "webp"
)

// Default export dimensions, applied when the caller omits them.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// UnsupportedFormatError is returned for format strings outside the
// recognized set. Maps to HTTP 400.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("Unsupported format: %s. Supported formats: svg, json, toDataURL, png, jpeg, webp", e.Format)
}

// NotImplementedError is returned for raster formats, which the encoder
// recognizes but does not render. Maps to HTTP 501.
type NotImplementedError struct {
	Format Format
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("Format '%s' not yet implemented. Use 'svg' or 'json' instead.", e.Format)
}

// ParseFormat validates a format string. Raster formats parse successfully;
// rendering them is where NotImplementedError comes from.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatSVG, FormatJSON, FormatDataURL, FormatPNG, FormatJPEG, FormatWebP:
		return Format(s), nil
	default:
		return "", &UnsupportedFormatError{Format: s}
	}
}

// Snapshot is the JSON export body, written as a .excalidraw attachment.
type Snapshot struct {
	Elements   []canvas.Element `json:"elements"`
	AppState   map[string]any   `json:"appState"`
	Files      map[string]any   `json:"files"`
	ExportedAt string           `json:"exported_at"`
	Format     string           `json:"format"`
}

// JSONSnapshot projects a document into its export form. An absent
// element sequence exports as an empty one.
func JSONSnapshot(doc canvas.Document, exportedAt time.Time) Snapshot {
	return Snapshot{
		Elements:   orEmpty(doc.Elements),
		AppState:   doc.AppState,
		Files:      doc.Files,
		ExportedAt: exportedAt.UTC().Format(time.RFC3339),
		Format:     "excalidraw",
	}
}

// DataURL is the toDataURL export body.
type DataURL struct {
	DataURL    string `json:"dataURL"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	ExportedAt string `json:"exported_at"`
}

// ToDataURL renders the elements as SVG and wraps the base64 encoding in
// a data:image/svg+xml;base64 URL.
func ToDataURL(elements []canvas.Element, width, height int, exportedAt time.Time) DataURL {
	svg := SVG(elements, width, height)
	return DataURL{
		DataURL:    "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		Width:      width,
		Height:     height,
		Format:     "svg",
		ExportedAt: exportedAt.UTC().Format(time.RFC3339),
	}
}

func orEmpty(elems []canvas.Element) []canvas.Element {
	if elems == nil {
		return []canvas.Element{}
	}
	return elems
}
