package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/canvasd/canvas"
)

// fontFamilies maps Excalidraw font family codes to font names. Unknown
// codes fall back to Virgil.
var fontFamilies = map[int]string{
	1: "Virgil",
	2: "Helvetica",
	3: "Cascadia",
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// SVG renders the element sequence as a standalone SVG document with a
// full-canvas white background. Elements are emitted in input order;
// elements missing any of the load-bearing fields (type, x, y, width,
// height, strokeColor, backgroundColor, strokeWidth) are skipped and
// never abort the export.
func SVG(elements []canvas.Element, width, height int) string {
	fragments := make([]string, 0, len(elements))
	for _, e := range elements {
		if frag, ok := elementSVG(e); ok {
			fragments = append(fragments, frag)
		}
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%%" height="100%%" fill="white"/>
  %s
</svg>`, width, height, width, height, strings.Join(fragments, "\n  "))
}

// elementSVG converts one element to an SVG fragment. The seven fields
// below must all be present; wrong-typed values degrade to per-field
// defaults rather than skipping the element, mirroring how the frontend
// tolerates loosely shaped records.
func elementSVG(e canvas.Element) (string, bool) {
	typ, ok := e["type"].(string)
	if !ok {
		return "", false
	}
	x, ok := numField(e, "x")
	if !ok {
		return "", false
	}
	y, ok := numField(e, "y")
	if !ok {
		return "", false
	}
	w, ok := numField(e, "width")
	if !ok {
		return "", false
	}
	h, ok := numField(e, "height")
	if !ok {
		return "", false
	}
	stroke, ok := strField(e, "strokeColor", "#000000")
	if !ok {
		return "", false
	}
	background, ok := strField(e, "backgroundColor", "transparent")
	if !ok {
		return "", false
	}
	strokeWidth, ok := numFieldDefault(e, "strokeWidth", 1)
	if !ok {
		return "", false
	}

	switch typ {
	case "rectangle":
		return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s" fill="%s" stroke="%s" stroke-width="%s"/>`,
			num(x), num(y), num(w), num(h), background, stroke, num(strokeWidth)), true

	case "ellipse":
		return fmt.Sprintf(`<ellipse cx="%s" cy="%s" rx="%s" ry="%s" fill="%s" stroke="%s" stroke-width="%s"/>`,
			num(x+w/2), num(y+h/2), num(w/2), num(h/2), background, stroke, num(strokeWidth)), true

	case "arrow", "line":
		return fmt.Sprintf(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-width="%s"/>`,
			num(x), num(y), num(x+w), num(y+h), stroke, num(strokeWidth)), true

	case "text":
		text := optString(e, "text", "[text]")
		fontSize := optNum(e, "fontSize", 16)
		family := fontFamilies[optInt(e, "fontFamily", 1)]
		if family == "" {
			family = "Virgil"
		}
		anchor := "start"
		switch optString(e, "textAlign", "left") {
		case "center":
			anchor = "middle"
		case "right":
			anchor = "end"
		}
		return fmt.Sprintf(`<text x="%s" y="%s" font-size="%s" font-family="%s" text-anchor="%s" fill="%s" dominant-baseline="hanging">%s</text>`,
			num(x), num(y), num(fontSize), family, anchor, stroke, xmlEscaper.Replace(text)), true

	default:
		// Unknown element types render as a dashed placeholder outline.
		return fmt.Sprintf(`<rect x="%s" y="%s" width="%s" height="%s" fill="none" stroke="%s" stroke-width="%s" stroke-dasharray="5,5"/>`,
			num(x), num(y), num(w), num(h), stroke, num(strokeWidth)), true
	}
}

// num formats a coordinate the way JSON numbers print: no exponent, no
// trailing zeros, integers without a decimal point.
func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// toFloat coerces the numeric shapes that reach us: float64 from JSON
// decoding, plus int variants from Go-constructed elements.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

// numField requires the key to be present; a present but non-numeric
// value degrades to 0.
func numField(e canvas.Element, key string) (float64, bool) {
	v, present := e[key]
	if !present {
		return 0, false
	}
	f, _ := toFloat(v)
	return f, true
}

// numFieldDefault requires presence; non-numeric values degrade to def.
func numFieldDefault(e canvas.Element, key string, def float64) (float64, bool) {
	v, present := e[key]
	if !present {
		return 0, false
	}
	if f, ok := toFloat(v); ok {
		return f, true
	}
	return def, true
}

// strField requires presence; non-string values degrade to def.
func strField(e canvas.Element, key, def string) (string, bool) {
	v, present := e[key]
	if !present {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return def, true
}

// optString reads an optional string field with a default.
func optString(e canvas.Element, key, def string) string {
	if s, ok := e[key].(string); ok {
		return s
	}
	return def
}

// optNum reads an optional numeric field with a default.
func optNum(e canvas.Element, key string, def float64) float64 {
	if v, present := e[key]; present {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return def
}

// optInt reads an optional integral field with a default. Fractional
// values do not count as integers.
func optInt(e canvas.Element, key string, def int) int {
	if v, present := e[key]; present {
		if f, ok := toFloat(v); ok && f == float64(int(f)) {
			return int(f)
		}
	}
	return def
}
