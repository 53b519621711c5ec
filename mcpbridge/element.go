package mcpbridge

import (
	"fmt"
	"math/rand/v2"
)

// randSeed returns a positive 31-bit value for element seed/versionNonce
// fields, matching the range the frontend generates for its own elements.
func randSeed() int64 {
	return rand.Int64N(2147483646) + 1
}

// bounds computes the bounding box of a point path.
func bounds(points [][]float64) (minX, minY, width, height float64) {
	minX, minY = points[0][0], points[0][1]
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		if p[0] < minX {
			minX = p[0]
		}
		if p[0] > maxX {
			maxX = p[0]
		}
		if p[1] < minY {
			minY = p[1]
		}
		if p[1] > maxY {
			maxY = p[1]
		}
	}
	return minX, minY, maxX - minX, maxY - minY
}

// relativePoints rebases absolute points onto the path origin, dropping
// any pressure component.
func relativePoints(points [][]float64, minX, minY float64) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = []float64{p[0] - minX, p[1] - minY}
	}
	return out
}

// baseElement builds the canonical Excalidraw element skeleton shared by
// every element type the bridge creates.
func (b *Bridge) baseElement(typ string, x, y, width, height float64, strokeColor, backgroundColor string, strokeWidth float64) map[string]any {
	nowMs := b.now().UnixMilli()
	return map[string]any{
		"id":              b.newID(),
		"type":            typ,
		"x":               x,
		"y":               y,
		"width":           width,
		"height":          height,
		"angle":           0,
		"strokeColor":     strokeColor,
		"backgroundColor": backgroundColor,
		"fillStyle":       "solid",
		"strokeWidth":     strokeWidth,
		"strokeStyle":     "solid",
		"roughness":       1,
		"opacity":         100,
		"groupIds":        []any{},
		"frameId":         nil,
		"index":           fmt.Sprintf("a%d", nowMs%1000000),
		"roundness":       nil,
		"seed":            randSeed(),
		"version":         1,
		"versionNonce":    randSeed(),
		"isDeleted":       false,
		"boundElements":   nil,
		"updated":         nowMs,
		"link":            nil,
		"locked":          false,
	}
}

// freedrawElement builds a brush-stroke element from absolute points.
// Coordinates are rebased so the element's x/y is the path's top-left
// corner and the points become relative to it.
func (b *Bridge) freedrawElement(points [][]float64, strokeColor string, strokeWidth, opacity, roughness float64) map[string]any {
	minX, minY, width, height := bounds(points)
	rel := relativePoints(points, minX, minY)

	el := b.baseElement("freedraw", minX, minY, width, height, strokeColor, "transparent", strokeWidth)
	el["roughness"] = roughness
	el["opacity"] = opacity
	el["points"] = rel
	el["pressures"] = []any{}
	el["simulatePressure"] = true
	el["lastCommittedPoint"] = rel[len(rel)-1]
	return el
}

// textExtras augments a base element with text-specific fields.
func textExtras(el map[string]any, text string) {
	el["text"] = text
	el["fontSize"] = 20
	el["fontFamily"] = 1
	el["textAlign"] = "left"
	el["verticalAlign"] = "top"
	el["containerId"] = nil
	el["originalText"] = text
	el["lineHeight"] = 1.25
}

// linearExtras augments a base element with line/arrow point fields.
func linearExtras(el map[string]any, typ string, points [][]float64) {
	el["points"] = points
	el["lastCommittedPoint"] = points[len(points)-1]
	if typ == "arrow" {
		el["startArrowhead"] = nil
		el["endArrowhead"] = "arrow"
	}
}
