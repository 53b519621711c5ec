// Package idgen provides pluggable ID generation for canvasd.
//
// Constructors across the repo (audit, mcpbridge) accept a Generator, so
// the ID strategy is a startup-time decision and tests can pin
// deterministic ids.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// elementAlphabet matches the character set Excalidraw uses for element
// ids: letters, digits, hyphen, underscore.
const elementAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// ElementIDLength is the length of generated element ids.
const ElementIDLength = 20

// ElementID returns a Generator producing Excalidraw-style element ids:
// 20 characters over [a-zA-Z0-9_-]. The frontend treats these as opaque,
// but keeping the shape identical means elements created through the MCP
// bridge are indistinguishable from ones drawn by hand.
func ElementID() Generator {
	return func() string {
		buf := make([]byte, ElementIDLength)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, ElementIDLength)
		for i, b := range buf {
			out[i] = elementAlphabet[int(b)%len(elementAlphabet)]
		}
		return string(out)
	}
}

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings:
// time-sortable, globally unique. Used for audit event ids.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Useful for type-scoped identifiers (e.g. "evt_", "req_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the repo default generator: UUIDv7.
var Default Generator = UUIDv7()
