// Package gate validates uploads before any expensive work begins.
package gate

import (
	"errors"
	"strings"
)

var (
	// ErrTooLarge indicates the upload exceeds the configured ceiling.
	ErrTooLarge = errors.New("file too large")
	// ErrTooSmall guards against empty/garbage uploads before decode is attempted.
	ErrTooSmall = errors.New("file too small")
	// ErrUnsupportedType indicates the declared content type is not accepted.
	ErrUnsupportedType = errors.New("unsupported image format")
)

// Gate checks declared upload metadata: byte length and content type only.
// It never decodes; a lying Content-Type surfaces later as a decode error.
type Gate struct {
	maxBytes int64
	minBytes int64
	allowed  map[string]struct{}
}

// New builds a gate from the configured limits and allowed MIME types.
func New(maxBytes, minBytes int64, allowedTypes []string) *Gate {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &Gate{maxBytes: maxBytes, minBytes: minBytes, allowed: allowed}
}

// Check validates size and declared content type, short-circuiting on the
// first failure. Size checks run before the type check, so a 50-byte
// upload is rejected as too small whatever it claims to be.
func (g *Gate) Check(size int64, contentType string) error {
	if size > g.maxBytes {
		return ErrTooLarge
	}
	if size < g.minBytes {
		return ErrTooSmall
	}

	// Strip parameters like "; charset=binary" before the set lookup.
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if _, ok := g.allowed[mime]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// MaxBytes returns the configured upload ceiling.
func (g *Gate) MaxBytes() int64 {
	return g.maxBytes
}
