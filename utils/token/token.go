// Package token generates the random correlation tokens some upstream sites
// expect on stream requests. The generator is an interface so tests can
// substitute a deterministic one.
package token

import "github.com/google/uuid"

// Generator produces opaque correlation tokens.
type Generator interface {
	Token() string
}

// UUIDGenerator returns version-4 UUID tokens.
type UUIDGenerator struct{}

func (UUIDGenerator) Token() string {
	return uuid.NewString()
}

// Fixed always returns the same token. Test use only.
type Fixed string

func (f Fixed) Token() string { return string(f) }
