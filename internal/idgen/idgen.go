// Package idgen generates time-ordered identifiers (UUIDv7).
package idgen

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Generator produces UUIDv7 strings from its own clock and entropy source.
// It holds no counters, so concurrent use needs no locking as long as the
// reader is safe for concurrent use (crypto/rand.Reader is).
type Generator struct {
	now  func() time.Time
	rand io.Reader
}

// New returns a Generator backed by time.Now and crypto/rand.
func New() *Generator {
	return &Generator{now: time.Now, rand: rand.Reader}
}

// NewWith is New with an explicit clock and entropy source; nil keeps the default.
func NewWith(now func() time.Time, r io.Reader) *Generator {
	g := New()
	if now != nil {
		g.now = now
	}
	if r != nil {
		g.rand = r
	}
	return g
}

// NewUUID returns a version 7 UUID: 48 bits of unix milliseconds followed by
// 74 random bits, with version and variant bits set per RFC 9562.
func (g *Generator) NewUUID() (uuid.UUID, error) {
	var id uuid.UUID
	if _, err := io.ReadFull(g.rand, id[6:]); err != nil {
		return uuid.Nil, fmt.Errorf("failed to read entropy: %w", err)
	}

	ms := uint64(g.now().UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)

	id[6] = (id[6] & 0x0f) | 0x70 // version 7
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 9562 variant
	return id, nil
}

// NewID is NewUUID in canonical string form.
func (g *Generator) NewID() (string, error) {
	id, err := g.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Timestamp extracts the embedded millisecond timestamp of a v7 id.
func Timestamp(id uuid.UUID) time.Time {
	ms := int64(id[0])<<40 | int64(id[1])<<32 | int64(id[2])<<24 |
		int64(id[3])<<16 | int64(id[4])<<8 | int64(id[5])
	return time.UnixMilli(ms)
}
