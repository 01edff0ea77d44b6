// Package ticketid mints opaque ticket identifiers.
//
// An identifier looks like T-lq2x9k1c-7QK2ZD: a base36 millisecond timestamp
// followed by a random base36 suffix. Only [A-Za-z0-9-] is used so the value
// survives QR encoding and URL paths untouched.
package ticketid

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	mrand "math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/spec-kit/gate-checkin/internal/clock"
)

const (
	prefix       = "T-"
	suffixLen    = 6
	suffixAlpha  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	maxTicketLen = 64
)

var pattern = regexp.MustCompile(`^T-[0-9a-z]+-[0-9A-Z]{6}$`)

// Generator produces ticket identifiers from a clock and a random source.
type Generator struct {
	clock  clock.Clock
	random io.Reader

	mu       sync.Mutex
	fallback *mrand.Rand
}

// Option customizes a Generator.
type Option func(*Generator)

// WithRandom replaces the crypto/rand reader.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

// New builds a Generator.
func New(clk clock.Clock, opts ...Option) *Generator {
	g := &Generator{clock: clk, random: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a new identifier. It never fails: when the random reader
// errors, the suffix comes from a clock-seeded PCG instead.
func (g *Generator) Generate() string {
	now := g.clock.Now()
	stamp := strconv.FormatInt(now.UnixMilli(), 36)

	buf := make([]byte, suffixLen)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		g.fillFallback(buf, uint64(now.UnixNano()))
	}

	var sb strings.Builder
	sb.Grow(len(prefix) + len(stamp) + 1 + suffixLen)
	sb.WriteString(prefix)
	sb.WriteString(stamp)
	sb.WriteByte('-')
	for _, b := range buf {
		sb.WriteByte(suffixAlpha[int(b)%len(suffixAlpha)])
	}
	return sb.String()
}

func (g *Generator) fillFallback(buf []byte, seed uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fallback == nil {
		var s [8]byte
		binary.LittleEndian.PutUint64(s[:], seed)
		g.fallback = mrand.New(mrand.NewPCG(seed, binary.BigEndian.Uint64(s[:])))
	}
	for i := range buf {
		buf[i] = byte(g.fallback.IntN(256))
	}
}

// Valid reports whether s has the shape of a generated identifier.
func Valid(s string) bool {
	return pattern.MatchString(s)
}

// Plausible reports whether s could be a ticket identifier at all: non-empty,
// bounded, printable ASCII without whitespace. Imported identifiers need not
// match the generated shape.
func Plausible(s string) bool {
	if s == "" || len(s) > maxTicketLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}
