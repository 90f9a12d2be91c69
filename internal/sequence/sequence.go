// Package sequence allocates customer numbers.
//
// A Generator never returns a value twice and never returns a value at
// or below the persisted high-water mark it is given, so restarting the
// process or deleting the newest client cannot reissue a number.
package sequence

import (
	"errors"
	"math"
	"sync"
)

// ErrExhausted is returned once the int64 range is used up.
var ErrExhausted = errors.New("sequence exhausted")

// Generator hands out strictly increasing customer numbers.
//
// Thread-safety: Generator is safe for concurrent use. The store still
// calls Next under its own mutation lock so that reading the floor and
// persisting the result happen as one step.
type Generator struct {
	mu   sync.Mutex
	last int64
}

// New creates a generator that has returned nothing yet.
func New() *Generator {
	return &Generator{}
}

// NewAt creates a generator that behaves as if it had already returned
// start. Used when the caller knows the high-water mark up front.
func NewAt(start int64) *Generator {
	return &Generator{last: start}
}

// Next returns a value greater than floor and greater than every value
// returned before. floor is the persisted high-water mark.
func (g *Generator) Next(floor int64) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	base := g.last
	if floor > base {
		base = floor
	}
	if base == math.MaxInt64 {
		return 0, ErrExhausted
	}
	g.last = base + 1
	return g.last, nil
}

// Current returns the last value handed out, or the start value.
func (g *Generator) Current() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
