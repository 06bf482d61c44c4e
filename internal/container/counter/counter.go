// Package counter implements the Counter container of spec.md §4.3.5: a
// grow-only accumulator of signed increments, summed as a 64-bit float.
// Associativity across merge orders is not guaranteed at the ULP level,
// which spec.md documents as an accepted limitation rather than a defect
// (see SPEC_FULL.md §E.2).
package counter

import "sync"

// Counter holds the applied increments; integrate and apply_local are the
// same operation here (increments commute regardless of origin), unlike
// the LWW containers where local vs remote stamps matter.
type Counter struct {
	mu    sync.Mutex
	value float64
	count int
}

func New() *Counter { return &Counter{} }

// Add applies a signed increment.
func (c *Counter) Add(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
	c.count++
}

// Value returns the current running sum.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// AppliedCount returns how many increments have been applied, for
// diagnostics and for undo's inverse-increment bookkeeping.
func (c *Counter) AppliedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
