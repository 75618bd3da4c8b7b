package lifecycle

import (
	"sync"
	"time"
)

// Clock supplies the tick, in seconds since the Unix epoch, that the engine
// evaluates control windows against.
type Clock interface {
	Now() int64
}

// Stepper is implemented by clocks that only move when told to. Run calls
// Step before every tick.
type Stepper interface {
	Step()
}

// WallClock reads the system clock.
type WallClock struct{}

// Now implements Clock.
func (WallClock) Now() int64 { return time.Now().Unix() }

// SimulatedClock is a manually driven clock for tests and demos.
type SimulatedClock struct {
	mu   sync.Mutex
	now  int64
	step int64
}

// NewSimulatedClock creates a clock reading start. Each Step advances it by
// step seconds; a zero step leaves it for Set and Advance to move.
func NewSimulatedClock(start, step int64) *SimulatedClock {
	return &SimulatedClock{now: start, step: step}
}

// Now implements Clock.
func (c *SimulatedClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *SimulatedClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d seconds and returns the new reading.
func (c *SimulatedClock) Advance(d int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Step implements Stepper.
func (c *SimulatedClock) Step() {
	c.Advance(c.step)
}
