package registry

import (
	"math"
	"sync/atomic"
)

// WorldClock is the simulated time source shared by all systems.
//
// Time only moves when the registry ticks, so a scenario replayed with
// the same tick sequence observes the same timestamps.
//
// Thread-safety: WorldClock is safe for concurrent use (atomic operations).
type WorldClock struct {
	bits  atomic.Uint64
	ticks atomic.Int64
}

// NewWorldClock creates a clock at time zero.
func NewWorldClock() *WorldClock {
	return &WorldClock{}
}

// NewWorldClockAt creates a clock starting at the given time in seconds.
func NewWorldClockAt(seconds float64) *WorldClock {
	c := &WorldClock{}
	c.bits.Store(math.Float64bits(math.Max(0, seconds)))
	return c
}

// Advance moves the clock forward by dt seconds and counts one tick.
// Negative deltas count the tick but never move time backwards.
func (c *WorldClock) Advance(dt float64) float64 {
	c.ticks.Add(1)
	for {
		old := c.bits.Load()
		next := math.Float64frombits(old) + math.Max(0, dt)
		if c.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Now returns the current time in seconds.
func (c *WorldClock) Now() float64 {
	return math.Float64frombits(c.bits.Load())
}

// TickIndex returns how many ticks have been applied.
func (c *WorldClock) TickIndex() int64 {
	return c.ticks.Load()
}

// Reset returns the clock to time zero.
func (c *WorldClock) Reset() {
	c.bits.Store(0)
	c.ticks.Store(0)
}
