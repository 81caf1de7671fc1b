// Package monotime provides strictly increasing microsecond timestamps.
package monotime

import (
	"sync/atomic"
	"time"
)

// Clock hands out epoch-based microsecond stamps. The value tracks wall
// time at creation and then advances with the monotonic clock, and every
// call returns a value greater than the previous one.
type Clock struct {
	base time.Time
	last atomic.Int64
}

// New returns a clock anchored at the current time
func New() *Clock {
	return &Clock{base: time.Now()}
}

var shared = New()

// Default returns the process-wide clock
func Default() *Clock {
	return shared
}

// Micros returns the next timestamp in microseconds since the Unix epoch
func (c *Clock) Micros() int64 {
	now := c.base.UnixMicro() + time.Since(c.base).Microseconds()
	for {
		last := c.last.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}
