package sdk

import (
	"sync/atomic"
	"time"
)

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 { return uint64(time.Now().Unix()) }

// ManualClock only moves when told to, tests use it to cross deadlines.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock starts the clock at ts.
func NewManualClock(ts uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(ts)
	return c
}

func (c *ManualClock) Now() uint64 { return c.now.Load() }

// Advance moves the clock forward by d seconds.
func (c *ManualClock) Advance(d uint64) { c.now.Add(d) }

// Set jumps to ts.
func (c *ManualClock) Set(ts uint64) { c.now.Store(ts) }
