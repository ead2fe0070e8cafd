package l2grid

import (
	"sync/atomic"

	"gonum.org/v1/gonum/stat"
)

// CounterLanes is the number of rotating step-counter lanes.
const CounterLanes = 16

// CounterLane accumulates the samples and rays produced by one training
// render. It is safe for concurrent use.
type CounterLane struct {
	samples atomic.Int64
	rays    atomic.Int64
}

// Add records samples produced for rays.
func (l *CounterLane) Add(samples, rays int) {
	if l == nil {
		return
	}
	l.samples.Add(int64(samples))
	l.rays.Add(int64(rays))
}

// Samples returns the recorded sample total.
func (l *CounterLane) Samples() int64 { return l.samples.Load() }

// Rays returns the recorded ray total.
func (l *CounterLane) Rays() int64 { return l.rays.Load() }

func (l *CounterLane) reset() {
	l.samples.Store(0)
	l.rays.Store(0)
}

type stepCounter struct {
	lanes [CounterLanes]CounterLane
	local atomic.Int64
}

func (c *stepCounter) next() *CounterLane {
	step := c.local.Add(1) - 1
	lane := &c.lanes[step%CounterLanes]
	lane.reset()
	return lane
}

// reduce averages the sample totals of the most recent min(16, steps)
// lanes and restarts the step count. ok is false if no render has
// written a lane since the last reduce.
func (c *stepCounter) reduce() (mean int, ok bool) {
	total := min(int(c.local.Load()), CounterLanes)
	if total <= 0 {
		return 0, false
	}
	vals := make([]float64, total)
	for i := range vals {
		vals[i] = float64(c.lanes[i].Samples())
	}
	c.local.Store(0)
	return int(stat.Mean(vals, nil)), true
}

func (c *stepCounter) reset() {
	for i := range c.lanes {
		c.lanes[i].reset()
	}
	c.local.Store(0)
}

// NextCounterLane returns the lane the next training render should record
// into. The lane is cleared first.
func (g *Grid) NextCounterLane() *CounterLane {
	return g.counter.next()
}
