// Package clock paces the client's frame loop.
package clock

import "time"

// tpsSmoothing weights the newest sample of the running TPS average.
const tpsSmoothing = 0.1

// Clock measures wall time between ticks. The simulation is advanced by the
// measured delta, not the nominal frame length.
type Clock struct {
	lastDelta time.Duration
	tickStart time.Time
	tps       float64

	now   func() time.Time
	sleep func(time.Duration)
}

// New starts a clock whose first tick is measured from now.
func New() *Clock {
	return newClock(time.Now, time.Sleep)
}

func newClock(now func() time.Time, sleep func(time.Duration)) *Clock {
	return &Clock{
		tickStart: now(),
		now:       now,
		sleep:     sleep,
	}
}

// LastDelta returns the duration of the most recently completed tick, or zero
// before the first Tick.
func (c *Clock) LastDelta() time.Duration { return c.lastDelta }

// TPS returns a running average of completed ticks per second.
func (c *Clock) TPS() float64 { return c.tps }

// Tick blocks until at least target has elapsed since the previous call, then
// records the actual elapsed time.
func (c *Clock) Tick(target time.Duration) {
	if elapsed := c.now().Sub(c.tickStart); elapsed < target {
		c.sleep(target - elapsed)
	}

	end := c.now()
	delta := end.Sub(c.tickStart)
	if delta < 0 {
		delta = 0
	}
	c.lastDelta = delta
	c.tickStart = end

	if delta > 0 {
		sample := float64(time.Second) / float64(delta)
		if c.tps == 0 {
			c.tps = sample
		} else {
			c.tps += (sample - c.tps) * tpsSmoothing
		}
	}
}

// Frame converts a frame rate into the nominal tick length.
func Frame(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}
