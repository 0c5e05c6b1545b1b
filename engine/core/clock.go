package core

import "time"

// Clock is the frame timer. Tick advances it once per loop iteration; no GPU
// work is tied to it.
type Clock struct {
	now       func() time.Time
	startTime time.Time
	lastTick  time.Time
	delta     time.Duration
	total     time.Duration
	running   bool
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = c.now()
	c.lastTick = c.startTime
	c.delta = 0
	c.total = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Tick updates delta and total time. Has no effect on non-started clocks.
func (c *Clock) Tick() {
	if !c.running {
		return
	}
	t := c.now()
	c.delta = t.Sub(c.lastTick)
	c.total = t.Sub(c.startTime)
	c.lastTick = t
}

// Delta is the time between the last two ticks.
func (c *Clock) Delta() time.Duration {
	return c.delta
}

// Elapsed is the time between Start and the last tick.
func (c *Clock) Elapsed() time.Duration {
	return c.total
}

func (c *Clock) DeltaSeconds() float64 {
	return c.delta.Seconds()
}

func (c *Clock) ElapsedSeconds() float64 {
	return c.total.Seconds()
}
