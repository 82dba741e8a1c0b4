package game

import (
	"sync"
	"time"
)

// TickFunc receives the clock owner's username and the wall-clock
// milliseconds elapsed since the previous tick.
type TickFunc func(username string, elapsedMs int64)

// Clock is a session's countdown engine. At most one timer runs at a time;
// starting it for a player cancels any previous timer. The elapsed time is
// recomputed on every tick rather than assumed, so scheduler drift never
// accumulates into the countdown.
type Clock struct {
	mu       sync.Mutex
	interval time.Duration
	lastTick time.Time
	stop     chan struct{}
	running  bool
	tick     TickFunc
}

// NewClock creates a stopped clock that reports ticks to tick.
func NewClock(interval time.Duration, tick TickFunc) *Clock {
	if interval <= 0 {
		interval = time.Second
	}
	return &Clock{interval: interval, tick: tick}
}

// Start begins ticking for the given player, cancelling any running timer.
func (c *Clock) Start(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	c.lastTick = time.Now()
	stop := make(chan struct{})
	c.stop = stop
	c.running = true

	go c.run(username, stop)
}

// Stop cancels the running timer. Safe to call repeatedly.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Running reports whether a timer is currently active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) stopLocked() {
	if c.running {
		close(c.stop)
		c.stop = nil
		c.running = false
	}
}

func (c *Clock) run(username string, stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			if !c.running || c.stop != stop {
				c.mu.Unlock()
				return
			}
			elapsed := now.Sub(c.lastTick).Milliseconds()
			c.lastTick = now
			c.mu.Unlock()

			c.tick(username, elapsed)
		}
	}
}
