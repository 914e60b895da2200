package exam

import (
	"sync"
	"time"
)

// Countdown is a restartable one-second countdown clock. It invokes OnTick
// with the remaining seconds after every tick and OnExpire exactly once when
// the remaining time reaches zero. Callbacks run outside the Countdown's
// lock, so they may call back into Stop or Start safely.
type Countdown struct {
	mu        sync.Mutex
	interval  time.Duration
	remaining int
	running   bool
	expired   bool
	stop      chan struct{}

	// OnTick and OnExpire must be set before Start. OnExpire never fires
	// more than once per Start.
	OnTick   func(remaining int)
	OnExpire func()
}

// NewCountdown creates a countdown ticking at the given interval.
// Production code uses one second; tests may shorten it.
func NewCountdown(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval}
}

// Start begins counting down from durationSeconds. Any countdown already in
// flight is stopped first, so double-starting resets rather than stacking
// tickers.
func (c *Countdown) Start(durationSeconds int) {
	c.Stop()

	c.mu.Lock()
	c.remaining = durationSeconds
	c.expired = false
	c.running = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	go c.run(stop)
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := c.tick(); done {
				return
			}
		}
	}
}

// tick decrements the remaining time by one second and fires the callbacks.
// Returns true when the countdown has finished.
func (c *Countdown) tick() bool {
	c.mu.Lock()
	if !c.running || c.expired {
		c.mu.Unlock()
		return true
	}
	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.expired = true
		c.running = false
	}
	onTick := c.OnTick
	onExpire := c.OnExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired && onExpire != nil {
		onExpire()
	}
	return expired
}

// Stop halts the countdown. Safe to call repeatedly, before Start, or after
// expiry.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.running = false
	c.mu.Unlock()
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}
