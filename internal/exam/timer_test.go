package exam

import (
	"sync"
	"testing"
	"time"
)

// tickN drives the countdown manually instead of waiting on the wall clock.
func tickN(c *Countdown, n int) {
	for i := 0; i < n; i++ {
		c.tick()
	}
}

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	c := NewCountdown(time.Hour) // real ticker never fires during the test

	var mu sync.Mutex
	var ticks []int
	expirations := 0
	c.OnTick = func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}
	c.OnExpire = func() {
		mu.Lock()
		expirations++
		mu.Unlock()
	}

	c.Start(3)

	tickN(c, 2)
	mu.Lock()
	if expirations != 0 {
		t.Fatalf("expired after 2 of 3 ticks")
	}
	mu.Unlock()

	// Third tick reaches zero; further ticks must be ignored.
	tickN(c, 5)

	mu.Lock()
	defer mu.Unlock()
	if expirations != 1 {
		t.Errorf("expirations = %d, want exactly 1", expirations)
	}
	if len(ticks) != 3 {
		t.Errorf("tick callbacks = %d, want 3", len(ticks))
	}
	if c.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0 (never negative)", c.Remaining())
	}
}

func TestCountdownStopIdempotent(t *testing.T) {
	c := NewCountdown(time.Hour)

	// Safe before start.
	c.Stop()
	c.Stop()

	c.Start(10)
	c.Stop()
	c.Stop() // and after

	if c.tick() != true {
		t.Error("tick after Stop should report done")
	}
	if c.Remaining() != 10 {
		t.Errorf("remaining changed after Stop: %d", c.Remaining())
	}
}

func TestCountdownRestart(t *testing.T) {
	c := NewCountdown(time.Hour)
	expirations := 0
	var mu sync.Mutex
	c.OnExpire = func() {
		mu.Lock()
		expirations++
		mu.Unlock()
	}

	c.Start(2)
	tickN(c, 2)

	// Restart after expiry gets a fresh duration and a fresh expiry.
	c.Start(5)
	if c.Remaining() != 5 {
		t.Fatalf("remaining after restart = %d, want 5", c.Remaining())
	}
	tickN(c, 5)

	mu.Lock()
	defer mu.Unlock()
	if expirations != 2 {
		t.Errorf("expirations = %d, want 2 (one per run)", expirations)
	}
}

func TestCountdownDoubleStartResets(t *testing.T) {
	c := NewCountdown(time.Hour)
	c.Start(100)
	c.Start(30) // must replace, not stack
	if c.Remaining() != 30 {
		t.Errorf("remaining = %d, want 30", c.Remaining())
	}
}

func TestCountdownZeroDurationClampsAtZero(t *testing.T) {
	c := NewCountdown(time.Hour)

	var mu sync.Mutex
	var ticks []int
	expirations := 0
	c.OnTick = func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	}
	c.OnExpire = func() {
		mu.Lock()
		expirations++
		mu.Unlock()
	}

	c.Start(0)
	tickN(c, 3)

	mu.Lock()
	defer mu.Unlock()
	if expirations != 1 {
		t.Errorf("expirations = %d, want exactly 1", expirations)
	}
	for _, r := range ticks {
		if r < 0 {
			t.Errorf("tick reported negative remaining %d", r)
		}
	}
	if c.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", c.Remaining())
	}
}

func TestCountdownRealTicker(t *testing.T) {
	c := NewCountdown(5 * time.Millisecond)
	done := make(chan struct{})
	c.OnExpire = func() { close(done) }

	c.Start(2)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("countdown never expired with a real ticker")
	}
}
