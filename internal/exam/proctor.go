package exam

import "sync"

// DefaultProctorAttempts is the tab-switch budget applied when a preset does
// not override it.
const DefaultProctorAttempts = 3

// Proctor counts visibility-lost violations against a fixed budget. Every
// violation raises OnViolation with the new remaining count; when the budget
// hits exactly zero OnExhausted additionally fires, once. The proctor only
// signals; deciding what exhaustion means (force-submit) belongs to the
// Session.
type Proctor struct {
	mu        sync.Mutex
	remaining int
	stopped   bool
	exhausted bool

	OnViolation func(remaining int)
	OnExhausted func()
}

// NewProctor creates a monitor with the given attempts budget.
func NewProctor(attempts int) *Proctor {
	if attempts <= 0 {
		attempts = DefaultProctorAttempts
	}
	return &Proctor{remaining: attempts}
}

// VisibilityLost consumes one attempt. No-op once stopped or exhausted, so
// late events after completion cannot decrement further or re-fire the
// terminal signal.
func (p *Proctor) VisibilityLost() {
	p.mu.Lock()
	if p.stopped || p.exhausted {
		p.mu.Unlock()
		return
	}
	p.remaining--
	remaining := p.remaining
	exhausted := remaining <= 0
	if exhausted {
		p.exhausted = true
	}
	onViolation := p.OnViolation
	onExhausted := p.OnExhausted
	p.mu.Unlock()

	if onViolation != nil {
		onViolation(remaining)
	}
	if exhausted && onExhausted != nil {
		onExhausted()
	}
}

// RemainingAttempts returns how many violations are still tolerated.
func (p *Proctor) RemainingAttempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remaining
}

// Stop disables the monitor. Subsequent visibility events are ignored.
func (p *Proctor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}
