package exam

import (
	"context"
	"time"
)

// EventType identifies a session event pushed to the hosting layer.
type EventType string

const (
	// EventActive fires when generation and validation succeeded and the
	// clock started.
	EventActive EventType = "active"
	// EventTick fires once per second while the attempt is active.
	EventTick EventType = "tick"
	// EventProctorWarning fires on every visibility-lost violation.
	EventProctorWarning EventType = "proctor_warning"
	// EventCompleted fires exactly once when the attempt finalizes.
	EventCompleted EventType = "completed"
	// EventFailed fires when generation or validation failed.
	EventFailed EventType = "failed"
)

// Event carries a session state change to subscribers. Only the fields
// relevant to the Type are populated.
type Event struct {
	Type             EventType
	RemainingSeconds int
	AttemptsLeft     int
	Result           *Result
	Cause            string
}

// EndReason records which path finalized the attempt.
type EndReason string

const (
	EndReasonUser        EndReason = "user"
	EndReasonTimeExpired EndReason = "time_expired"
	EndReasonProctor     EndReason = "proctor"
)

// AttemptRecord is the history snapshot handed to the Recorder once an
// attempt completes.
type AttemptRecord struct {
	UserID     string
	Topic      string
	Result     Result
	Questions  []AnsweredQuestion
	EndReason  EndReason
	StartedAt  time.Time
	FinishedAt time.Time
}

// Generator produces a candidate question batch for a topic. The returned
// batch is untrusted and must pass ValidateSet.
type Generator interface {
	Generate(ctx context.Context, topic string, count int) ([]RawQuestion, error)
}

// Recorder persists a completed attempt. Best-effort: the session logs
// failures as warnings and never lets them affect the computed result.
type Recorder interface {
	Record(ctx context.Context, record AttemptRecord) error
}
