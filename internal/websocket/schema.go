package websocket

import "github.com/prepdesk/prepdesk-backend/internal/exam"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer     Action = "answer"
	ActionMark       Action = "mark"
	ActionNavigate   Action = "navigate"
	ActionEndRequest Action = "end_request"
	ActionEndConfirm Action = "end_confirm"
	ActionEndCancel  Action = "end_cancel"
	ActionVisibility Action = "visibility_lost"
	ActionPing       Action = "ping"
)

// Request is the single client message shape. Only the fields relevant
// to the action are read.
type Request struct {
	Action Action `json:"action"`
	// Option is the selected answer text (answer).
	Option string `json:"option,omitempty"`
	// Index is the target question index (navigate).
	Index int `json:"index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventTick      Event = "tick"
	EventWarning   Event = "proctor_warning"
	EventCompleted Event = "completed"
	EventFailed    Event = "failed"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries a full session snapshot. Sent on connect and on
// transitions where the client needs the whole picture.
type StateResponse struct {
	Event Event         `json:"event"`
	State exam.Snapshot `json:"state"`
}

// TickResponse is the once-per-second countdown update.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// WarningResponse reports a proctoring violation and the remaining budget.
type WarningResponse struct {
	Event        Event `json:"event"`
	AttemptsLeft int   `json:"attempts_left"`
}

// CompletedResponse delivers the final score.
type CompletedResponse struct {
	Event  Event        `json:"event"`
	Result *exam.Result `json:"result"`
}

// FailedResponse reports a failed question load; the client may retry.
type FailedResponse struct {
	Event Event  `json:"event"`
	Cause string `json:"cause"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
