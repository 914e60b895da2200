package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Attempt is one finished exam run as stored in the history log.
type Attempt struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	Topic            string          `json:"topic"`
	Score            int             `json:"score"`
	TotalQuestions   int             `json:"total_questions"`
	TimeTakenSeconds int             `json:"time_taken_seconds"`
	EndReason        string          `json:"end_reason"`
	Questions        json.RawMessage `json:"questions"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

// QuestionSnapshot is the per-question state frozen into an attempt record.
// Unlike live session views it includes the correct answer, since the attempt
// is over.
type QuestionSnapshot struct {
	Prompt           string   `json:"question"`
	Options          []string `json:"options"`
	CorrectAnswer    string   `json:"correct_answer"`
	UserAnswer       string   `json:"user_answer,omitempty"`
	MarkedForReview  bool     `json:"marked_for_review,omitempty"`
	TimeSpentSeconds int      `json:"time_spent_seconds,omitempty"`
	Correct          bool     `json:"correct"`
}

// AttemptPayload is the wire format pushed onto the persist queue by the
// recorder and drained by the history worker.
type AttemptPayload struct {
	UserID           string             `json:"user_id"`
	Topic            string             `json:"topic"`
	Score            int                `json:"score"`
	TotalQuestions   int                `json:"total_questions"`
	TimeTakenSeconds int                `json:"time_taken_seconds"`
	EndReason        string             `json:"end_reason"`
	Questions        []QuestionSnapshot `json:"questions"`
	StartedAt        int64              `json:"started_at"`
	FinishedAt       int64              `json:"finished_at"`
}

// StartAttemptRequest is the payload for starting a new exam attempt.
type StartAttemptRequest struct {
	PresetID string `json:"preset_id" binding:"required,min=1,max=64"`
}
