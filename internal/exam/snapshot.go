package exam

import "fmt"

// InvalidOperationError is returned when an operation is invoked from a
// phase that does not permit it. Mutators swallow stray late events
// silently; only explicit lifecycle calls (Start) surface this error.
type InvalidOperationError struct {
	Op    string
	Phase Phase
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("operation %q not valid in phase %s", e.Op, e.Phase)
}

// QuestionView is the per-question state exposed to clients. The correct
// answer is never included while the attempt is live.
type QuestionView struct {
	Prompt           string       `json:"question"`
	Options          []string     `json:"options"`
	Topic            string       `json:"topic,omitempty"`
	UserAnswer       string       `json:"user_answer,omitempty"`
	MarkedForReview  bool         `json:"marked_for_review"`
	Status           AnswerStatus `json:"status"`
	TimeSpentSeconds int          `json:"time_spent_seconds,omitempty"`
}

// Snapshot is a consistent point-in-time view of the session, safe to
// serialize to clients.
type Snapshot struct {
	Phase                    Phase          `json:"phase"`
	Topic                    string         `json:"topic"`
	CurrentIndex             int            `json:"current_index"`
	RemainingSeconds         int            `json:"remaining_seconds"`
	DurationSeconds          int            `json:"duration_seconds"`
	ProctorAttemptsRemaining int            `json:"proctor_attempts_remaining"`
	EndRequested             bool           `json:"end_requested"`
	FailCause                string         `json:"fail_cause,omitempty"`
	Questions                []QuestionView `json:"questions,omitempty"`
	Result                   *Result        `json:"result,omitempty"`
}

// Snapshot captures the current session state under the lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:            s.phase,
		Topic:            s.cfg.Topic,
		CurrentIndex:     s.current,
		RemainingSeconds: s.remaining,
		DurationSeconds:  s.cfg.DurationSeconds,
		EndRequested:     s.endReq,
		FailCause:        s.failCause,
	}
	if s.proctor != nil {
		snap.ProctorAttemptsRemaining = s.proctor.RemainingAttempts()
	} else {
		snap.ProctorAttemptsRemaining = s.cfg.ProctorAttempts
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if len(s.questions) > 0 {
		snap.Questions = make([]QuestionView, len(s.questions))
		for i, q := range s.questions {
			snap.Questions[i] = QuestionView{
				Prompt:           q.Question.Prompt,
				Options:          q.Question.Options,
				Topic:            q.Question.Topic,
				UserAnswer:       q.UserAnswer,
				MarkedForReview:  q.MarkedForReview,
				Status:           q.Status(),
				TimeSpentSeconds: q.TimeSpentSeconds,
			}
		}
	}
	return snap
}
