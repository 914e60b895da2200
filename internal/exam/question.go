package exam

// OptionCount is the number of options every multiple-choice question carries.
const OptionCount = 4

// RawQuestion is an untrusted candidate question as returned by the
// generation collaborator. It must pass ValidateSet before use.
type RawQuestion struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Topic         string   `json:"topic,omitempty"`
}

// Question is a validated, immutable exam question.
type Question struct {
	Prompt        string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"-"`
	Topic         string   `json:"topic,omitempty"`
}

// AnswerStatus is the derived review state of an answered question.
type AnswerStatus string

const (
	StatusAnswered       AnswerStatus = "answered"
	StatusNotAnswered    AnswerStatus = "not_answered"
	StatusMarked         AnswerStatus = "marked"
	StatusAnsweredMarked AnswerStatus = "answered_marked"
)

// AnsweredQuestion wraps a Question with the per-attempt mutable state.
// It is owned exclusively by the Session and must only be mutated through it.
type AnsweredQuestion struct {
	Question         Question `json:"question"`
	UserAnswer       string   `json:"user_answer,omitempty"`
	Answered         bool     `json:"answered"`
	MarkedForReview  bool     `json:"marked_for_review"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
}

// Status derives the review state from the answer and mark flags.
func (q *AnsweredQuestion) Status() AnswerStatus {
	switch {
	case q.Answered && q.MarkedForReview:
		return StatusAnsweredMarked
	case q.Answered:
		return StatusAnswered
	case q.MarkedForReview:
		return StatusMarked
	default:
		return StatusNotAnswered
	}
}

// hasOption reports whether the given text is one of the question's options.
func (q *Question) hasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}
