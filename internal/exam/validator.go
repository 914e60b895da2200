package exam

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCountMismatch is returned when the generator produced a different number
// of questions than requested.
var ErrCountMismatch = errors.New("question count mismatch")

// MalformedQuestionError describes a single invalid candidate question.
// The whole batch is rejected when any element is malformed.
type MalformedQuestionError struct {
	Index  int
	Reason string
}

func (e *MalformedQuestionError) Error() string {
	return fmt.Sprintf("malformed question at index %d: %s", e.Index, e.Reason)
}

// ValidateSet checks an untrusted candidate batch and converts it into
// validated Questions. Acceptance is all-or-nothing: a count mismatch or a
// single malformed element rejects the entire batch.
func ValidateSet(raw []RawQuestion, expectedCount int) ([]Question, error) {
	if len(raw) != expectedCount {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(raw), expectedCount)
	}

	questions := make([]Question, 0, len(raw))
	for i, rq := range raw {
		if strings.TrimSpace(rq.Prompt) == "" {
			return nil, &MalformedQuestionError{Index: i, Reason: "empty prompt"}
		}
		if len(rq.Options) != OptionCount {
			return nil, &MalformedQuestionError{
				Index:  i,
				Reason: fmt.Sprintf("expected %d options, got %d", OptionCount, len(rq.Options)),
			}
		}
		for _, opt := range rq.Options {
			if strings.TrimSpace(opt) == "" {
				return nil, &MalformedQuestionError{Index: i, Reason: "empty option"}
			}
		}
		q := Question{
			Prompt:        rq.Prompt,
			Options:       rq.Options,
			CorrectAnswer: rq.CorrectAnswer,
			Topic:         rq.Topic,
		}
		if rq.CorrectAnswer == "" || !q.hasOption(rq.CorrectAnswer) {
			return nil, &MalformedQuestionError{Index: i, Reason: "correct answer not among options"}
		}
		questions = append(questions, q)
	}

	return questions, nil
}
