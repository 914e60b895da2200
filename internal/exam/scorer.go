package exam

// Result is the immutable outcome of a completed attempt.
type Result struct {
	Score            int    `json:"score"`
	TotalQuestions   int    `json:"total_questions"`
	Correctness      []bool `json:"correctness"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

// ScoreAttempt computes the result from the final question state. A question
// counts as correct only when it was answered and the answer matches exactly;
// unanswered questions are incorrect, never an error. Pure and deterministic.
func ScoreAttempt(questions []*AnsweredQuestion, durationSeconds, remainingSeconds int) Result {
	correctness := make([]bool, len(questions))
	score := 0
	for i, q := range questions {
		if q.Answered && q.UserAnswer == q.Question.CorrectAnswer {
			correctness[i] = true
			score++
		}
	}

	taken := durationSeconds - remainingSeconds
	if taken < 0 {
		taken = 0
	}

	return Result{
		Score:            score,
		TotalQuestions:   len(questions),
		Correctness:      correctness,
		TimeTakenSeconds: taken,
	}
}
