package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/exam"
	"github.com/prepdesk/prepdesk-backend/internal/model"
)

// Recorder implements exam.Recorder by queueing completed attempts to Redis.
// The history worker drains the queue into PostgreSQL, so a slow or down
// database never blocks the result shown to the user.
type Recorder struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRecorder creates a queue-backed attempt recorder.
func NewRecorder(rdb *redis.Client, log zerolog.Logger) *Recorder {
	return &Recorder{
		rdb: rdb,
		log: log.With().Str("component", "history_recorder").Logger(),
	}
}

// Record serializes the attempt and pushes it onto the persist queue.
func (r *Recorder) Record(ctx context.Context, record exam.AttemptRecord) error {
	payload := model.AttemptPayload{
		UserID:           record.UserID,
		Topic:            record.Topic,
		Score:            record.Result.Score,
		TotalQuestions:   record.Result.TotalQuestions,
		TimeTakenSeconds: record.Result.TimeTakenSeconds,
		EndReason:        string(record.EndReason),
		Questions:        snapshotQuestions(record),
		StartedAt:        record.StartedAt.Unix(),
		FinishedAt:       record.FinishedAt.Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal attempt payload: %w", err)
	}

	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue attempt payload: %w", err)
	}

	r.log.Debug().Str("user_id", record.UserID).Str("topic", record.Topic).Msg("Attempt queued for persistence")
	return nil
}

func snapshotQuestions(record exam.AttemptRecord) []model.QuestionSnapshot {
	snaps := make([]model.QuestionSnapshot, len(record.Questions))
	for i, q := range record.Questions {
		correct := false
		if i < len(record.Result.Correctness) {
			correct = record.Result.Correctness[i]
		}
		snaps[i] = model.QuestionSnapshot{
			Prompt:           q.Question.Prompt,
			Options:          q.Question.Options,
			CorrectAnswer:    q.Question.CorrectAnswer,
			UserAnswer:       q.UserAnswer,
			MarkedForReview:  q.MarkedForReview,
			TimeSpentSeconds: q.TimeSpentSeconds,
			Correct:          correct,
		}
	}
	return snaps
}
