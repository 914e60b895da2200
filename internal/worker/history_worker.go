package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepdesk/prepdesk-backend/internal/config"
	"github.com/prepdesk/prepdesk-backend/internal/model"
	"github.com/prepdesk/prepdesk-backend/internal/repository"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// HistoryWorker drains the attempt persist queue into PostgreSQL in batches.
// The recorder is fire-and-forget; this worker is the durable half.
type HistoryWorker struct {
	pool     *pgxpool.Pool
	attempts *repository.AttemptRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

func NewHistoryWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *HistoryWorker {
	return &HistoryWorker{
		pool:     pool,
		attempts: repository.NewAttemptRepository(pool),
		rdb:      rdb,
		log:      log.With().Str("component", "history_worker").Logger(),
	}
}

func (w *HistoryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("HistoryWorker started")

	buffer := make([]*model.AttemptPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// Flush on size or age.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload model.AttemptPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed payload")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue.
func (w *HistoryWorker) flushSafe(ctx context.Context, batch []*model.AttemptPayload) {
	if len(batch) == 0 {
		return
	}
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *HistoryWorker) bulkInsert(ctx context.Context, batch []*model.AttemptPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		questions, err := json.Marshal(p.Questions)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{
			p.UserID, p.Topic, p.Score, p.TotalQuestions, p.TimeTakenSeconds,
			p.EndReason, questions, time.Unix(p.StartedAt, 0), time.Unix(p.FinishedAt, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempts"},
		[]string{"user_id", "topic", "score", "total_questions", "time_taken_seconds", "end_reason", "questions", "started_at", "finished_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *HistoryWorker) fallbackInsert(ctx context.Context, batch []*model.AttemptPayload) {
	requeueList := make([]*model.AttemptPayload, 0)

	for _, p := range batch {
		questions, err := json.Marshal(p.Questions)
		if err != nil {
			w.log.Error().Str("user_id", p.UserID).Msg("Dropping attempt with unmarshalable questions")
			continue
		}

		err = w.attempts.Create(ctx, &model.Attempt{
			UserID:           p.UserID,
			Topic:            p.Topic,
			Score:            p.Score,
			TotalQuestions:   p.TotalQuestions,
			TimeTakenSeconds: p.TimeTakenSeconds,
			EndReason:        p.EndReason,
			Questions:        questions,
			StartedAt:        time.Unix(p.StartedAt, 0),
			FinishedAt:       time.Unix(p.FinishedAt, 0),
		})
		if err != nil {
			// Requeue everything that fails the single insert; the next
			// drain retries once the database is back.
			w.log.Error().Err(err).Str("user_id", p.UserID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *HistoryWorker) requeue(ctx context.Context, items []*model.AttemptPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue attempts to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed attempts back to Redis")
		// Avoid thrashing while the database is down hard.
		time.Sleep(2 * time.Second)
	}
}

func (w *HistoryWorker) shutdown(buffer []*model.AttemptPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
