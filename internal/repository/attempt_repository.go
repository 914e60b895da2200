package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepdesk/prepdesk-backend/internal/model"
)

// AttemptRepository handles attempt history data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a single attempt record.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, topic, score, total_questions, time_taken_seconds, end_reason, questions, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		 RETURNING id`,
		a.UserID, a.Topic, a.Score, a.TotalQuestions, a.TimeTakenSeconds,
		a.EndReason, a.Questions, a.StartedAt, a.FinishedAt,
	).Scan(&a.ID)
}

// ListByUser retrieves a user's attempts newest-first with pagination.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]model.Attempt, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, topic, score, total_questions, time_taken_seconds, end_reason, questions, started_at, finished_at
		 FROM attempts
		 WHERE user_id = $1
		 ORDER BY finished_at DESC
		 LIMIT $2 OFFSET $3`, userID, perPage, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Topic, &a.Score, &a.TotalQuestions,
			&a.TimeTakenSeconds, &a.EndReason, &a.Questions, &a.StartedAt, &a.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}
