package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgTaskStore struct {
	pool *pgxpool.Pool
}

func NewPgTaskStore(pool *pgxpool.Pool) *PgTaskStore {
	return &PgTaskStore{pool: pool}
}

const taskColumns = `id, booking_id, channel, status, attempts, last_error, payload, next_attempt_at, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var (
		t       Task
		payload []byte
	)
	err := row.Scan(&t.ID, &t.BookingID, &t.Channel, &t.Status, &t.Attempts, &t.LastError,
		&payload, &t.NextAttemptAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &t.Booking); err != nil {
		return nil, fmt.Errorf("decode task payload %s: %w", t.ID, err)
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *PgTaskStore) CreateTasks(ctx context.Context, tasks []Task) error {
	batch := &pgx.Batch{}
	for _, t := range tasks {
		payload, err := json.Marshal(t.Booking)
		if err != nil {
			return fmt.Errorf("encode task payload: %w", err)
		}
		batch.Queue(`
			INSERT INTO notification_tasks (id, booking_id, channel, status, attempts, payload, next_attempt_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, t.ID, t.BookingID, t.Channel, t.Status, t.Attempts, payload, t.NextAttemptAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert notification tasks: %w", err)
	}
	return nil
}

func (s *PgTaskStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE notification_tasks
		SET next_attempt_at = $2, updated_at = now()
		WHERE id IN (
			SELECT id FROM notification_tasks
			WHERE status IN ('pending', 'failed') AND next_attempt_at <= $1
			ORDER BY next_attempt_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *PgTaskStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = 'sent', attempts = attempts + 1, last_error = NULL, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark task sent: %w", err)
	}
	return nil
}

func (s *PgTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, f Failure) error {
	status := StatusFailed
	if f.Dead {
		status = StatusDead
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE notification_tasks
		SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5, updated_at = now()
		WHERE id = $1
	`, id, status, f.Attempts, f.Err, f.NextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return nil
}

func (s *PgTaskStore) ListDead(ctx context.Context, limit int) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM notification_tasks
		WHERE status = 'dead'
		ORDER BY updated_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead tasks: %w", err)
	}
	return collectTasks(rows)
}

func (s *PgTaskStore) Requeue(ctx context.Context, id uuid.UUID, at time.Time) (*Task, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE notification_tasks
		SET status = 'pending', attempts = 0, next_attempt_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'dead'
		RETURNING `+taskColumns, id, at)
	return scanTask(row)
}
