package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GormTaskStore struct {
	db *gorm.DB
}

func NewGormTaskStore(db *gorm.DB) *GormTaskStore {
	return &GormTaskStore{db: db}
}

type taskRow struct {
	ID            string `gorm:"primaryKey"`
	BookingID     string `gorm:"not null;index"`
	Channel       string `gorm:"not null"`
	Status        string `gorm:"not null"`
	Attempts      int    `gorm:"not null;default:0"`
	LastError     *string
	Payload       datatypes.JSON `gorm:"not null"`
	NextAttemptAt time.Time      `gorm:"not null;index:notification_tasks_due_idx"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (taskRow) TableName() string { return "notification_tasks" }

func (r taskRow) toModel() (Task, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return Task{}, fmt.Errorf("parse task id %q: %w", r.ID, err)
	}
	t := Task{
		ID:            id,
		BookingID:     r.BookingID,
		Channel:       Channel(r.Channel),
		Status:        Status(r.Status),
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		NextAttemptAt: r.NextAttemptAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Payload, &t.Booking); err != nil {
		return Task{}, fmt.Errorf("decode task payload %s: %w", r.ID, err)
	}
	return t, nil
}

func toModels(rows []taskRow) ([]Task, error) {
	out := make([]Task, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *GormTaskStore) AutoMigrate() error {
	return s.db.AutoMigrate(&taskRow{})
}

func (s *GormTaskStore) CreateTasks(ctx context.Context, tasks []Task) error {
	rows := make([]taskRow, 0, len(tasks))
	for _, t := range tasks {
		payload, err := json.Marshal(t.Booking)
		if err != nil {
			return fmt.Errorf("encode task payload: %w", err)
		}
		rows = append(rows, taskRow{
			ID:            t.ID.String(),
			BookingID:     t.BookingID,
			Channel:       string(t.Channel),
			Status:        string(t.Status),
			Attempts:      t.Attempts,
			Payload:       datatypes.JSON(payload),
			NextAttemptAt: t.NextAttemptAt,
		})
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert notification tasks: %w", err)
	}
	return nil
}

func (s *GormTaskStore) ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("status IN ? AND next_attempt_at <= ?", []string{string(StatusPending), string(StatusFailed)}, now).
			Order("next_attempt_at").
			Limit(limit).
			Find(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}

		ids := make([]string, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		return tx.Model(&taskRow{}).Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(lease)).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	return toModels(rows)
}

func (s *GormTaskStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&taskRow{}).Where("id = ?", id.String()).Updates(map[string]any{
		"status":     string(StatusSent),
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": nil,
		"updated_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("mark task sent: %w", err)
	}
	return nil
}

func (s *GormTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, f Failure) error {
	status := StatusFailed
	if f.Dead {
		status = StatusDead
	}
	err := s.db.WithContext(ctx).Model(&taskRow{}).Where("id = ?", id.String()).Updates(map[string]any{
		"status":          string(status),
		"attempts":        f.Attempts,
		"last_error":      f.Err,
		"next_attempt_at": f.NextAttemptAt,
	}).Error
	if err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return nil
}

func (s *GormTaskStore) ListDead(ctx context.Context, limit int) ([]Task, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).Where("status = ?", string(StatusDead)).
		Order("updated_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list dead tasks: %w", err)
	}
	return toModels(rows)
}

func (s *GormTaskStore) Requeue(ctx context.Context, id uuid.UUID, at time.Time) (*Task, error) {
	res := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("id = ? AND status = ?", id.String(), string(StatusDead)).
		Updates(map[string]any{
			"status":          string(StatusPending),
			"attempts":        0,
			"next_attempt_at": at,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("requeue task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}

	var row taskRow
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}
