package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/turf-booking/internal/booking"
)

var ErrTaskNotFound = errors.New("notification task not found")

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	// StatusDead tasks ran out of attempts and wait for an admin to requeue them.
	StatusDead Status = "dead"
)

// Task is one confirmation message for one booking on one channel.
type Task struct {
	ID            uuid.UUID       `json:"id"`
	BookingID     string          `json:"booking_id"`
	Channel       Channel         `json:"channel"`
	Status        Status          `json:"status"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
	Booking       booking.Booking `json:"-"`
	NextAttemptAt time.Time       `json:"next_attempt_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Failure records an unsuccessful attempt.
type Failure struct {
	Attempts      int
	Err           string
	NextAttemptAt time.Time
	Dead          bool
}

type TaskStore interface {
	CreateTasks(ctx context.Context, tasks []Task) error
	// ClaimDue hands out due pending or failed tasks and pushes their next
	// attempt past the lease so no other worker picks them up meanwhile.
	ClaimDue(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Task, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, f Failure) error
	ListDead(ctx context.Context, limit int) ([]Task, error)
	// Requeue resets a dead task to pending with a fresh attempt budget.
	Requeue(ctx context.Context, id uuid.UUID, at time.Time) (*Task, error)
}
