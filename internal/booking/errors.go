package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrStoreUnavailable        = errors.New("booking store unavailable")
	ErrPaymentFailed           = errors.New("payment failed")
	ErrPartialFailure          = errors.New("payment succeeded but the booking could not be saved, please contact support")
	ErrNotificationFailure     = errors.New("notification failed")
	ErrSlotConflict            = errors.New("slot already booked")
	ErrSlotUnavailable         = errors.New("slot is not available")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrBlockNotFound           = errors.New("block not found")
	ErrCheckoutNotFound        = errors.New("checkout not found or expired")
	ErrDuplicateBookingID      = errors.New("booking id already exists")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
)

// ValidationError carries one message per offending field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func fieldError(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
