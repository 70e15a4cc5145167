package aitask

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no task exists with the given id.
	ErrNotFound = errors.New("task not found")
	// ErrTerminal is returned when a status write targets a task that is
	// already COMPLETED or FAILED.
	ErrTerminal = errors.New("task already in a terminal status")
	// ErrQueueFull is returned when the runner cannot accept more work.
	ErrQueueFull = errors.New("task queue is full")
)

// Repository persists tasks. Status transitions are enforced here so that a
// terminal record can never regress, regardless of caller ordering.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// MarkInProgress moves a PENDING task to IN_PROGRESS.
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	// Complete moves a non-terminal task to COMPLETED with its output.
	Complete(ctx context.Context, id uuid.UUID, output json.RawMessage) error
	// Fail moves a non-terminal task to FAILED with an error message.
	Fail(ctx context.Context, id uuid.UUID, message string) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Task, int, error)
}
