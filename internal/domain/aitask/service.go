package aitask

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Service coordinates task submission and lookup between the HTTP layer, the
// repository, and the runner.
type Service struct {
	repo   Repository
	runner *Runner
}

func NewService(repo Repository, runner *Runner) *Service {
	return &Service{repo: repo, runner: runner}
}

// Submit validates the request, persists a PENDING task owned by userID, and
// queues it for execution. When the queue is saturated the row is marked
// FAILED and ErrQueueFull is returned; tasks are never deleted.
func (s *Service) Submit(ctx context.Context, userID, taskType string, input json.RawMessage) (*Task, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if !ValidType(taskType) {
		return nil, fmt.Errorf("invalid task type: %s", taskType)
	}
	if err := ValidateInput(taskType, input); err != nil {
		return nil, err
	}

	t := &Task{
		Type:      taskType,
		Status:    StatusPending,
		Input:     input,
		CreatedBy: userID,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := s.runner.Dispatch(t.ID); err != nil {
		_ = s.repo.Fail(ctx, t.ID, "task queue is full")
		return nil, ErrQueueFull
	}
	return t, nil
}

// Get returns the task if it exists and is owned by userID. Admin callers
// pass admin=true and may read any task.
func (s *Service) Get(ctx context.Context, userID string, admin bool, id uuid.UUID) (*Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin && t.CreatedBy != userID {
		// Existence of another user's task is not disclosed.
		return nil, ErrNotFound
	}
	return t, nil
}

// List returns userID's tasks, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]*Task, int, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}
