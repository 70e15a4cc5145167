package aitask

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type taskRepoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns the Postgres-backed task repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &taskRepoPG{pool: pool}
}

const taskCols = `id, type, status, input, output, error, created_by, created_at, updated_at`

func (r *taskRepoPG) scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Input, &t.Output, &t.Error,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	return &t, err
}

func (r *taskRepoPG) Create(ctx context.Context, t *Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	return r.scanBack(t, r.pool.QueryRow(ctx, `
		INSERT INTO ai_task (id, type, status, input, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.Type, t.Status, t.Input, t.CreatedBy))
}

func (r *taskRepoPG) scanBack(t *Task, row pgx.Row) error {
	return row.Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return r.scanTask(r.pool.QueryRow(ctx, `SELECT `+taskCols+` FROM ai_task WHERE id = $1`, id))
}

// MarkInProgress only succeeds against a PENDING row. A worker that lost the
// race to another writer gets ErrTerminal rather than clobbering the record.
func (r *taskRepoPG) MarkInProgress(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ai_task SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`,
		id, StatusInProgress, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

func (r *taskRepoPG) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ai_task SET status = $2, output = $3, error = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)`,
		id, StatusCompleted, output, StatusPending, StatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

func (r *taskRepoPG) Fail(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ai_task SET status = $2, error = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)`,
		id, StatusFailed, message, StatusPending, StatusInProgress)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss distinguishes a missing row from a row already in a terminal
// status after a guarded update matched nothing.
func (r *taskRepoPG) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM ai_task WHERE id = $1`, id).Scan(&status)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

func (r *taskRepoPG) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Task, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ai_task WHERE created_by = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+taskCols+` FROM ai_task WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
